// Package engines is the backend file layer: it creates and opens
// containers on disk or in memory, picks the codec from the file's magic
// number or name, and owns the handle for the lifetime of a File.
package engines

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/cdf"
	"github.com/batchatco/go-native-ioda/ioda/obsfile"
)

var registered = []api.Engine{obsfile.Engine{}, cdf.Engine{}}

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level.
func SetLogLevel(level int) int {
	return int(logger.SetLogLevel(internal.LogLevel(level)))
}

// Engines lists the known container formats.
func Engines() []api.Engine {
	return slices.Clone(registered)
}

// ByName returns the engine called name, e.g. "ioda" or "netcdf".
func ByName(name string) (api.Engine, error) {
	for _, e := range registered {
		if strings.EqualFold(e.Name(), name) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: no engine named %q", api.ErrUnknownFormat, name)
}

// ForPath returns the engine a new file gets from its extension: netCDF for
// .nc, .nc4 and .cdf, the native format otherwise.
func ForPath(path string) api.Engine {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nc", ".nc4", ".cdf":
		return cdf.Engine{}
	}
	return obsfile.Engine{}
}

// Detect picks the engine from the magic number at the start of r, and
// leaves r positioned at the start.
func Detect(r io.ReadSeeker) (api.Engine, error) {
	longest := 0
	for _, e := range registered {
		longest = max(longest, len(e.Magic()))
	}
	head := make([]byte, longest)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	for _, e := range registered {
		if bytes.HasPrefix(head[:n], e.Magic()) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: magic %q", api.ErrUnknownFormat, head[:n])
}
