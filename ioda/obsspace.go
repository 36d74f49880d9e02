// Package ioda opens observation containers described by a configuration
// and offers the short-hand calls most producers and consumers of
// observation files need: create a variable in a group, write it, read it
// back, and attach attributes.
package ioda

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/obs"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// DatetimeLayout is how date-time variables are stored as strings.
const DatetimeLayout = "2006-01-02T15:04:05Z"

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level.
func SetLogLevel(level int) int {
	return int(logger.SetLogLevel(internal.LogLevel(level)))
}

// ObsSpace is an open observation container.
type ObsSpace struct {
	cfg    Config
	file   *engines.File
	group  *obs.Group
	params api.Params
}

// Open opens the container cfg describes. Modes r and rw need an existing
// file; mode w needs an existing directory, and replaces any file there
// with a new Obs Group made of the configured dimensions.
func Open(cfg *Config) (*ObsSpace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	compression, _ := api.ParseCompression(cfg.Compression)
	if cfg.Compression == "" {
		compression = api.CompressionGzip
	}
	s := &ObsSpace{cfg: *cfg, params: api.Params{Compression: compression}}

	var opts []engines.Option
	if cfg.Engine != "" {
		e, err := engines.ByName(cfg.Engine)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engines.WithEngine(e))
	}
	layout, hasLayout := cfg.Layout()
	if hasLayout {
		opts = append(opts, engines.WithLayout(layout))
	}

	var err error
	if cfg.Mode.reads() {
		mode := engines.ReadOnly
		if cfg.Mode.writes() {
			mode = engines.ReadWrite
		}
		s.file, err = engines.OpenFile(cfg.ObsFile, mode, opts...)
		if err != nil {
			return nil, err
		}
		if !hasLayout {
			layout = s.file.Layout()
		}
		s.group, err = obs.OpenExisting(s.file, layout)
	} else {
		s.file, err = engines.CreateFile(cfg.ObsFile, opts...)
		if err != nil {
			return nil, err
		}
		s.group, err = obs.Generate(s.file, cfg.scales())
	}
	if err != nil {
		s.file.Close()
		return nil, err
	}
	logger.Infof("opened %v", s)
	return s, nil
}

func (s *ObsSpace) String() string {
	return fmt.Sprintf("ObsSpace(%s,%s)", s.cfg.Name, s.cfg.ObsFile)
}

func (s *ObsSpace) Name() string      { return s.cfg.Name }
func (s *ObsSpace) Path() string      { return s.cfg.ObsFile }
func (s *ObsSpace) Group() *obs.Group { return s.group }

func (s *ObsSpace) Dimensions() []string {
	return slices.Collect(s.group.Dimensions())
}

// Groups lists every group path.
func (s *ObsSpace) Groups() []string {
	return slices.Collect(s.group.Groups(true))
}

// Variables lists every variable path.
func (s *ObsSpace) Variables() []string {
	return slices.Collect(s.group.Variables(true))
}

func (s *ObsSpace) NVars() int {
	return len(s.Variables())
}

// Attributes lists the global attributes.
func (s *ObsSpace) Attributes() []string {
	return slices.Collect(s.group.Attributes().List())
}

// NLocs is the number of locations.
func (s *ObsSpace) NLocs() (int, error) {
	return s.group.NLocs()
}

// Resize grows the record dimension to n locations.
func (s *ObsSpace) Resize(n int) error {
	return s.group.Resize(s.cfg.RecordDimension, n)
}

func varPath(name, group string) obs.Path {
	if group == "" {
		return obs.NewPath(name)
	}
	return obs.NewPath(group, name)
}

// CreateVar creates name in group, which may be empty for the Obs Group
// itself. Without dims the variable runs along the record dimension; a
// nil fill keeps the type's default.
func (s *ObsSpace) CreateVar(name, group string, t types.Type, dims []string, fill any) (*Variable, error) {
	if len(dims) == 0 {
		dims = []string{s.cfg.RecordDimension}
	}
	params := s.params
	params.Fill = fill
	v, err := s.group.CreateVariable(varPath(name, group), t, dims, params)
	if err != nil {
		return nil, err
	}
	return &Variable{v: v}, nil
}

// Variable opens name in group.
func (s *ObsSpace) Variable(name, group string) (*Variable, error) {
	v, err := s.group.OpenVariable(varPath(name, group))
	if err != nil {
		return nil, err
	}
	return &Variable{v: v}, nil
}

// WriteAttr writes a global attribute. A single value makes a scalar
// attribute, a slice a vector one.
func (s *ObsSpace) WriteAttr(name string, value any) error {
	return s.group.Attributes().Write(name, value)
}

// Close writes back a writable container and releases it.
func (s *ObsSpace) Close() error {
	return s.file.Close()
}

// Variable is a variable of an ObsSpace.
type Variable struct {
	v *obs.Variable
}

func (v *Variable) String() string { return "IODA variable (" + v.v.Name() + ")" }

// Name is the variable's path, e.g. "ObsValue/air_temperature".
func (v *Variable) Name() string     { return v.v.Name() }
func (v *Variable) Type() types.Type { return v.v.Type() }

func (v *Variable) Attributes() []string {
	return slices.Collect(v.v.Attributes().List())
}

// WriteData replaces the variable's values.
func (v *Variable) WriteData(data any) error {
	return v.v.Write(data)
}

// ReadData returns the variable's values. Missing floats are NaN.
func (v *Variable) ReadData() (*types.Array, error) {
	return v.v.Read()
}

// IsDatetime reports whether the variable holds date-times as strings.
func (v *Variable) IsDatetime() bool {
	return v.v.Type() == types.String && strings.Contains(v.v.Path().Name(), "datetime")
}

// ReadDatetimes parses a string variable written with DatetimeLayout.
func (v *Variable) ReadDatetimes() ([]time.Time, error) {
	a, err := v.v.Read()
	if err != nil {
		return nil, err
	}
	strs, err := types.Values[string](a)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(strs))
	for i, s := range strs {
		times[i], err = time.Parse(DatetimeLayout, s)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.v.Name(), err)
		}
	}
	return times, nil
}

// WriteAttr writes an attribute of the variable.
func (v *Variable) WriteAttr(name string, value any) error {
	return v.v.Attributes().Write(name, value)
}

// Attr returns the value of an attribute of the variable.
func (v *Variable) Attr(name string) (any, error) {
	a, err := v.v.Attributes().Open(name)
	if err != nil {
		return nil, err
	}
	return a.Value()
}
