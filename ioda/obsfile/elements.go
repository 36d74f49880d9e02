package obsfile

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/batchatco/go-thrower"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
	"github.com/batchatco/go-native-ioda/ioda/util"
)

var order = binary.LittleEndian

// encodeElements serializes the elements of a. Numbers are fixed width,
// strings are length prefixed.
func encodeElements(a *types.Array) (raw []byte, err error) {
	defer thrower.RecoverError(&err)
	var buf bytes.Buffer
	switch d := a.Data.(type) {
	case []string:
		for _, s := range d {
			util.MustWriteString(&buf, order, s)
		}
	default:
		util.MustWrite(&buf, order, d)
	}
	return buf.Bytes(), nil
}

// decodeElements fills dst from raw. dst may be a slice of a larger array.
func decodeElements(dst *types.Array, raw []byte) (err error) {
	defer thrower.RecoverError(&err)
	r := bytes.NewReader(raw)
	switch d := dst.Data.(type) {
	case []string:
		for i := range d {
			d[i] = util.MustReadString(r, order)
		}
		assertError(r.Len() == 0, api.ErrCorrupted, "trailing bytes after strings")
	default:
		desc, err := types.Describe(dst.Type)
		thrower.ThrowIfError(err)
		if len(raw) != dst.Len()*desc.Width {
			failError(api.ErrCorrupted,
				fmt.Sprintf("%d bytes for %d elements of %v", len(raw), dst.Len(), dst.Type))
		}
		util.MustRead(r, order, d)
	}
	return nil
}
