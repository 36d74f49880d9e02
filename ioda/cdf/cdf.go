// Package cdf reads and writes netCDF classic files: v1 (classic), v2
// (64-bit offset) and v5 (64-bit data). Files are always written as v5 so
// that 64-bit integers can be stored.
//
// The format has no groups, so hierarchical datasets must be flattened
// before they are encoded. Strings are stored as char arrays with an extra
// trailing dimension named _stringlen_<variable>. Creation parameters the
// format cannot honour are kept as hidden variable attributes.
package cdf

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

const (
	fieldDimension = 0x0000000a
	fieldVariable  = 0x0000000b
	fieldAttribute = 0x0000000c
)

const (
	typeNone = iota // Never stored in a file: only a sentinal value
	typeByte
	typeChar
	typeShort
	typeInt
	typeFloat
	typeDouble

	// v5
	typeUByte
	typeUShort
	typeUInt
	typeInt64
	typeUInt64
)

const (
	magic         = "CDF"
	writeVersion  = 5
	maxDimensions = 1024
	maxCount      = 1 << 20

	stringLenPrefix = "_stringlen_"
)

// Attributes carrying creation parameters.
const (
	fillValueKey   = "_FillValue"
	chunkSizesKey  = "_ChunkSizes"
	compressionKey = "_Compression"
	levelKey       = "_DeflateLevel"
	shuffleKey     = "_Shuffle"
	ncpKey         = "_NCProperties"
)

var (
	ErrBadMagic       = fmt.Errorf("%w: not a CDF file", api.ErrUnknownFormat)
	ErrVersion        = fmt.Errorf("%w: unsupported CDF version", api.ErrUnknownFormat)
	ErrStreaming      = fmt.Errorf("%w: streaming record count not supported", api.ErrCorrupted)
	ErrGroups         = fmt.Errorf("%w: netCDF classic files have no groups", api.ErrInvalidLayout)
	ErrUnknownType    = fmt.Errorf("%w: unknown CDF type", api.ErrCorrupted)
	errInternal       = errors.New("internal error")
	ErrUnsignedInt64  = fmt.Errorf("%w: uint64 variables cannot be represented", api.ErrUnsupportedType)
	ErrNulInAttribute = fmt.Errorf("%w: NUL in string attribute", api.ErrUnsupportedType)
)

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (fatal messages only) and the highest
// level is 3 (errors, warnings and informational messages).
func SetLogLevel(level int) int {
	return int(logger.SetLogLevel(internal.LogLevel(level)))
}

// Engine reads and writes netCDF classic files.
type Engine struct{}

func (Engine) Name() string       { return "netcdf" }
func (Engine) Magic() []byte      { return []byte(magic) }
func (Engine) Hierarchical() bool { return false }

// ncType returns the CDF type a registry type is written as.
func ncType(t types.Type) uint32 {
	switch t {
	case types.Int16:
		return typeShort
	case types.Int32:
		return typeInt
	case types.Int64:
		return typeInt64
	case types.Float32:
		return typeFloat
	case types.Float64:
		return typeDouble
	case types.String:
		return typeChar
	}
	return typeNone
}

// registryType returns the type a CDF type is read as. Types without an
// exact match are widened.
func registryType(vType uint32) types.Type {
	switch vType {
	case typeByte, typeUByte, typeShort:
		return types.Int16
	case typeUShort, typeInt:
		return types.Int32
	case typeUInt, typeInt64:
		return types.Int64
	case typeFloat:
		return types.Float32
	case typeDouble:
		return types.Float64
	case typeChar:
		return types.String
	}
	return types.Invalid
}

func typeWidth(vType uint32) int64 {
	switch vType {
	case typeByte, typeChar, typeUByte:
		return 1
	case typeShort, typeUShort:
		return 2
	case typeInt, typeUInt, typeFloat:
		return 4
	case typeInt64, typeUInt64, typeDouble:
		return 8
	}
	return 0
}

// defaultFill is the big-endian encoding of the netCDF default fill value
// of each type.
var defaultFill = map[uint32][]byte{
	typeByte:   {0x81},
	typeChar:   {0x00},
	typeShort:  {0x80, 0x01},
	typeInt:    {0x80, 0x00, 0x00, 0x01},
	typeFloat:  {0x7c, 0xf0, 0x00, 0x00},
	typeDouble: {0x47, 0x9e, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	typeUByte:  {0xff},
	typeUShort: {0xff, 0xff},
	typeUInt:   {0xff, 0xff, 0xff, 0xff},
	typeInt64:  {0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
	typeUInt64: {0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
}

func pad4(n int64) int64 {
	return (4 - n%4) % 4
}
