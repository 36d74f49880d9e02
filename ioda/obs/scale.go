package obs

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// DimensionScale describes one axis of an Obs Group. Generate turns each
// into a dimension and a coordinate variable of the same name.
type DimensionScale struct {
	Name string
	// Type of the coordinate variable. Must be an integer type.
	Type   types.Type
	Length int
	// Chunk is the chunk length of variables along this axis. Zero means
	// the whole length.
	Chunk     int
	Unlimited bool
}

func NewDimensionScale(name string, t types.Type, length, chunk int, unlimited bool) DimensionScale {
	return DimensionScale{Name: name, Type: t, Length: length, Chunk: chunk, Unlimited: unlimited}
}

// chunkLength is the chunk length variables get along the axis.
func (s DimensionScale) chunkLength() int {
	switch {
	case s.Chunk > 0:
		return s.Chunk
	case s.Length > 0:
		return s.Length
	}
	return 1
}

func maxCoordinate(t types.Type) int {
	switch t {
	case types.Int16:
		return math.MaxInt16
	case types.Int32:
		return math.MaxInt32
	}
	return math.MaxInt
}

func (s DimensionScale) validate() error {
	switch {
	case !internal.IsValidName(s.Name):
		return fmt.Errorf("%w: dimension %q", api.ErrInvalidName, s.Name)
	case !s.Type.IsInteger():
		return fmt.Errorf("%w: dimension %q has %v coordinates", api.ErrUnsupportedType, s.Name, s.Type)
	case s.Length < 0 || s.Length > maxCoordinate(s.Type):
		return fmt.Errorf("%w: dimension %q has length %d", api.ErrInvalidDimension, s.Name, s.Length)
	case s.Chunk < 0:
		return fmt.Errorf("%w: dimension %q has chunk %d", api.ErrInvalidDimension, s.Name, s.Chunk)
	}
	return nil
}

func validateScales(scales []DimensionScale) error {
	seen := map[string]bool{}
	unlimited := ""
	for _, s := range scales {
		if err := s.validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: %q", api.ErrDuplicateDimension, s.Name)
		}
		seen[s.Name] = true
		if s.Unlimited {
			if unlimited != "" {
				return fmt.Errorf("%w: both %q and %q are unlimited", api.ErrInvalidDimension, unlimited, s.Name)
			}
			unlimited = s.Name
		}
	}
	return nil
}

// coordinates returns the values from+1 to to of an integer type.
func coordinates(t types.Type, from, to int) *types.Array {
	shape := []int{to - from}
	switch t {
	case types.Int16:
		return &types.Array{Type: t, Shape: shape, Data: sequence[int16](from, to)}
	case types.Int32:
		return &types.Array{Type: t, Shape: shape, Data: sequence[int32](from, to)}
	}
	return &types.Array{Type: types.Int64, Shape: shape, Data: sequence[int64](from, to)}
}

func sequence[T int16 | int32 | int64](from, to int) []T {
	s := make([]T, to-from)
	for i := range s {
		s[i] = T(from + i + 1)
	}
	return s
}
