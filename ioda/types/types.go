// Package types is the type registry shared by every layer of the storage
// engine: the closed set of element types, their on-disk widths, and the
// dense Array used to move typed data in and out of variables and attributes.
package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Type is the element type tag carried by every dimension scale, variable and
// attribute. It is chosen at creation and never changes.
type Type uint8

const (
	Invalid Type = iota // Never stored: only a sentinel value
	Int16
	Int32
	Int64
	Float32
	Float64
	String
)

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrShapeMismatch   = errors.New("shape mismatch")
)

// Descriptor describes how a Type is laid out. Width is zero for strings,
// which are variable length.
type Descriptor struct {
	Width    int
	IsString bool
}

var typeNames = [...]string{
	Invalid: "invalid",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid returns true for the six storable types.
func (t Type) Valid() bool {
	return t >= Int16 && t <= String
}

func (t Type) IsInteger() bool {
	return t == Int16 || t == Int32 || t == Int64
}

func (t Type) IsFloat() bool {
	return t == Float32 || t == Float64
}

// Describe returns the layout of t, or ErrUnsupportedType for a tag outside
// the closed set.
func Describe(t Type) (Descriptor, error) {
	switch t {
	case Int16:
		return Descriptor{Width: 2}, nil
	case Int32, Float32:
		return Descriptor{Width: 4}, nil
	case Int64, Float64:
		return Descriptor{Width: 8}, nil
	case String:
		return Descriptor{IsString: true}, nil
	}
	return Descriptor{}, fmt.Errorf("%w: %v", ErrUnsupportedType, t)
}

// ParseType accepts the Go names as well as the CDL names used by ncdump.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int16", "short":
		return Int16, nil
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "string", "str":
		return String, nil
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// CDLType returns the type name as ncdump would print it.
func (t Type) CDLType() string {
	switch t {
	case Int16:
		return "short"
	case Int32:
		return "int"
	case Int64:
		return "int64"
	case Float32:
		return "float"
	case Float64:
		return "double"
	case String:
		return "string"
	}
	return t.String()
}

// MissingThreshold is the magnitude above which a stored float is a
// missing-value sentinel rather than data. It applies to float32 and float64.
const MissingThreshold = 9e36

// IsMissingValue reports whether f is a missing-value sentinel.
func IsMissingValue(f float64) bool {
	return math.IsNaN(f) || math.Abs(f) > MissingThreshold
}

// DefaultFill returns the netCDF default fill value for t. The float
// defaults are above MissingThreshold, so unwritten floats read as missing.
func DefaultFill(t Type) any {
	switch t {
	case Int16:
		return int16(-32767)
	case Int32:
		return int32(-2147483647)
	case Int64:
		return int64(-9223372036854775806)
	case Float32:
		return math.Float32frombits(0x7cf00000)
	case Float64:
		return math.Float64frombits(0x479e000000000000)
	case String:
		return ""
	}
	return nil
}

// Element is the set of Go types that back an Array.
type Element interface {
	int16 | int32 | int64 | float32 | float64 | string
}

// TypeOf returns the tag for the Go element type T.
func TypeOf[T Element]() Type {
	var zero T
	switch any(zero).(type) {
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	case string:
		return String
	}
	return Invalid
}
