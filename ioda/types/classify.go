package types

import (
	"encoding"
	"fmt"
	"reflect"
)

var (
	stringerType      = reflect.TypeFor[fmt.Stringer]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// scalarType maps a Go type onto a tag by its kind. int8 is widened to int16
// because there is no byte type in the registry. Types that only render as
// text (fmt.Stringer, encoding.TextMarshaler) fall back to String.
func scalarType(t reflect.Type) (Type, bool) {
	switch t.Kind() {
	case reflect.Int8, reflect.Int16:
		return Int16, true
	case reflect.Int32:
		return Int32, true
	case reflect.Int, reflect.Int64:
		return Int64, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.String:
		return String, true
	}
	if t.Implements(textMarshalerType) || t.Implements(stringerType) {
		return String, true
	}
	return Invalid, false
}

// staticType descends slice and array element types. It returns Invalid with
// ok set when the leaves are interfaces, whose type is only known per value.
func staticType(t reflect.Type) (typ Type, ok bool) {
	for {
		if st, found := scalarType(t); found {
			return st, true
		}
		switch t.Kind() {
		case reflect.Slice, reflect.Array, reflect.Pointer:
			t = t.Elem()
		case reflect.Interface:
			return Invalid, true
		default:
			return Invalid, false
		}
	}
}

// Classify infers the tag of a scalar, slice, array or nested slice from its
// element representation.
func Classify(v any) (Type, error) {
	a, err := FromValue(v)
	if err != nil {
		return Invalid, err
	}
	return a.Type, nil
}

// FromValue flattens v into an Array. The shape is taken from the nesting:
// a scalar has rank 0, []T rank 1, [][]T rank 2 and so on. Ragged nesting is
// a shape mismatch, mixed element types a type mismatch, and values with no
// numeric or textual representation are unsupported. An Array is returned
// as is once its data is known to agree with its type and shape.
func FromValue(v any) (a *Array, err error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil value", ErrUnsupportedType)
	}
	if arr, ok := v.(*Array); ok {
		if arr == nil {
			return nil, fmt.Errorf("%w: nil array", ErrUnsupportedType)
		}
		if err := arr.check(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	rv := reflect.ValueOf(v)
	st, ok := staticType(rv.Type())
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	f := &flattener{typ: st, leafDepth: -1}
	if err := f.walk(rv, 0); err != nil {
		return nil, err
	}
	if f.typ == Invalid {
		// Only empty slices of interfaces: nothing to go on.
		return nil, fmt.Errorf("%w: %T has no typed elements", ErrUnsupportedType, v)
	}
	if f.leafDepth < 0 {
		// Empty: the static shape ends at the first zero length.
		f.leafDepth = len(f.shape)
	}
	out, err := MakeArray(f.typ, f.shape)
	if err != nil {
		return nil, err
	}
	out.Data = f.data(out.Data)
	return out, nil
}

type flattener struct {
	typ       Type
	shape     []int
	leafDepth int

	i16 []int16
	i32 []int32
	i64 []int64
	f32 []float32
	f64 []float64
	str []string
}

func (f *flattener) walk(rv reflect.Value, depth int) error {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil element", ErrUnsupportedType)
		}
		if rv.Kind() == reflect.Pointer && rv.Type().Implements(stringerType) {
			break
		}
		rv = rv.Elem()
	}
	if st, ok := scalarType(rv.Type()); ok {
		if f.leafDepth < 0 {
			f.leafDepth = depth
		} else if f.leafDepth != depth {
			return fmt.Errorf("%w: ragged nesting", ErrShapeMismatch)
		}
		if f.typ == Invalid {
			f.typ = st
		} else if f.typ != st {
			return fmt.Errorf("%w: mixed %v and %v elements", ErrTypeMismatch, f.typ, st)
		}
		f.appendLeaf(rv)
		return nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedType, rv.Type())
	}
	if f.leafDepth >= 0 && depth >= f.leafDepth {
		return fmt.Errorf("%w: ragged nesting", ErrShapeMismatch)
	}
	n := rv.Len()
	switch {
	case depth == len(f.shape):
		f.shape = append(f.shape, n)
	case f.shape[depth] != n:
		return fmt.Errorf("%w: ragged nesting, %d != %d at depth %d",
			ErrShapeMismatch, n, f.shape[depth], depth)
	}
	for i := 0; i < n; i++ {
		if err := f.walk(rv.Index(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (f *flattener) appendLeaf(rv reflect.Value) {
	switch f.typ {
	case Int16:
		f.i16 = append(f.i16, int16(rv.Int()))
	case Int32:
		f.i32 = append(f.i32, int32(rv.Int()))
	case Int64:
		f.i64 = append(f.i64, rv.Int())
	case Float32:
		f.f32 = append(f.f32, float32(rv.Float()))
	case Float64:
		f.f64 = append(f.f64, rv.Float())
	case String:
		f.str = append(f.str, asText(rv))
	}
}

func asText(rv reflect.Value) string {
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case encoding.TextMarshaler:
			if b, err := x.MarshalText(); err == nil {
				return string(b)
			}
		case fmt.Stringer:
			return x.String()
		}
	}
	return fmt.Sprint(rv)
}

func (f *flattener) data(empty any) any {
	switch f.typ {
	case Int16:
		if f.i16 != nil {
			return f.i16
		}
	case Int32:
		if f.i32 != nil {
			return f.i32
		}
	case Int64:
		if f.i64 != nil {
			return f.i64
		}
	case Float32:
		if f.f32 != nil {
			return f.f32
		}
	case Float64:
		if f.f64 != nil {
			return f.f64
		}
	case String:
		if f.str != nil {
			return f.str
		}
	}
	return empty
}
