package types

import (
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Array is a dense, row-major block of typed elements. Data holds one of
// []int16, []int32, []int64, []float32, []float64 or []string and its length
// is the product of Shape. A rank-0 array (empty Shape) holds one element.
type Array struct {
	Type  Type
	Shape []int
	Data  any

	// Missing holds the element positions that were read back as the
	// missing-value sentinel. It is nil when nothing is missing.
	Missing *roaring.Bitmap
}

// Product returns the number of elements described by shape.
func Product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// NewArray wraps data with the given shape. The data is not copied.
func NewArray[T Element](shape []int, data []T) (*Array, error) {
	if Product(shape) != len(data) {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrShapeMismatch, len(data), shape)
	}
	return &Array{Type: TypeOf[T](), Shape: slices.Clone(shape), Data: data}, nil
}

// Values returns the backing slice of a as []T, failing with ErrTypeMismatch
// when T does not match the array's type.
func Values[T Element](a *Array) ([]T, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil array", ErrTypeMismatch)
	}
	v, ok := a.Data.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: array holds %v, not %v", ErrTypeMismatch, a.Type, TypeOf[T]())
	}
	return v, nil
}

// MakeArray allocates a zeroed array.
func MakeArray(t Type, shape []int) (*Array, error) {
	n := Product(shape)
	var data any
	switch t {
	case Int16:
		data = make([]int16, n)
	case Int32:
		data = make([]int32, n)
	case Int64:
		data = make([]int64, n)
	case Float32:
		data = make([]float32, n)
	case Float64:
		data = make([]float64, n)
	case String:
		data = make([]string, n)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, t)
	}
	return &Array{Type: t, Shape: slices.Clone(shape), Data: data}, nil
}

// FillArray allocates an array with every element set to fill. A nil fill
// means the type's default fill value.
func FillArray(t Type, shape []int, fill any) (*Array, error) {
	if fill == nil {
		fill = DefaultFill(t)
	}
	a, err := MakeArray(t, shape)
	if err != nil {
		return nil, err
	}
	ok := true
	switch d := a.Data.(type) {
	case []int16:
		var v int16
		v, ok = fill.(int16)
		for i := range d {
			d[i] = v
		}
	case []int32:
		var v int32
		v, ok = fill.(int32)
		for i := range d {
			d[i] = v
		}
	case []int64:
		var v int64
		v, ok = fill.(int64)
		for i := range d {
			d[i] = v
		}
	case []float32:
		var v float32
		v, ok = fill.(float32)
		for i := range d {
			d[i] = v
		}
	case []float64:
		var v float64
		v, ok = fill.(float64)
		for i := range d {
			d[i] = v
		}
	case []string:
		var v string
		v, ok = fill.(string)
		for i := range d {
			d[i] = v
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: fill %T for %v", ErrTypeMismatch, fill, t)
	}
	return a, nil
}

// Len is the number of elements.
func (a *Array) Len() int {
	switch d := a.Data.(type) {
	case []int16:
		return len(d)
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// check reports an Array whose backing slice disagrees with its Type or
// Shape, or whose Missing set points past the data.
func (a *Array) check() error {
	var ok bool
	switch a.Data.(type) {
	case []int16:
		ok = a.Type == Int16
	case []int32:
		ok = a.Type == Int32
	case []int64:
		ok = a.Type == Int64
	case []float32:
		ok = a.Type == Float32
	case []float64:
		ok = a.Type == Float64
	case []string:
		ok = a.Type == String
	}
	if !ok {
		return fmt.Errorf("%w: %v array holds %T", ErrTypeMismatch, a.Type, a.Data)
	}
	if slices.ContainsFunc(a.Shape, func(n int) bool { return n < 0 }) || a.Len() != Product(a.Shape) {
		return fmt.Errorf("%w: %d elements for shape %v", ErrShapeMismatch, a.Len(), a.Shape)
	}
	if a.Missing != nil && !a.Missing.IsEmpty() && int(a.Missing.Maximum()) >= a.Len() {
		return fmt.Errorf("%w: missing element %d of %d", ErrShapeMismatch, a.Missing.Maximum(), a.Len())
	}
	return nil
}

// Rank is the number of dimensions.
func (a *Array) Rank() int {
	return len(a.Shape)
}

// Index returns element i as an interface value.
func (a *Array) Index(i int) any {
	switch d := a.Data.(type) {
	case []int16:
		return d[i]
	case []int32:
		return d[i]
	case []int64:
		return d[i]
	case []float32:
		return d[i]
	case []float64:
		return d[i]
	case []string:
		return d[i]
	}
	return nil
}

// IsMissing reports whether element i was read back as missing.
func (a *Array) IsMissing(i int) bool {
	return a.Missing != nil && a.Missing.Contains(uint32(i))
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	c := &Array{Type: a.Type, Shape: slices.Clone(a.Shape)}
	switch d := a.Data.(type) {
	case []int16:
		c.Data = slices.Clone(d)
	case []int32:
		c.Data = slices.Clone(d)
	case []int64:
		c.Data = slices.Clone(d)
	case []float32:
		c.Data = slices.Clone(d)
	case []float64:
		c.Data = slices.Clone(d)
	case []string:
		c.Data = slices.Clone(d)
	}
	if a.Missing != nil {
		c.Missing = a.Missing.Clone()
	}
	return c
}

// MarkMissing replaces every float element that is a missing-value sentinel
// with NaN and records its position in Missing. It returns the number of
// elements marked. Integer and string arrays are left alone.
func (a *Array) MarkMissing() int {
	var bm *roaring.Bitmap
	mark := func(i int) {
		if bm == nil {
			bm = roaring.New()
		}
		bm.Add(uint32(i))
	}
	switch d := a.Data.(type) {
	case []float32:
		nan := float32(math.NaN())
		for i, v := range d {
			if IsMissingValue(float64(v)) {
				d[i] = nan
				mark(i)
			}
		}
	case []float64:
		for i, v := range d {
			if IsMissingValue(v) {
				d[i] = math.NaN()
				mark(i)
			}
		}
	default:
		return 0
	}
	if bm == nil {
		return 0
	}
	if a.Missing == nil {
		a.Missing = bm
	} else {
		a.Missing.Or(bm)
	}
	return int(bm.GetCardinality())
}

// Collapse returns a view of a with an (N,1) shape reduced to (N). Any other
// shape is returned unchanged. The data is shared.
func (a *Array) Collapse() *Array {
	if len(a.Shape) != 2 || a.Shape[1] != 1 {
		return a
	}
	c := *a
	c.Shape = []int{a.Shape[0]}
	return &c
}

// RowSize returns the number of elements in one step along the first axis.
func RowSize(shape []int) int {
	if len(shape) == 0 {
		return 1
	}
	return Product(shape[1:])
}

// Slice returns elements [begin, end) of the flat data as a new array with
// the given shape. The data is shared.
func (a *Array) Slice(begin, end int, shape []int) *Array {
	c := &Array{Type: a.Type, Shape: slices.Clone(shape)}
	switch d := a.Data.(type) {
	case []int16:
		c.Data = d[begin:end]
	case []int32:
		c.Data = d[begin:end]
	case []int64:
		c.Data = d[begin:end]
	case []float32:
		c.Data = d[begin:end]
	case []float64:
		c.Data = d[begin:end]
	case []string:
		c.Data = d[begin:end]
	}
	return c
}

// Concat appends b's elements to a's. Both must have the same type; the
// resulting shape is the caller's business.
func Concat(a, b *Array, shape []int) (*Array, error) {
	if a.Type != b.Type {
		return nil, fmt.Errorf("%w: %v and %v", ErrTypeMismatch, a.Type, b.Type)
	}
	c := &Array{Type: a.Type, Shape: slices.Clone(shape)}
	switch d := a.Data.(type) {
	case []int16:
		c.Data = slices.Concat(d, b.Data.([]int16))
	case []int32:
		c.Data = slices.Concat(d, b.Data.([]int32))
	case []int64:
		c.Data = slices.Concat(d, b.Data.([]int64))
	case []float32:
		c.Data = slices.Concat(d, b.Data.([]float32))
	case []float64:
		c.Data = slices.Concat(d, b.Data.([]float64))
	case []string:
		c.Data = slices.Concat(d, b.Data.([]string))
	}
	if Product(shape) != c.Len() {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrShapeMismatch, c.Len(), shape)
	}
	return c, nil
}

// Grow returns a copy of a whose axis is extended to n, the new positions
// set to fill. A nil fill means the type's default fill value.
func Grow(a *Array, axis, n int, fill any) (*Array, error) {
	if axis < 0 || axis >= len(a.Shape) || n < a.Shape[axis] {
		return nil, fmt.Errorf("%w: cannot grow axis %d of %v to %d", ErrShapeMismatch, axis, a.Shape, n)
	}
	shape := slices.Clone(a.Shape)
	shape[axis] = n
	out, err := FillArray(a.Type, shape, fill)
	if err != nil {
		return nil, err
	}
	outer := Product(a.Shape[:axis])
	inner := Product(a.Shape[axis+1:])
	switch d := a.Data.(type) {
	case []int16:
		growCopy(out.Data.([]int16), d, outer, a.Shape[axis]*inner, n*inner)
	case []int32:
		growCopy(out.Data.([]int32), d, outer, a.Shape[axis]*inner, n*inner)
	case []int64:
		growCopy(out.Data.([]int64), d, outer, a.Shape[axis]*inner, n*inner)
	case []float32:
		growCopy(out.Data.([]float32), d, outer, a.Shape[axis]*inner, n*inner)
	case []float64:
		growCopy(out.Data.([]float64), d, outer, a.Shape[axis]*inner, n*inner)
	case []string:
		growCopy(out.Data.([]string), d, outer, a.Shape[axis]*inner, n*inner)
	}
	return out, nil
}

func growCopy[T Element](dst, src []T, outer, from, to int) {
	for o := range outer {
		copy(dst[o*to:o*to+from], src[o*from:(o+1)*from])
	}
}

// Unmark is the inverse of MarkMissing: every position in Missing is set to
// fill and Missing is cleared. A nil fill means the type's default.
func (a *Array) Unmark(fill any) error {
	if a.Missing == nil {
		return nil
	}
	f, err := FillArray(a.Type, nil, fill)
	if err != nil {
		return err
	}
	v := f.Index(0)
	it := a.Missing.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		switch d := a.Data.(type) {
		case []int16:
			d[i] = v.(int16)
		case []int32:
			d[i] = v.(int32)
		case []int64:
			d[i] = v.(int64)
		case []float32:
			d[i] = v.(float32)
		case []float64:
			d[i] = v.(float64)
		case []string:
			d[i] = v.(string)
		}
	}
	a.Missing = nil
	return nil
}
