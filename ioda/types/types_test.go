package types

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kelvin float32

func TestClassify(t *testing.T) {
	when := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		val  any
		want Type
	}{
		{"int8 widens", int8(3), Int16},
		{"int16", []int16{1, 2}, Int16},
		{"int32", []int32{1}, Int32},
		{"int", []int{1, 2, 3}, Int64},
		{"int64", int64(7), Int64},
		{"float32", [][]float32{{1}, {2}}, Float32},
		{"named float", []kelvin{288.1}, Float32},
		{"float64", [3]float64{}, Float64},
		{"string", "K", String},
		{"strings", []string{"a", "b"}, String},
		{"time as text", []time.Time{when}, String},
		{"interfaces", []any{float64(1), float64(2)}, Float64},
		{"empty", []float32{}, Float32},
	}
	for _, c := range cases {
		got, err := Classify(c.val)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestClassifyUnsupported(t *testing.T) {
	for _, v := range []any{nil, true, []bool{true}, uint8(1), complex(1, 2),
		map[string]int{}, struct{ a int }{1}, []any{}} {
		_, err := Classify(v)
		assert.ErrorIs(t, err, ErrUnsupportedType, "%#v", v)
	}
}

func TestFromValueShape(t *testing.T) {
	a, err := FromValue([][]int32{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, a.Shape)
	v, err := Values[int32](a)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, v)

	s, err := FromValue(float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, 1, s.Len())

	_, err = FromValue([][]int32{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = FromValue([]any{int32(1), float32(2)})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFromValueArray(t *testing.T) {
	good, err := NewArray([]int{2}, []int32{1, 2})
	require.NoError(t, err)
	a, err := FromValue(good)
	require.NoError(t, err)
	assert.Same(t, good, a)

	missing := roaring.BitmapOf(2)
	cases := []struct {
		name string
		arr  *Array
		want error
	}{
		{"short data", &Array{Type: Float32, Shape: []int{3}, Data: []float32{1}}, ErrShapeMismatch},
		{"negative shape", &Array{Type: Int16, Shape: []int{-1}, Data: []int16{}}, ErrShapeMismatch},
		{"data type", &Array{Type: Float32, Shape: []int{2}, Data: []float64{1, 2}}, ErrTypeMismatch},
		{"no data", &Array{Type: Int32, Shape: []int{2}}, ErrTypeMismatch},
		{"missing out of range", &Array{Type: Float64, Shape: []int{2}, Data: []float64{1, 2}, Missing: missing}, ErrShapeMismatch},
		{"nil", nil, ErrUnsupportedType},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := FromValue(c.arr)
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestFromValueText(t *testing.T) {
	when := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := FromValue([]time.Time{when})
	require.NoError(t, err)
	v, err := Values[string](a)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021-06-01T12:00:00Z"}, v)
}

func TestDescribe(t *testing.T) {
	widths := map[Type]int{Int16: 2, Int32: 4, Int64: 8, Float32: 4, Float64: 8}
	for typ, w := range widths {
		d, err := Describe(typ)
		require.NoError(t, err)
		assert.Equal(t, w, d.Width, typ.String())
		assert.False(t, d.IsString)
	}
	d, err := Describe(String)
	require.NoError(t, err)
	assert.True(t, d.IsString)
	_, err = Describe(Invalid)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestParseType(t *testing.T) {
	for s, want := range map[string]Type{"short": Int16, "int": Int32, "int64": Int64,
		"float": Float32, "double": Float64, "str": String} {
		got, err := ParseType(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseType("complex")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestMarkMissing(t *testing.T) {
	a, err := NewArray([]int{3}, []float32{288.1, 290.0, 9e37})
	require.NoError(t, err)
	assert.Equal(t, 1, a.MarkMissing())
	v, _ := Values[float32](a)
	assert.InDelta(t, 288.1, v[0], 1e-4)
	assert.InDelta(t, 290.0, v[1], 1e-4)
	assert.True(t, math.IsNaN(float64(v[2])))
	assert.True(t, a.IsMissing(2))
	assert.False(t, a.IsMissing(0))

	d, err := NewArray([]int{2}, []float64{-1e37, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, d.MarkMissing())
	assert.True(t, d.IsMissing(0))

	i, err := NewArray([]int{1}, []int32{math.MaxInt32})
	require.NoError(t, err)
	assert.Equal(t, 0, i.MarkMissing())
}

func TestDefaultFillIsMissing(t *testing.T) {
	assert.True(t, IsMissingValue(float64(DefaultFill(Float32).(float32))))
	assert.True(t, IsMissingValue(DefaultFill(Float64).(float64)))
}

func TestCollapse(t *testing.T) {
	a, err := NewArray([]int{3, 1}, []int16{1, 2, 3})
	require.NoError(t, err)
	c := a.Collapse()
	assert.Equal(t, []int{3}, c.Shape)
	assert.Equal(t, []int{3, 1}, a.Shape, "collapse must not alter the source")

	b, err := NewArray([]int{1, 3}, []int16{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, b.Collapse().Shape)
}

func TestFillArray(t *testing.T) {
	a, err := FillArray(Int32, []int{2, 2}, int32(-999))
	require.NoError(t, err)
	v, _ := Values[int32](a)
	assert.Equal(t, []int32{-999, -999, -999, -999}, v)

	_, err = FillArray(Int32, []int{2}, float32(1))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	s, err := FillArray(String, []int{2}, nil)
	require.NoError(t, err)
	sv, _ := Values[string](s)
	assert.Equal(t, []string{"", ""}, sv)
}

func TestValuesMismatch(t *testing.T) {
	a, err := NewArray([]int{1}, []float64{1})
	require.NoError(t, err)
	_, err = Values[float32](a)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = NewArray([]int{2, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestConcat(t *testing.T) {
	a, _ := NewArray([]int{2}, []string{"a", "b"})
	b, _ := NewArray([]int{1}, []string{"c"})
	c, err := Concat(a, b, []int{3})
	require.NoError(t, err)
	v, _ := Values[string](c)
	assert.Equal(t, []string{"a", "b", "c"}, v)
}

func TestGrow(t *testing.T) {
	a, _ := NewArray([]int{2, 2}, []int32{1, 2, 3, 4})
	rows, err := Grow(a, 0, 3, int32(-1))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, rows.Shape)
	assert.Equal(t, []int32{1, 2, 3, 4, -1, -1}, rows.Data)

	cols, err := Grow(a, 1, 3, int32(0))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 0, 3, 4, 0}, cols.Data)
	assert.Equal(t, []int32{1, 2, 3, 4}, a.Data, "source untouched")

	_, err = Grow(a, 0, 1, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = Grow(a, 2, 3, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestUnmark(t *testing.T) {
	a, _ := NewArray([]int{3}, []float32{1, 9e37, 2})
	require.Equal(t, 1, a.MarkMissing())
	require.NoError(t, a.Unmark(nil))
	assert.Nil(t, a.Missing)
	v, _ := Values[float32](a)
	assert.Equal(t, DefaultFill(Float32), v[1])
	assert.Equal(t, float32(2), v[2])
}
