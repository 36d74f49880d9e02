package obs

import (
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

func TestMissingValue(t *testing.T) {
	for _, name := range []string{"obs.ioda", "obs.nc"} {
		t.Run(name, func(t *testing.T) {
			g, path := newGroup(t, name)
			v, err := g.CreateVariable(NewPath("temperature"), types.Float32, []string{"nlocs"}, api.Params{})
			require.NoError(t, err)
			require.NoError(t, v.Write([]float32{288.1, 290, 9e37}))
			require.NoError(t, g.File().Close())

			r := reopen(t, path, engines.ReadOnly)
			v, err = r.OpenVariable(NewPath("temperature"))
			require.NoError(t, err)
			a, err := v.Read()
			require.NoError(t, err)
			got, err := types.Values[float32](a)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.InDelta(t, 288.1, got[0], 1e-4)
			assert.InDelta(t, 290.0, got[1], 1e-4)
			assert.True(t, math.IsNaN(float64(got[2])))
			assert.False(t, a.IsMissing(1))
			assert.True(t, a.IsMissing(2))
		})
	}
}

func TestRoundTripTypes(t *testing.T) {
	values := map[types.Type]any{
		types.Int16:   []int16{-7, 0, math.MaxInt16},
		types.Int32:   []int32{math.MinInt32 + 2, 1, 2},
		types.Int64:   []int64{1 << 40, -1, 0},
		types.Float32: []float32{1.5, -2.25, 0},
		types.Float64: []float64{math.Pi, -1e300, 0},
		types.String:  []string{"a", "", "héllo"},
	}
	for _, name := range []string{"obs.ioda", "obs.nc"} {
		t.Run(name, func(t *testing.T) {
			g, path := newGroup(t, name)
			for typ, data := range values {
				v, err := g.CreateVariable(NewPath("MetaData", "v_"+typ.String()), typ, []string{"nlocs"}, api.Params{})
				require.NoError(t, err)
				require.NoError(t, v.Write(data))
			}
			require.NoError(t, g.File().Close())

			r := reopen(t, path, engines.ReadOnly)
			for typ, data := range values {
				v, err := r.OpenVariable(NewPath("MetaData", "v_"+typ.String()))
				require.NoError(t, err, typ)
				assert.Equal(t, typ, v.Type())
				a, err := v.Read()
				require.NoError(t, err, typ)
				assert.Equal(t, data, a.Data, typ)
			}
		})
	}
}

func TestReadLengthFollowsScale(t *testing.T) {
	for _, length := range []int{0, 1, 17} {
		f := engines.OpenMemory()
		g, err := Generate(f, []DimensionScale{NewDimensionScale("nobs", types.Int32, length, 4, false)})
		require.NoError(t, err)
		v, err := g.CreateVariable(NewPath("x"), types.Float64, []string{"nobs"}, api.Params{})
		require.NoError(t, err)
		a, err := v.Read()
		require.NoError(t, err)
		assert.Equal(t, length, a.Len())
		assert.Equal(t, []int{4}, v.Params().Chunks)
	}
}

func TestUnwrittenReadsFill(t *testing.T) {
	g, _ := newGroup(t, "obs.ioda")
	v, err := g.CreateVariable(NewPath("count"), types.Int32, []string{"nlocs"}, api.Params{Fill: int32(-1)})
	require.NoError(t, err)
	a, err := v.Read()
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, -1, -1}, a.Data)

	// Float defaults are beyond the missing threshold.
	v, err = g.CreateVariable(NewPath("t"), types.Float32, []string{"nlocs"}, api.Params{})
	require.NoError(t, err)
	a, err = v.Read()
	require.NoError(t, err)
	assert.EqualValues(t, 3, a.Missing.GetCardinality())
}

func TestCreateVariableFailures(t *testing.T) {
	g, _ := newGroup(t, "obs.ioda")
	v, err := g.CreateVariable(NewPath("temperature"), types.Float32, []string{"nlocs"}, api.Params{})
	require.NoError(t, err)
	require.NoError(t, v.Write([]float32{1, 2, 3}))

	cases := []struct {
		name   string
		path   Path
		typ    types.Type
		scales []string
		params api.Params
		want   error
	}{
		{"duplicate", NewPath("temperature"), types.Float64, []string{"nlocs"}, api.Params{}, api.ErrDuplicatePath},
		{"no scales", NewPath("x"), types.Float32, nil, api.Params{}, api.ErrDimensionMismatch},
		{"unknown scale", NewPath("x"), types.Float32, []string{"nobs"}, api.Params{}, api.ErrDimensionMismatch},
		{"unknown scale with chunks", NewPath("x"), types.Float32, []string{"nobs"},
			api.Params{Chunks: []int{1}}, api.ErrDimensionMismatch},
		{"type", NewPath("x"), types.Invalid, []string{"nlocs"}, api.Params{}, api.ErrUnsupportedType},
		{"fill", NewPath("x"), types.Float32, []string{"nlocs"}, api.Params{Fill: 1.0}, api.ErrTypeMismatch},
		{"name", NewPath("x@y"), types.Float32, []string{"nlocs"}, api.Params{}, api.ErrInvalidName},
		{"empty", nil, types.Float32, []string{"nlocs"}, api.Params{}, api.ErrInvalidName},
		{"params", NewPath("x"), types.Float32, []string{"nlocs"},
			api.Params{Compression: api.CompressionGzip, Level: 12}, api.ErrInvalidParams},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := g.CreateVariable(c.path, c.typ, c.scales, c.params)
			assert.ErrorIs(t, err, c.want)
		})
	}

	a, err := v.Read()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, a.Data)
	_, err = g.OpenVariable(NewPath("x"))
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestWriteFailures(t *testing.T) {
	g, path := newGroup(t, "obs.ioda")
	v, err := g.CreateVariable(NewPath("temperature"), types.Float32, []string{"nlocs"}, api.Params{})
	require.NoError(t, err)
	require.NoError(t, v.Write([]float32{1, 2, 3}))

	assert.ErrorIs(t, v.Write([]float32{1, 2}), api.ErrShapeMismatch)
	assert.ErrorIs(t, v.Write([][]float32{{1}, {2}, {3}}), api.ErrShapeMismatch)
	assert.ErrorIs(t, v.Write([]float64{1, 2, 3}), api.ErrTypeMismatch)
	assert.ErrorIs(t, v.Write(struct{}{}), api.ErrUnsupportedType)
	assert.ErrorIs(t, v.Write(&types.Array{Type: types.Float32, Shape: []int{3}, Data: []float32{1}}),
		api.ErrShapeMismatch)
	assert.ErrorIs(t, v.Write(&types.Array{Type: types.Float32, Shape: []int{3}, Data: []float64{1, 2, 3}}),
		api.ErrTypeMismatch)
	assert.ErrorIs(t, v.Write(&types.Array{Type: types.Float32, Shape: []int{3}, Data: []float32{1, 2, 3},
		Missing: roaring.BitmapOf(5)}), api.ErrShapeMismatch)

	a, err := v.Read()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, a.Data)

	require.NoError(t, g.File().Close())
	r := reopen(t, path, engines.ReadOnly)
	v, err = r.OpenVariable(NewPath("temperature"))
	require.NoError(t, err)
	a, err = v.Read()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, a.Data, "rejected writes leave the file intact")
	assert.ErrorIs(t, v.Write([]float32{4, 5, 6}), api.ErrWriteProtected)
}

func TestColumnVariable(t *testing.T) {
	f := engines.OpenMemory()
	g, err := Generate(f, []DimensionScale{
		NewDimensionScale("nlocs", types.Int32, 3, 0, true),
		NewDimensionScale("one", types.Int32, 1, 0, false),
	})
	require.NoError(t, err)
	v, err := g.CreateVariable(NewPath("x"), types.Int64, []string{"nlocs", "one"}, api.Params{})
	require.NoError(t, err)
	require.NoError(t, v.Write([]int64{7, 8, 9}))
	shape, err := v.Shape()
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, shape)

	a, err := v.Read()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, a.Shape)
	assert.Equal(t, []int64{7, 8, 9}, a.Data)
}

func TestWriteBackKeepsMissing(t *testing.T) {
	cases := []struct {
		name   string
		typ    types.Type
		fill   any
		data   any
		stored any
	}{
		{"float64 data fill", types.Float64, -999.0, []float64{1, 9e37, 3}, types.DefaultFill(types.Float64)},
		{"float32 data fill", types.Float32, float32(-999), []float32{1, 9e37, 3}, types.DefaultFill(types.Float32)},
		{"missing fill", types.Float64, 9.5e36, []float64{1, 9e37, 3}, 9.5e36},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g, path := newGroup(t, "obs.ioda")
			v, err := g.CreateVariable(NewPath("t"), c.typ, []string{"nlocs"}, api.Params{Fill: c.fill})
			require.NoError(t, err)
			require.NoError(t, v.Write(c.data))
			a, err := v.Read()
			require.NoError(t, err)
			require.True(t, a.IsMissing(1))

			require.NoError(t, v.Write(a))
			ds, err := g.File().Dataset()
			require.NoError(t, err)
			sv, _ := ds.Var("t")
			assert.Equal(t, c.stored, sv.Data.Index(1))
			a, err = v.Read()
			require.NoError(t, err)
			assert.True(t, a.IsMissing(1))
			assert.False(t, a.IsMissing(0))
			require.NoError(t, g.File().Close())

			v, err = reopen(t, path, engines.ReadOnly).OpenVariable(NewPath("t"))
			require.NoError(t, err)
			assert.Equal(t, c.fill, v.Params().Fill)
			a, err = v.Read()
			require.NoError(t, err)
			assert.True(t, a.IsMissing(1))
		})
	}
}
