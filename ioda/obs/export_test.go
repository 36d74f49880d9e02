package obs

import (
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

func TestExport(t *testing.T) {
	g, path := newGroup(t, "obs.ioda")
	require.NoError(t, g.Attributes().Write("platform", "noaa-19"))
	meta, err := g.CreateGroup(NewPath("MetaData"))
	require.NoError(t, err)
	require.NoError(t, meta.Attributes().Write("source", "synthetic"))
	lat, err := g.CreateVariable(MustParsePath("MetaData/latitude"), types.Float32, []string{"nlocs"}, api.Params{})
	require.NoError(t, err)
	require.NoError(t, lat.Write([]float32{-45, 9e37, 60}))
	require.NoError(t, lat.Attributes().Write("units", "degrees_north"))
	bt, err := g.CreateVariable(MustParsePath("ObsValue/brightness_temperature"), types.Float64,
		[]string{"nlocs", "nchans"}, api.Params{Compression: api.CompressionZstd, Fill: -999.0})
	require.NoError(t, err)
	require.NoError(t, bt.Write([][]float64{{200, 9e37}, {202, 203}, {204, 205}}))
	_, err = g.CreateVariable(MustParsePath("ObsError/brightness_temperature"), types.Float64,
		[]string{"nlocs", "nchans"}, api.Params{})
	require.NoError(t, err)
	require.NoError(t, g.File().Close())

	for _, name := range []string{"copy.nc", "copy.ioda"} {
		t.Run(name, func(t *testing.T) {
			src := reopen(t, path, engines.ReadOnly)
			outPath := filepath.Join(t.TempDir(), name)
			f, err := engines.CreateFile(outPath)
			require.NoError(t, err)
			_, err = Export(src, f)
			require.NoError(t, err)
			require.NoError(t, f.Close())

			r := reopen(t, outPath, engines.ReadOnly)
			assert.Equal(t, slices.Collect(src.Dimensions()), slices.Collect(r.Dimensions()))
			assert.Equal(t, slices.Collect(src.Variables(true)), slices.Collect(r.Variables(true)))
			assert.ElementsMatch(t, slices.Collect(src.Groups(true)), slices.Collect(r.Groups(true)))
			assert.Equal(t, []string{"platform"}, slices.Collect(r.Attributes().List()))

			m, err := r.Group(NewPath("MetaData"))
			require.NoError(t, err)
			a, err := m.Attributes().Open("source")
			require.NoError(t, err)
			v, err := a.Value()
			require.NoError(t, err)
			assert.Equal(t, "synthetic", v)

			lat, err := r.OpenVariable(MustParsePath("MetaData/latitude"))
			require.NoError(t, err)
			data, err := lat.Read()
			require.NoError(t, err)
			got, err := types.Values[float32](data)
			require.NoError(t, err)
			assert.Equal(t, float32(-45), got[0])
			assert.True(t, math.IsNaN(float64(got[1])))
			units, err := lat.Attributes().Open("units")
			require.NoError(t, err)
			v, err = units.Value()
			require.NoError(t, err)
			assert.Equal(t, "degrees_north", v)

			bt, err := r.OpenVariable(MustParsePath("ObsValue/brightness_temperature"))
			require.NoError(t, err)
			assert.Equal(t, -999.0, bt.Params().Fill)
			data, err = bt.Read()
			require.NoError(t, err)
			values, err := types.Values[float64](data)
			require.NoError(t, err)
			assert.True(t, data.IsMissing(1), "missing despite the -999 fill")
			assert.True(t, math.IsNaN(values[1]))
			assert.Equal(t, []float64{200, 202, 203, 204, 205}, slices.Delete(values, 1, 2))

			nlocs, err := r.OpenVariable(NewPath("nlocs"))
			require.NoError(t, err)
			data, err = nlocs.Read()
			require.NoError(t, err)
			assert.Equal(t, []int32{1, 2, 3}, data.Data)
		})
	}
}

func TestExportNeedsEmptyFile(t *testing.T) {
	src, _ := newGroup(t, "obs.ioda")
	dst, _ := newGroup(t, "other.ioda")
	_, err := Export(src, dst.File())
	assert.ErrorIs(t, err, api.ErrDuplicateGroup)
}
