package ioda

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

func writeConfig(path string) *Config {
	return (&Config{
		Name:       "test",
		ObsFile:    path,
		Mode:       ModeWrite,
		Dimensions: Dimensions{{"nlocs", 3}, {"nchans", 2}},
	}).normalize()
}

func TestObsSpace(t *testing.T) {
	for _, name := range []string{"obs.ioda", "obs.nc"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			s, err := Open(writeConfig(path))
			require.NoError(t, err)
			assert.Equal(t, "ObsSpace(test,"+path+")", s.String())

			temp, err := s.CreateVar("air_temperature", "ObsValue", types.Float32, nil, float32(-999))
			require.NoError(t, err)
			require.NoError(t, temp.WriteData([]float32{288.1, -999, 9e37}))
			require.NoError(t, temp.WriteAttr("units", "K"))
			bt, err := s.CreateVar("brightness_temperature", "ObsValue", types.Float64, []string{"nlocs", "nchans"}, nil)
			require.NoError(t, err)
			require.NoError(t, bt.WriteData([][]float64{{1, 2}, {3, 4}, {5, 6}}))
			when, err := s.CreateVar("datetime", "MetaData", types.String, nil, nil)
			require.NoError(t, err)
			require.NoError(t, when.WriteData([]string{"2020-12-14T21:00:00Z", "2020-12-14T21:30:00Z", "2020-12-15T00:00:00Z"}))
			require.NoError(t, s.WriteAttr("platform", "noaa-19"))
			require.NoError(t, s.WriteAttr("channels", []int32{1, 2}))

			_, err = s.CreateVar("air_temperature", "ObsValue", types.Float32, nil, nil)
			assert.ErrorIs(t, err, api.ErrDuplicatePath)
			require.NoError(t, s.Close())

			cfg := &Config{ObsFile: path, Mode: ModeRead}
			r, err := Open(cfg.normalize())
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, []string{"nlocs", "nchans"}, r.Dimensions())
			assert.Equal(t, []string{"ObsValue", "MetaData"}, r.Groups())
			assert.Equal(t, []string{"platform", "channels"}, r.Attributes())
			assert.Equal(t, 5, r.NVars())
			n, err := r.NLocs()
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			temp, err = r.Variable("air_temperature", "ObsValue")
			require.NoError(t, err)
			assert.Equal(t, "ObsValue/air_temperature", temp.Name())
			assert.Equal(t, []string{"units"}, temp.Attributes())
			units, err := temp.Attr("units")
			require.NoError(t, err)
			assert.Equal(t, "K", units)
			a, err := temp.ReadData()
			require.NoError(t, err)
			got, err := types.Values[float32](a)
			require.NoError(t, err)
			assert.InDelta(t, 288.1, got[0], 1e-4)
			assert.Equal(t, float32(-999), got[1])
			assert.True(t, math.IsNaN(float64(got[2])))

			when, err = r.Variable("datetime", "MetaData")
			require.NoError(t, err)
			assert.True(t, when.IsDatetime())
			times, err := when.ReadDatetimes()
			require.NoError(t, err)
			require.Len(t, times, 3)
			assert.Equal(t, time.Date(2020, 12, 14, 21, 30, 0, 0, time.UTC), times[1])

			assert.ErrorIs(t, r.WriteAttr("history", "edited"), api.ErrWriteProtected)
			_, err = r.Variable("air_temperature", "ObsError")
			assert.ErrorIs(t, err, api.ErrNotFound)
		})
	}
}

func TestObsSpaceAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.ioda")
	s, err := Open(writeConfig(path))
	require.NoError(t, err)
	v, err := s.CreateVar("count", "ObsValue", types.Int32, nil, int32(0))
	require.NoError(t, err)
	require.NoError(t, v.WriteData([]int32{1, 2, 3}))
	require.NoError(t, s.Close())

	cfg := &Config{ObsFile: path, Mode: ModeReadWrite}
	s, err = Open(cfg.normalize())
	require.NoError(t, err)
	require.NoError(t, s.Resize(5))
	v, err = s.Variable("count", "ObsValue")
	require.NoError(t, err)
	a, err := v.ReadData()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 0, 0}, a.Data)
	require.NoError(t, v.WriteData([]int32{1, 2, 3, 4, 5}))
	require.NoError(t, s.Close())

	s, err = Open((&Config{ObsFile: path}).normalize())
	require.NoError(t, err)
	defer s.Close()
	n, err := s.NLocs()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestOpenPaths(t *testing.T) {
	dir := t.TempDir()
	_, err := Open((&Config{ObsFile: filepath.Join(dir, "missing.ioda")}).normalize())
	assert.ErrorIs(t, err, api.ErrPath)
	_, err = Open(writeConfig(filepath.Join(dir, "missing", "obs.ioda")))
	assert.ErrorIs(t, err, api.ErrPath)

	cfg := writeConfig(filepath.Join(dir, "obs.ioda"))
	cfg.Engine = "hdf4"
	_, err = Open(cfg)
	assert.ErrorIs(t, err, api.ErrUnknownFormat)
}

func TestOpenWithEngineAndLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.dat")
	layout := int(api.LayoutFlat)
	cfg := writeConfig(path)
	cfg.Engine = "netcdf"
	cfg.LayoutPolicy = &layout
	cfg.Compression = "none"
	s, err := Open(cfg)
	require.NoError(t, err)
	_, err = s.CreateVar("latitude", "MetaData", types.Float32, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	r, err := Open((&Config{ObsFile: path, LayoutPolicy: &layout}).normalize())
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "netcdf", r.Group().File().Engine().Name())
	assert.Contains(t, r.Variables(), "MetaData/latitude")
}
