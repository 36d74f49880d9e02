package ioda

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-ioda/ioda/api"
)

const yamlConfig = `
name: amsua_n19
obsfile: ${IODA_TEST_DIR}/amsua.nc
mode: W
layout_policy: 1
dimensions:
  nlocs: 3
  nchans: 15
  nvars: 2
compression: zstd
`

const tomlConfigText = `
name = "amsua_n19"
obsfile = "${IODA_TEST_DIR}/amsua.ioda"
mode = "w"

[dimensions]
nlocs = 3
nchans = 15
nvars = 2
`

func TestLoadConfig(t *testing.T) {
	t.Setenv("IODA_TEST_DIR", "/data")
	dir := t.TempDir()
	want := Dimensions{{"nlocs", 3}, {"nchans", 15}, {"nvars", 2}}

	yamlPath := filepath.Join(dir, "obs.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlConfig), 0o644))
	c, err := LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "amsua_n19", c.Name)
	assert.Equal(t, "/data/amsua.nc", c.ObsFile)
	assert.Equal(t, ModeWrite, c.Mode)
	assert.Equal(t, "nlocs", c.RecordDimension)
	assert.Equal(t, want, c.Dimensions)
	l, ok := c.Layout()
	assert.True(t, ok)
	assert.Equal(t, api.LayoutFlat, l)
	assert.NoError(t, c.Validate())

	tomlPath := filepath.Join(dir, "obs.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlConfigText), 0o644))
	c, err = LoadConfig(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "/data/amsua.ioda", c.ObsFile)
	assert.Equal(t, want, c.Dimensions)
	_, ok = c.Layout()
	assert.False(t, ok)
	assert.NoError(t, c.Validate())

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, api.ErrPath)
}

func TestParseErrors(t *testing.T) {
	_, err := ParseYAML([]byte("obsfile: x\nunknown: 1\n"))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ParseYAML([]byte("obsfile: x\ndimensions: [nlocs]\n"))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ParseYAML([]byte("obsfile: x\ndimensions:\n  nlocs: many\n"))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ParseTOML([]byte("obsfile = \"x\"\nunknown = 1\n"))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ParseTOML([]byte("obsfile = \n"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestValidate(t *testing.T) {
	layout := 5
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"mode", Config{ObsFile: "x", Mode: "a"}, ErrConfig},
		{"no file", Config{Mode: ModeRead}, ErrConfig},
		{"layout", Config{ObsFile: "x", Mode: ModeRead, LayoutPolicy: &layout}, api.ErrInvalidLayout},
		{"compression", Config{ObsFile: "x", Mode: ModeRead, Compression: "szip"}, ErrConfig},
		{"no dimensions", Config{ObsFile: "x", Mode: ModeWrite}, ErrConfig},
		{"dimension name", Config{ObsFile: "x", Mode: ModeWrite, Dimensions: Dimensions{{"n locs ", 1}}}, api.ErrInvalidName},
		{"duplicate", Config{ObsFile: "x", Mode: ModeWrite, Dimensions: Dimensions{{"nlocs", 1}, {"nlocs", 2}}},
			api.ErrDuplicateDimension},
		{"negative", Config{ObsFile: "x", Mode: ModeWrite, Dimensions: Dimensions{{"nlocs", -1}}}, api.ErrInvalidDimension},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, c.cfg.Validate(), c.want)
		})
	}
}
