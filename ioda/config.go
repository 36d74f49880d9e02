package ioda

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/obs"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// ErrConfig is returned for configuration documents that cannot be used.
var ErrConfig = errors.New("invalid configuration")

// Mode is how an ObsSpace opens its file.
type Mode string

const (
	ModeRead      Mode = "r"
	ModeWrite     Mode = "w" // create, truncating an existing file
	ModeReadWrite Mode = "rw"
)

func (m Mode) reads() bool  { return strings.Contains(string(m), "r") }
func (m Mode) writes() bool { return strings.Contains(string(m), "w") }

// Dimension is one entry of the dimensions mapping.
type Dimension struct {
	Name   string
	Length int
}

// Dimensions keep the order in which the document lists them, which is
// the order of the generated dimension scales.
type Dimensions []Dimension

func (ds *Dimensions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: dimensions must be a mapping", ErrConfig, node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		var d Dimension
		if err := node.Content[i].Decode(&d.Name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&d.Length); err != nil {
			return fmt.Errorf("%w: dimension %q: %w", ErrConfig, d.Name, err)
		}
		*ds = append(*ds, d)
	}
	return nil
}

// Config describes an ObsSpace. It is read from YAML or TOML:
//
//	name: amsua_n19
//	obsfile: ${DATA}/amsua_n19.nc
//	mode: w
//	dimensions:
//	  nlocs: 3
//	  nchans: 15
type Config struct {
	// Name is used in messages only.
	Name    string `yaml:"name" toml:"name"`
	ObsFile string `yaml:"obsfile" toml:"obsfile"`
	Mode    Mode   `yaml:"mode" toml:"mode"`
	// Engine names the container format. Empty picks it from the file:
	// its magic number when reading, its extension when creating.
	Engine       string `yaml:"engine" toml:"engine"`
	LayoutPolicy *int   `yaml:"layout_policy" toml:"layout_policy"`
	// RecordDimension is the unlimited dimension; nlocs by default.
	RecordDimension string     `yaml:"record_dimension" toml:"record_dimension"`
	Dimensions      Dimensions `yaml:"dimensions" toml:"-"`
	// Compression of new variables; gzip by default.
	Compression string `yaml:"compression" toml:"compression"`
}

// tomlConfig receives the dimensions table, whose order only the
// metadata keeps.
type tomlConfig struct {
	Config
	Dimensions map[string]int `toml:"dimensions"`
}

// LoadConfig reads a configuration file. Files ending in .toml are TOML,
// everything else is YAML. Environment variables in the file path are
// expanded.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrPath, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(b)
	}
	return ParseYAML(b)
}

func ParseYAML(b []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return c.normalize(), nil
}

func ParseTOML(b []byte) (*Config, error) {
	tc := &tomlConfig{}
	md, err := toml.Decode(string(b), tc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrConfig, undecoded)
	}
	c := tc.Config
	for _, key := range md.Keys() {
		if len(key) == 2 && key[0] == "dimensions" {
			c.Dimensions = append(c.Dimensions, Dimension{Name: key[1], Length: tc.Dimensions[key[1]]})
		}
	}
	return c.normalize(), nil
}

func (c *Config) normalize() *Config {
	c.ObsFile = os.ExpandEnv(c.ObsFile)
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	if c.Mode == "" {
		c.Mode = ModeRead
	}
	if c.RecordDimension == "" {
		c.RecordDimension = obs.RecordDimension
	}
	return c
}

// Layout is the configured layout policy. Without one, the engine's
// default is used.
func (c *Config) Layout() (api.Layout, bool) {
	if c.LayoutPolicy == nil {
		return 0, false
	}
	return api.Layout(*c.LayoutPolicy), true
}

// Validate checks the configuration without touching the file system.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRead, ModeWrite, ModeReadWrite:
	default:
		return fmt.Errorf("%w: mode %q is not one of r, w, rw", ErrConfig, c.Mode)
	}
	if c.ObsFile == "" {
		return fmt.Errorf("%w: obsfile is required", ErrConfig)
	}
	if l, ok := c.Layout(); ok {
		if _, err := obs.PolicyFor(l); err != nil {
			return err
		}
	}
	if _, err := api.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Mode == ModeWrite && len(c.Dimensions) == 0 {
		return fmt.Errorf("%w: mode w needs dimensions", ErrConfig)
	}
	seen := map[string]bool{}
	for _, d := range c.Dimensions {
		if !internal.IsValidName(d.Name) {
			return fmt.Errorf("%w: dimension %q", api.ErrInvalidName, d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: %q", api.ErrDuplicateDimension, d.Name)
		}
		seen[d.Name] = true
		if d.Length < 0 {
			return fmt.Errorf("%w: %q has length %d", api.ErrInvalidDimension, d.Name, d.Length)
		}
	}
	return nil
}

// scales turns the dimensions into scales. The record dimension is the
// unlimited one; each dimension is chunked by its own length.
func (c *Config) scales() []obs.DimensionScale {
	var scales []obs.DimensionScale
	for _, d := range c.Dimensions {
		scales = append(scales, obs.NewDimensionScale(d.Name, types.Int32, d.Length, d.Length, d.Name == c.RecordDimension))
	}
	return scales
}
