// Package api is common to the container engines. It holds the persisted
// schema every engine reads and writes, the Engine interface, and the error
// taxonomy shared by all layers.
package api

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/batchatco/go-native-ioda/ioda/types"
	"github.com/batchatco/go-native-ioda/ioda/util"
)

// Compression selects the block codec of a variable.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
	CompressionLZ4
)

var compressionNames = [...]string{"none", "gzip", "zstd", "lz4"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression accepts the names printed by String. An empty string
// means no compression.
func ParseCompression(s string) (Compression, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CompressionNone, nil
	}
	for i, name := range compressionNames {
		if s == name {
			return Compression(i), nil
		}
	}
	return CompressionNone, fmt.Errorf("unknown compression %q", s)
}

// Params are the creation parameters of a variable.
type Params struct {
	Compression Compression
	// Level is codec specific: 1-9 for gzip, 1-4 for zstd, 0 picks the default.
	Level   int
	Shuffle bool
	// Chunks has one chunk length per dimension. Nil means one chunk per
	// dimension scale's own chunk length.
	Chunks []int
	// Fill must hold the Go type of the variable's Type. Nil means the
	// type's default fill value.
	Fill any
}

// Validate checks the codec and its level and that chunk lengths are
// positive. The fill value is checked against the variable's type elsewhere.
func (p Params) Validate() error {
	switch p.Compression {
	case CompressionNone, CompressionLZ4:
	case CompressionGzip:
		if p.Level < 0 || p.Level > 9 {
			return fmt.Errorf("%w: gzip level %d out of range 1-9", ErrInvalidParams, p.Level)
		}
	case CompressionZstd:
		if p.Level < 0 || p.Level > 4 {
			return fmt.Errorf("%w: zstd level %d out of range 1-4", ErrInvalidParams, p.Level)
		}
	default:
		return fmt.Errorf("%w: unknown compression %v", ErrInvalidParams, p.Compression)
	}
	for _, c := range p.Chunks {
		if c <= 0 {
			return fmt.Errorf("%w: chunk length %d must be positive", ErrInvalidParams, c)
		}
	}
	return nil
}

// Dim is a dimension as stored. Its coordinate variable has the same name.
type Dim struct {
	Name      string
	Length    int
	Unlimited bool
}

// AttributeMap holds attributes in creation order.
type AttributeMap = util.OrderedMap[*types.Array]

func NewAttributeMap() *AttributeMap {
	m, _ := util.NewOrderedMap[*types.Array](nil, nil)
	return m
}

// Group is a stored sub-group record. Name is the physical path, with
// segments separated by slashes.
type Group struct {
	Name  string
	Attrs *AttributeMap
}

// Var is a stored variable. Data is nil until the variable is written, in
// which case it reads back as its fill value.
type Var struct {
	Name   string
	Type   types.Type
	Dims   []string
	Params Params
	Attrs  *AttributeMap
	Data   *types.Array
}

// FillValue returns the variable's fill value, or the default for its type.
func (v *Var) FillValue() any {
	if v.Params.Fill != nil {
		return v.Params.Fill
	}
	return types.DefaultFill(v.Type)
}

// Dataset is the whole content of one container: the dimensions, the root
// group's attributes, sub-group records and variables.
type Dataset struct {
	Dims   []*Dim
	Attrs  *AttributeMap
	Groups []*Group
	Vars   []*Var

	// Dropped names stored objects the engine skipped while decoding.
	// Encoding such a dataset would delete them from the container.
	Dropped []string
}

func NewDataset() *Dataset {
	return &Dataset{Attrs: NewAttributeMap()}
}

func (ds *Dataset) Dim(name string) (*Dim, bool) {
	i := slices.IndexFunc(ds.Dims, func(d *Dim) bool { return d.Name == name })
	if i < 0 {
		return nil, false
	}
	return ds.Dims[i], true
}

func (ds *Dataset) Var(name string) (*Var, bool) {
	i := slices.IndexFunc(ds.Vars, func(v *Var) bool { return v.Name == name })
	if i < 0 {
		return nil, false
	}
	return ds.Vars[i], true
}

func (ds *Dataset) Group(name string) (*Group, bool) {
	i := slices.IndexFunc(ds.Groups, func(g *Group) bool { return g.Name == name })
	if i < 0 {
		return nil, false
	}
	return ds.Groups[i], true
}

// Unlimited returns the growable dimension, if there is one.
func (ds *Dataset) Unlimited() (*Dim, bool) {
	i := slices.IndexFunc(ds.Dims, func(d *Dim) bool { return d.Unlimited })
	if i < 0 {
		return nil, false
	}
	return ds.Dims[i], true
}

// Shape returns the current lengths of v's dimensions.
func (ds *Dataset) Shape(v *Var) ([]int, error) {
	shape := make([]int, len(v.Dims))
	for i, name := range v.Dims {
		d, has := ds.Dim(name)
		if !has {
			return nil, fmt.Errorf("%w: variable %q uses unknown dimension %q",
				ErrDimensionMismatch, v.Name, name)
		}
		shape[i] = d.Length
	}
	return shape, nil
}

// Validate checks that the dataset is self-consistent: unique names, at most
// one unlimited dimension, known dimensions, and data and fill values that
// agree with their variable's type and shape.
func (ds *Dataset) Validate() error {
	seen := map[string]bool{}
	unlimited := ""
	for _, d := range ds.Dims {
		if seen[d.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateDimension, d.Name)
		}
		seen[d.Name] = true
		if d.Length < 0 {
			return fmt.Errorf("%w: %q has length %d", ErrInvalidDimension, d.Name, d.Length)
		}
		if d.Unlimited {
			if unlimited != "" {
				return fmt.Errorf("%w: both %q and %q are unlimited",
					ErrInvalidDimension, unlimited, d.Name)
			}
			unlimited = d.Name
		}
	}
	clear(seen)
	for _, g := range ds.Groups {
		if seen[g.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateGroup, g.Name)
		}
		seen[g.Name] = true
	}
	clear(seen)
	for _, v := range ds.Vars {
		if seen[v.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicatePath, v.Name)
		}
		seen[v.Name] = true
		if err := ds.ValidateVar(v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateVar checks one variable against the dataset's dimensions.
func (ds *Dataset) ValidateVar(v *Var) error {
	if !v.Type.Valid() {
		return fmt.Errorf("%w: variable %q has %v", ErrUnsupportedType, v.Name, v.Type)
	}
	if len(v.Dims) == 0 {
		return fmt.Errorf("%w: variable %q has no dimensions", ErrDimensionMismatch, v.Name)
	}
	shape, err := ds.Shape(v)
	if err != nil {
		return err
	}
	if v.Params.Fill != nil {
		if _, err := types.FillArray(v.Type, nil, v.Params.Fill); err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}
	if err := v.Params.Validate(); err != nil {
		return fmt.Errorf("variable %q: %w", v.Name, err)
	}
	if v.Params.Chunks != nil && len(v.Params.Chunks) != len(v.Dims) {
		return fmt.Errorf("%w: variable %q has %d chunk lengths for %d dimensions",
			ErrDimensionMismatch, v.Name, len(v.Params.Chunks), len(v.Dims))
	}
	if v.Data == nil {
		return nil
	}
	if v.Data.Type != v.Type {
		return fmt.Errorf("%w: variable %q is %v, data is %v",
			ErrTypeMismatch, v.Name, v.Type, v.Data.Type)
	}
	if !slices.Equal(v.Data.Shape, shape) || v.Data.Len() != types.Product(shape) {
		return fmt.Errorf("%w: variable %q has shape %v, data has %v",
			ErrShapeMismatch, v.Name, shape, v.Data.Shape)
	}
	return nil
}

// Engine encodes and decodes a whole Dataset in one container format.
type Engine interface {
	// Name is the short name used in configuration, e.g. "ioda" or "netcdf".
	Name() string

	// Magic is the prefix every container of this format starts with.
	Magic() []byte

	// Hierarchical reports whether the format stores group records and
	// slash-separated variable names. Formats that don't are used with the
	// flat layout policy.
	Hierarchical() bool

	Decode(r io.ReadSeeker) (*Dataset, error)
	Encode(w io.Writer, ds *Dataset) error
}
