// Package obs is the Obs Group: one group of observations per container,
// holding dimension scales, variables under group paths, and attributes on
// the group, its sub-groups and its variables.
package obs

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// RecordDimension is the conventional name of the growable dimension.
const RecordDimension = "nlocs"

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level.
func SetLogLevel(level int) int {
	return int(logger.SetLogLevel(internal.LogLevel(level)))
}

// Group is the Obs Group of a file, or one of its sub-groups. Handles are
// invalid once the file is closed.
type Group struct {
	file *engines.File
	path Path // empty for the Obs Group itself
}

// Generate creates the Obs Group of a new, writable file. Every scale
// becomes a dimension and a coordinate variable numbered from 1.
func Generate(f *engines.File, scales []DimensionScale) (*Group, error) {
	ds, err := f.Dataset()
	if err != nil {
		return nil, err
	}
	if !f.Writable() {
		return nil, fmt.Errorf("%w: cannot generate an Obs Group", api.ErrWriteProtected)
	}
	if f.Bound() || len(ds.Dims) > 0 || len(ds.Vars) > 0 || len(ds.Groups) > 0 {
		return nil, fmt.Errorf("%w: the file already has an Obs Group", api.ErrDuplicateGroup)
	}
	if err := validateScales(scales); err != nil {
		return nil, err
	}
	policy, err := PolicyFor(f.Layout())
	if err != nil {
		return nil, err
	}
	if err := f.Bind(policy); err != nil {
		return nil, err
	}
	ds, _ = f.Dataset()
	for _, s := range scales {
		ds.Dims = append(ds.Dims, &api.Dim{Name: s.Name, Length: s.Length, Unlimited: s.Unlimited})
		ds.Vars = append(ds.Vars, &api.Var{
			Name:   s.Name,
			Type:   s.Type,
			Dims:   []string{s.Name},
			Params: api.Params{Chunks: []int{s.chunkLength()}},
			Attrs:  api.NewAttributeMap(),
			Data:   coordinates(s.Type, 0, s.Length),
		})
	}
	f.MarkDirty()
	logger.Infof("generated Obs Group with %d dimensions, %v layout", len(scales), policy.Layout())
	return &Group{file: f}, nil
}

// OpenExisting binds to the Obs Group stored in f, reading its names
// according to layout.
func OpenExisting(f *engines.File, layout api.Layout) (*Group, error) {
	if _, err := f.Dataset(); err != nil {
		return nil, err
	}
	policy, err := PolicyFor(layout)
	if err != nil {
		return nil, err
	}
	if err := f.Bind(policy); err != nil {
		return nil, err
	}
	logger.Infof("opened Obs Group of %s, %v layout", f.Path(), layout)
	return &Group{file: f}, nil
}

func (g *Group) File() *engines.File { return g.file }

// Path is the group's path from the Obs Group, empty for the Obs Group.
func (g *Group) Path() Path { return slices.Clone(g.path) }

func (g *Group) Name() string { return g.path.Name() }

func (g *Group) dataset() (*api.Dataset, error) {
	return g.file.Dataset()
}

func (g *Group) writable() (*api.Dataset, error) {
	ds, err := g.file.Dataset()
	if err != nil {
		return nil, err
	}
	if !g.file.Writable() {
		return nil, fmt.Errorf("%w: %s is read-only", api.ErrWriteProtected, g.file.Path())
	}
	return ds, nil
}

// relative returns name relative to the group, if it is inside it. Without
// recurse, only direct children qualify.
func (g *Group) relative(name string, recurse bool) (string, bool) {
	if len(g.path) > 0 {
		prefix := g.path.String() + "/"
		if !strings.HasPrefix(name, prefix) {
			return "", false
		}
		name = name[len(prefix):]
	}
	if !recurse && strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// Variables yields the paths of the variables in the group, relative to
// it. With recurse, variables of sub-groups are included.
func (g *Group) Variables(recurse bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		ds, err := g.dataset()
		if err != nil {
			return
		}
		for _, v := range slices.Clone(ds.Vars) {
			if rel, ok := g.relative(v.Name, recurse); ok && !yield(rel) {
				return
			}
		}
	}
}

// Groups yields the paths of the sub-groups, relative to the group.
func (g *Group) Groups(recurse bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		ds, err := g.dataset()
		if err != nil {
			return
		}
		for _, sg := range slices.Clone(ds.Groups) {
			if rel, ok := g.relative(sg.Name, recurse); ok && !yield(rel) {
				return
			}
		}
	}
}

// Dimensions yields the names of the dimensions, which every group shares.
func (g *Group) Dimensions() iter.Seq[string] {
	return func(yield func(string) bool) {
		ds, err := g.dataset()
		if err != nil {
			return
		}
		for _, d := range slices.Clone(ds.Dims) {
			if !yield(d.Name) {
				return
			}
		}
	}
}

// Attributes returns the group's attribute store.
func (g *Group) Attributes() *Attributes {
	if len(g.path) == 0 {
		return &Attributes{file: g.file, owner: "root group",
			lookup: func(ds *api.Dataset) (*api.AttributeMap, error) { return ds.Attrs, nil }}
	}
	name := g.path.String()
	return &Attributes{file: g.file, owner: "group " + name,
		lookup: func(ds *api.Dataset) (*api.AttributeMap, error) {
			sg, has := ds.Group(name)
			if !has {
				return nil, fmt.Errorf("%w: group %q", api.ErrNotFound, name)
			}
			return sg.Attrs, nil
		}}
}

// CreateGroup creates a sub-group, and any missing group on the way to it.
func (g *Group) CreateGroup(p Path) (*Group, error) {
	ds, err := g.writable()
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	full := g.path.Join(p)
	name := full.String()
	if _, has := ds.Group(name); has {
		return nil, fmt.Errorf("%w: %q", api.ErrDuplicateGroup, name)
	}
	if _, has := ds.Var(name); has {
		return nil, fmt.Errorf("%w: %q is a variable", api.ErrDuplicatePath, name)
	}
	ensureGroups(ds, full)
	g.file.MarkDirty()
	return &Group{file: g.file, path: full}, nil
}

// Group opens an existing sub-group.
func (g *Group) Group(p Path) (*Group, error) {
	ds, err := g.dataset()
	if err != nil {
		return nil, err
	}
	full := g.path.Join(p)
	if _, has := ds.Group(full.String()); !has {
		return nil, fmt.Errorf("%w: group %q", api.ErrNotFound, full.String())
	}
	return &Group{file: g.file, path: full}, nil
}

// OpenDimensionScale describes an existing dimension.
func (g *Group) OpenDimensionScale(name string) (DimensionScale, error) {
	ds, err := g.dataset()
	if err != nil {
		return DimensionScale{}, err
	}
	d, has := ds.Dim(name)
	if !has {
		return DimensionScale{}, fmt.Errorf("%w: dimension %q", api.ErrNotFound, name)
	}
	s := DimensionScale{Name: d.Name, Type: types.Int32, Length: d.Length, Unlimited: d.Unlimited}
	if cv, ok := ds.Var(name); ok && slices.Equal(cv.Dims, []string{name}) {
		s.Type = cv.Type
		if len(cv.Params.Chunks) == 1 {
			s.Chunk = cv.Params.Chunks[0]
		}
	}
	s.Chunk = s.chunkLength()
	return s, nil
}

// NLocs is the number of locations: the length of the unlimited dimension,
// or of the one named nlocs when none is unlimited.
func (g *Group) NLocs() (int, error) {
	ds, err := g.dataset()
	if err != nil {
		return 0, err
	}
	if d, has := ds.Unlimited(); has {
		return d.Length, nil
	}
	if d, has := ds.Dim(RecordDimension); has {
		return d.Length, nil
	}
	return 0, nil
}

// Resize grows the unlimited dimension to n. Written variables along it are
// padded with their fill value, and its coordinates continue the count.
func (g *Group) Resize(name string, n int) error {
	ds, err := g.writable()
	if err != nil {
		return err
	}
	d, has := ds.Dim(name)
	switch {
	case !has:
		return fmt.Errorf("%w: dimension %q", api.ErrNotFound, name)
	case !d.Unlimited:
		return fmt.Errorf("%w: %q is not unlimited", api.ErrInvalidDimension, name)
	case n < d.Length:
		return fmt.Errorf("%w: %q cannot shrink from %d to %d", api.ErrInvalidDimension, name, d.Length, n)
	case n == d.Length:
		return nil
	}

	// Nothing changes unless every variable can be grown.
	grown := map[*api.Var]*types.Array{}
	for _, v := range ds.Vars {
		if v.Data == nil || !slices.Contains(v.Dims, name) {
			continue
		}
		data := v.Data
		if v.Name == name && len(v.Dims) == 1 && v.Type.IsInteger() {
			if n > maxCoordinate(v.Type) {
				return fmt.Errorf("%w: %v coordinates of %q cannot reach %d",
					api.ErrInvalidDimension, v.Type, name, n)
			}
			data, err = types.Concat(data, coordinates(v.Type, d.Length, n), []int{n})
			if err != nil {
				return err
			}
			grown[v] = data
			continue
		}
		for axis, dim := range v.Dims {
			if dim != name {
				continue
			}
			data, err = types.Grow(data, axis, n, v.FillValue())
			if err != nil {
				return fmt.Errorf("variable %q: %w", v.Name, err)
			}
		}
		grown[v] = data
	}
	logger.Infof("resized %q from %d to %d", name, d.Length, n)
	d.Length = n
	for v, data := range grown {
		v.Data = data
	}
	g.file.MarkDirty()
	return nil
}
