package obs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// PolicyFor returns the policy implementing a layout id.
func PolicyFor(l api.Layout) (api.LayoutPolicy, error) {
	switch l {
	case api.LayoutHierarchical:
		return hierarchical{}, nil
	case api.LayoutFlat:
		return flat{}, nil
	}
	return nil, fmt.Errorf("%w: unknown layout id %d", api.ErrInvalidLayout, int(l))
}

// ensureGroups adds a record for p and each of its ancestors that has none,
// and returns p's record.
func ensureGroups(ds *api.Dataset, p Path) *api.Group {
	var g *api.Group
	for i := 1; i <= len(p); i++ {
		name := p[:i].String()
		var has bool
		g, has = ds.Group(name)
		if !has {
			g = &api.Group{Name: name, Attrs: api.NewAttributeMap()}
			ds.Groups = append(ds.Groups, g)
		}
		if g.Attrs == nil {
			g.Attrs = api.NewAttributeMap()
		}
	}
	return g
}

func splitSlash(name string) Path {
	return Path(strings.Split(name, "/"))
}

// hierarchical keeps the stored names. Loading only adds the group records
// implied by variable paths.
type hierarchical struct{}

func (hierarchical) Layout() api.Layout { return api.LayoutHierarchical }

func (hierarchical) Load(stored *api.Dataset) (*api.Dataset, error) {
	for _, g := range slices.Clone(stored.Groups) {
		ensureGroups(stored, splitSlash(g.Name))
	}
	for _, v := range stored.Vars {
		ensureGroups(stored, splitSlash(v.Name).Parent())
	}
	return stored, nil
}

func (hierarchical) Store(logical *api.Dataset) (*api.Dataset, error) {
	return logical, nil
}

// flat spells "MetaData/latitude" as "latitude@MetaData" and nested groups
// as "x@A@B". Group attributes are stored with the root ones under the
// same kind of name.
type flat struct{}

func (flat) Layout() api.Layout { return api.LayoutFlat }

// splitFlat turns a flat name into a path. Names without a group suffix
// are not flat names.
func splitFlat(name string) (Path, bool) {
	parts := strings.Split(name, "@")
	if len(parts) < 2 || slices.Contains(parts, "") {
		return nil, false
	}
	return slices.Concat(Path(parts[1:]), Path(parts[:1])), true
}

func joinFlat(p Path) string {
	if len(p) < 2 {
		return p.String()
	}
	return p.Name() + "@" + strings.Join(p.Parent(), "@")
}

func (flat) Load(stored *api.Dataset) (*api.Dataset, error) {
	ds := &api.Dataset{Dims: stored.Dims, Attrs: api.NewAttributeMap()}
	for _, g := range stored.Groups {
		lg := ensureGroups(ds, splitSlash(g.Name))
		if g.Attrs == nil {
			continue
		}
		for name, a := range g.Attrs.All() {
			lg.Attrs.Add(name, a)
		}
	}
	for name, a := range stored.Attrs.All() {
		p, ok := splitFlat(name)
		if !ok {
			ds.Attrs.Add(name, a)
			continue
		}
		g := ensureGroups(ds, p.Parent())
		if g.Attrs.Has(p.Name()) {
			return nil, fmt.Errorf("%w: %q", api.ErrDuplicateAttribute, name)
		}
		g.Attrs.Add(p.Name(), a)
	}
	for _, v := range stored.Vars {
		lv := *v
		p, ok := splitFlat(v.Name)
		if ok {
			lv.Name = p.String()
		} else {
			p = splitSlash(v.Name)
		}
		ensureGroups(ds, p.Parent())
		ds.Vars = append(ds.Vars, &lv)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (flat) Store(logical *api.Dataset) (*api.Dataset, error) {
	ds := &api.Dataset{Dims: logical.Dims, Attrs: api.NewAttributeMap()}
	add := func(name string, a *types.Array) error {
		if ds.Attrs.Has(name) {
			return fmt.Errorf("%w: %q", api.ErrDuplicateAttribute, name)
		}
		ds.Attrs.Add(name, a)
		return nil
	}
	for name, a := range logical.Attrs.All() {
		if err := add(name, a); err != nil {
			return nil, err
		}
	}
	for _, g := range logical.Groups {
		p := splitSlash(g.Name)
		for name, a := range g.Attrs.All() {
			if err := add(joinFlat(slices.Concat(p, Path{name})), a); err != nil {
				return nil, err
			}
		}
	}
	seen := map[string]bool{}
	for _, v := range logical.Vars {
		sv := *v
		sv.Name = joinFlat(splitSlash(v.Name))
		if seen[sv.Name] {
			return nil, fmt.Errorf("%w: %q", api.ErrDuplicatePath, sv.Name)
		}
		seen[sv.Name] = true
		ds.Vars = append(ds.Vars, &sv)
	}
	return ds, nil
}
