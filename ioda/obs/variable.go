package obs

import (
	"fmt"
	"slices"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// Variable is a handle on a stored variable. Its type, dimensions and
// creation parameters are fixed; its shape follows the dimensions.
type Variable struct {
	group  *Group
	path   Path // from the Obs Group
	typ    types.Type
	dims   []string
	params api.Params
}

func newVariable(g *Group, path Path, v *api.Var) *Variable {
	return &Variable{group: g, path: path, typ: v.Type, dims: slices.Clone(v.Dims), params: v.Params}
}

// CreateVariable creates a variable at p, relative to the group, shaped by
// the named dimension scales. Missing groups on the way are created. Nil
// chunk lengths default to those of the scales.
func (g *Group) CreateVariable(p Path, t types.Type, scales []string, params api.Params) (*Variable, error) {
	ds, err := g.writable()
	if err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	full := g.path.Join(p)
	name := full.String()
	if _, has := ds.Var(name); has {
		return nil, fmt.Errorf("%w: variable %q", api.ErrDuplicatePath, name)
	}
	if _, has := ds.Group(name); has {
		return nil, fmt.Errorf("%w: %q is a group", api.ErrDuplicatePath, name)
	}
	if len(scales) == 0 {
		return nil, fmt.Errorf("%w: variable %q needs at least one dimension scale", api.ErrDimensionMismatch, name)
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: variable %q has %v", api.ErrUnsupportedType, name, t)
	}
	v := &api.Var{Name: name, Type: t, Dims: slices.Clone(scales), Params: params, Attrs: api.NewAttributeMap()}
	v.Params.Chunks = slices.Clone(params.Chunks)
	if v.Params.Chunks == nil {
		for _, dim := range scales {
			s, err := g.OpenDimensionScale(dim)
			if err != nil {
				return nil, fmt.Errorf("%w: variable %q uses unknown dimension %q", api.ErrDimensionMismatch, name, dim)
			}
			v.Params.Chunks = append(v.Params.Chunks, s.Chunk)
		}
	}
	if err := ds.ValidateVar(v); err != nil {
		return nil, err
	}
	ensureGroups(ds, full.Parent())
	ds.Vars = append(ds.Vars, v)
	g.file.MarkDirty()
	return newVariable(g, full, v), nil
}

// OpenVariable opens the variable at p, relative to the group.
func (g *Group) OpenVariable(p Path) (*Variable, error) {
	ds, err := g.dataset()
	if err != nil {
		return nil, err
	}
	full := g.path.Join(p)
	v, has := ds.Var(full.String())
	if !has {
		return nil, fmt.Errorf("%w: variable %q", api.ErrNotFound, full.String())
	}
	return newVariable(g, full, v), nil
}

// Name is the variable's path from the Obs Group.
func (v *Variable) Name() string { return v.path.String() }

func (v *Variable) Path() Path           { return slices.Clone(v.path) }
func (v *Variable) Type() types.Type     { return v.typ }
func (v *Variable) Dimensions() []string { return slices.Clone(v.dims) }

func (v *Variable) Params() api.Params {
	p := v.params
	p.Chunks = slices.Clone(p.Chunks)
	return p
}

func (v *Variable) stored() (*api.Dataset, *api.Var, error) {
	ds, err := v.group.dataset()
	if err != nil {
		return nil, nil, err
	}
	sv, has := ds.Var(v.Name())
	if !has {
		return nil, nil, fmt.Errorf("%w: variable %q", api.ErrNotFound, v.Name())
	}
	return ds, sv, nil
}

// Shape returns the current lengths of the variable's dimensions.
func (v *Variable) Shape() ([]int, error) {
	ds, sv, err := v.stored()
	if err != nil {
		return nil, err
	}
	return ds.Shape(sv)
}

// Write replaces the variable's data. data is anything types.FromValue
// accepts, and must have the variable's type and shape; an (N) array is
// also accepted for an (N,1) variable. Elements marked missing are stored
// as the fill value, or as the default fill of a float variable whose fill
// value would read back as data. Nothing is written on failure.
func (v *Variable) Write(data any) error {
	ds, sv, err := v.stored()
	if err != nil {
		return err
	}
	if !v.group.file.Writable() {
		return fmt.Errorf("%w: variable %q", api.ErrWriteProtected, v.Name())
	}
	a, err := types.FromValue(data)
	if err != nil {
		return err
	}
	if a.Type != sv.Type {
		return fmt.Errorf("%w: variable %q is %v, data is %v", api.ErrTypeMismatch, v.Name(), sv.Type, a.Type)
	}
	shape, err := ds.Shape(sv)
	if err != nil {
		return err
	}
	collapsed := len(shape) == 2 && shape[1] == 1 && slices.Equal(a.Shape, shape[:1])
	if !slices.Equal(a.Shape, shape) && !collapsed {
		return fmt.Errorf("%w: variable %q has shape %v, data has %v", api.ErrShapeMismatch, v.Name(), shape, a.Shape)
	}
	a = a.Clone()
	a.Shape = shape
	if err := a.Unmark(missingValue(sv)); err != nil {
		return err
	}
	sv.Data = a
	v.group.file.MarkDirty()
	return nil
}

// missingValue is what an element marked missing is stored as.
func missingValue(sv *api.Var) any {
	fill := sv.FillValue()
	switch f := fill.(type) {
	case float32:
		if !types.IsMissingValue(float64(f)) {
			return types.DefaultFill(sv.Type)
		}
	case float64:
		if !types.IsMissingValue(f) {
			return types.DefaultFill(sv.Type)
		}
	}
	return fill
}

// Read returns the variable's data, or its fill value if it was never
// written. Float elements beyond the missing threshold come back as NaN
// and are flagged in the array's Missing set. An (N,1) result is returned
// as (N).
func (v *Variable) Read() (*types.Array, error) {
	ds, sv, err := v.stored()
	if err != nil {
		return nil, err
	}
	var a *types.Array
	if sv.Data == nil {
		shape, err := ds.Shape(sv)
		if err != nil {
			return nil, err
		}
		a, err = types.FillArray(sv.Type, shape, sv.FillValue())
		if err != nil {
			return nil, err
		}
	} else {
		a = sv.Data.Clone()
	}
	a.MarkMissing()
	return a.Collapse(), nil
}

// Attributes returns the variable's attribute store.
func (v *Variable) Attributes() *Attributes {
	name := v.Name()
	return &Attributes{file: v.group.file, owner: "variable " + name,
		lookup: func(ds *api.Dataset) (*api.AttributeMap, error) {
			sv, has := ds.Var(name)
			if !has {
				return nil, fmt.Errorf("%w: variable %q", api.ErrNotFound, name)
			}
			return sv.Attrs, nil
		}}
}
