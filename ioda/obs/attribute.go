package obs

import (
	"fmt"
	"iter"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

// Attributes is the attribute store of a group or variable. Attributes are
// created with a type and a length, then written exactly once; they are
// listed only once written.
type Attributes struct {
	file   *engines.File
	owner  string
	lookup func(ds *api.Dataset) (*api.AttributeMap, error)
}

// Attribute is a handle on one attribute.
type Attribute struct {
	store *Attributes
	name  string
	typ   types.Type
	n     int
}

func (s *Attributes) attrs() (*api.AttributeMap, error) {
	ds, err := s.file.Dataset()
	if err != nil {
		return nil, err
	}
	return s.lookup(ds)
}

func (s *Attributes) writable() (*api.AttributeMap, error) {
	m, err := s.attrs()
	if err != nil {
		return nil, err
	}
	if !s.file.Writable() {
		return nil, fmt.Errorf("%w: attributes of %s", api.ErrWriteProtected, s.owner)
	}
	return m, nil
}

// List yields the names of the written attributes.
func (s *Attributes) List() iter.Seq[string] {
	return func(yield func(string) bool) {
		m, err := s.attrs()
		if err != nil {
			return
		}
		for _, name := range m.Keys() {
			if !yield(name) {
				return
			}
		}
	}
}

// Create declares an attribute of n values of type t. It stays invisible
// until written.
func (s *Attributes) Create(name string, t types.Type, n int) (*Attribute, error) {
	m, err := s.writable()
	if err != nil {
		return nil, err
	}
	switch {
	case !internal.IsValidName(name) || internal.IsReservedName(name):
		return nil, fmt.Errorf("%w: attribute %q", api.ErrInvalidName, name)
	case !t.Valid():
		return nil, fmt.Errorf("%w: attribute %q has %v", api.ErrUnsupportedType, name, t)
	case n < 1:
		return nil, fmt.Errorf("%w: attribute %q needs at least one value", api.ErrShapeMismatch, name)
	case m.Has(name):
		return nil, fmt.Errorf("%w: %q on %s", api.ErrDuplicateAttribute, name, s.owner)
	}
	placeholder, err := types.FillArray(t, []int{n}, nil)
	if err != nil {
		return nil, err
	}
	m.Hide(name)
	m.Add(name, placeholder)
	return &Attribute{store: s, name: name, typ: t, n: n}, nil
}

// Open returns a written attribute.
func (s *Attributes) Open(name string) (*Attribute, error) {
	m, err := s.attrs()
	if err != nil {
		return nil, err
	}
	a, has := m.Get(name)
	if !has || m.Hidden(name) {
		return nil, fmt.Errorf("%w: attribute %q on %s", api.ErrNotFound, name, s.owner)
	}
	return &Attribute{store: s, name: name, typ: a.Type, n: a.Len()}, nil
}

// Write creates and writes an attribute in one go. A scalar value makes a
// scalar attribute, a slice a vector one.
func (s *Attributes) Write(name string, value any) error {
	a, err := types.FromValue(value)
	if err != nil {
		return err
	}
	if a.Rank() > 1 {
		return fmt.Errorf("%w: attribute %q has shape %v", api.ErrShapeMismatch, name, a.Shape)
	}
	attr, err := s.Create(name, a.Type, a.Len())
	if err != nil {
		return err
	}
	if a.Rank() == 0 {
		return attr.WriteScalar(a)
	}
	return attr.WriteVector(a)
}

func (a *Attribute) Name() string     { return a.name }
func (a *Attribute) Type() types.Type { return a.typ }

// Len is the number of values.
func (a *Attribute) Len() int { return a.n }

// WriteScalar writes the value of an attribute created with one value.
func (a *Attribute) WriteScalar(v any) error {
	return a.write(v, true)
}

// WriteVector writes the values of an attribute. Their number must be the
// one the attribute was created with.
func (a *Attribute) WriteVector(vs any) error {
	return a.write(vs, false)
}

func (a *Attribute) write(value any, scalar bool) error {
	m, err := a.store.writable()
	if err != nil {
		return err
	}
	if !m.Hidden(a.name) {
		if m.Has(a.name) {
			return fmt.Errorf("%w: attribute %q", api.ErrAlreadyWritten, a.name)
		}
		return fmt.Errorf("%w: attribute %q", api.ErrNotFound, a.name)
	}
	arr, err := types.FromValue(value)
	if err != nil {
		return err
	}
	if arr.Type != a.typ {
		return fmt.Errorf("%w: attribute %q is %v, value is %v", api.ErrTypeMismatch, a.name, a.typ, arr.Type)
	}
	if scalar {
		if a.n != 1 || arr.Len() != 1 || arr.Rank() > 1 {
			return fmt.Errorf("%w: scalar write to attribute %q of %d values", api.ErrShapeMismatch, a.name, a.n)
		}
	} else if arr.Rank() != 1 || arr.Len() != a.n {
		return fmt.Errorf("%w: attribute %q takes %d values, got shape %v", api.ErrShapeMismatch, a.name, a.n, arr.Shape)
	}
	arr = arr.Clone()
	arr.Shape = []int{a.n}
	if scalar {
		arr.Shape = nil
	}
	arr.Missing = nil
	m.Add(a.name, arr)
	m.Show(a.name)
	a.store.file.MarkDirty()
	return nil
}

// Read returns the attribute's values.
func (a *Attribute) Read() (*types.Array, error) {
	m, err := a.store.attrs()
	if err != nil {
		return nil, err
	}
	arr, has := m.Get(a.name)
	if !has || m.Hidden(a.name) {
		return nil, fmt.Errorf("%w: attribute %q has not been written", api.ErrNotFound, a.name)
	}
	return arr.Clone(), nil
}

// Value returns a scalar attribute's value, or a vector attribute's slice.
func (a *Attribute) Value() (any, error) {
	arr, err := a.Read()
	if err != nil {
		return nil, err
	}
	if arr.Rank() == 0 {
		return arr.Index(0), nil
	}
	return arr.Data, nil
}
