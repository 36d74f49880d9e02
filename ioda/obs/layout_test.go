package obs

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

func logical(t *testing.T) *api.Dataset {
	t.Helper()
	ds := api.NewDataset()
	ds.Dims = []*api.Dim{{Name: "nlocs", Length: 2, Unlimited: true}}
	lat, err := types.NewArray([]int{2}, []float32{1, 2})
	require.NoError(t, err)
	units, err := types.NewArray(nil, []string{"K"})
	require.NoError(t, err)
	ds.Attrs.Add("units", units)
	meta := ensureGroups(ds, MustParsePath("MetaData/Station"))
	meta.Attrs.Add("units", units)
	ds.Vars = []*api.Var{
		{Name: "latitude", Type: types.Float32, Dims: []string{"nlocs"}, Attrs: api.NewAttributeMap(), Data: lat},
		{Name: "MetaData/latitude", Type: types.Float32, Dims: []string{"nlocs"}, Attrs: api.NewAttributeMap(), Data: lat},
		{Name: "MetaData/Station/id", Type: types.Float32, Dims: []string{"nlocs"}, Attrs: api.NewAttributeMap()},
	}
	return ds
}

func varNames(ds *api.Dataset) []string {
	var names []string
	for _, v := range ds.Vars {
		names = append(names, v.Name)
	}
	return names
}

func groupNames(ds *api.Dataset) []string {
	var names []string
	for _, g := range ds.Groups {
		names = append(names, g.Name)
	}
	return names
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor(api.LayoutFlat)
	require.NoError(t, err)
	assert.Equal(t, api.LayoutFlat, p.Layout())
	p, err = PolicyFor(api.LayoutHierarchical)
	require.NoError(t, err)
	assert.Equal(t, api.LayoutHierarchical, p.Layout())
	_, err = PolicyFor(api.Layout(7))
	assert.ErrorIs(t, err, api.ErrInvalidLayout)
}

func TestFlatLayout(t *testing.T) {
	stored, err := flat{}.Store(logical(t))
	require.NoError(t, err)
	assert.Empty(t, stored.Groups)
	assert.Equal(t, []string{"latitude", "latitude@MetaData", "id@MetaData@Station"}, varNames(stored))
	assert.Equal(t, []string{"units", "units@MetaData@Station"}, stored.Attrs.Keys())

	back, err := flat{}.Load(stored)
	require.NoError(t, err)
	assert.Equal(t, []string{"latitude", "MetaData/latitude", "MetaData/Station/id"}, varNames(back))
	assert.Equal(t, []string{"MetaData", "MetaData/Station"}, groupNames(back))
	assert.Equal(t, []string{"units"}, back.Attrs.Keys())
	g, ok := back.Group("MetaData/Station")
	require.True(t, ok)
	assert.Equal(t, []string{"units"}, g.Attrs.Keys())
}

func TestFlatLayoutCollisions(t *testing.T) {
	ds := logical(t)
	ds.Vars = append(ds.Vars, &api.Var{Name: "latitude@MetaData", Type: types.Float32,
		Dims: []string{"nlocs"}, Attrs: api.NewAttributeMap()})
	_, err := flat{}.Store(ds)
	assert.ErrorIs(t, err, api.ErrDuplicatePath)

	stored := api.NewDataset()
	a, err := types.NewArray(nil, []int32{1})
	require.NoError(t, err)
	stored.Groups = []*api.Group{{Name: "MetaData", Attrs: api.NewAttributeMap()}}
	stored.Groups[0].Attrs.Add("n", a)
	stored.Attrs.Add("n@MetaData", a)
	_, err = flat{}.Load(stored)
	assert.ErrorIs(t, err, api.ErrDuplicateAttribute)
}

func TestHierarchicalLayout(t *testing.T) {
	ds := logical(t)
	ds.Groups = nil
	ds.Vars[2].Name = "ObsValue/Channels/bt"
	got, err := hierarchical{}.Load(ds)
	require.NoError(t, err)
	assert.Same(t, ds, got)
	assert.Equal(t, []string{"MetaData", "ObsValue", "ObsValue/Channels"}, groupNames(got))
	stored, err := hierarchical{}.Store(got)
	require.NoError(t, err)
	assert.Same(t, got, stored)
}

func TestLayoutsOnDisk(t *testing.T) {
	cases := []struct {
		file   string
		layout api.Layout
		stored []string
	}{
		{"obs.ioda", api.LayoutHierarchical, []string{"nlocs", "nchans", "MetaData/latitude"}},
		{"flat.ioda", api.LayoutFlat, []string{"nlocs", "nchans", "latitude@MetaData"}},
		{"obs.nc", api.LayoutFlat, []string{"nlocs", "nchans", "latitude@MetaData"}},
	}
	for _, c := range cases {
		t.Run(c.file, func(t *testing.T) {
			g, path := newGroupWithLayout(t, c.file, c.layout)
			_, err := g.CreateVariable(MustParsePath("MetaData/latitude"), types.Float32, []string{"nlocs"}, api.Params{})
			require.NoError(t, err)
			require.NoError(t, g.File().Close())

			f, err := engines.OpenFile(path, engines.ReadOnly)
			require.NoError(t, err)
			defer f.Close()
			ds, err := f.Dataset()
			require.NoError(t, err)
			assert.Equal(t, c.stored, varNames(ds))

			r, err := OpenExisting(f, c.layout)
			require.NoError(t, err)
			assert.Equal(t, []string{"nlocs", "nchans", "MetaData/latitude"}, slices.Collect(r.Variables(true)))
		})
	}
}

func TestHierarchicalNetCDF(t *testing.T) {
	g, path := newGroup(t, "obs.nc")
	require.NoError(t, g.File().Close())
	f, err := engines.OpenFile(path, engines.ReadOnly)
	require.NoError(t, err)
	defer f.Close()
	_, err = OpenExisting(f, api.LayoutHierarchical)
	assert.ErrorIs(t, err, api.ErrInvalidLayout)
	_, err = OpenExisting(f, api.Layout(9))
	assert.ErrorIs(t, err, api.ErrInvalidLayout)
}

func newGroupWithLayout(t *testing.T, name string, layout api.Layout) (*Group, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := engines.CreateFile(path, engines.WithLayout(layout))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	g, err := Generate(f, defaultScales())
	require.NoError(t, err)
	return g, path
}
