package api

import "fmt"

// Layout identifies how an Obs Group's group and variable paths are
// arranged inside a container.
type Layout int

const (
	// LayoutHierarchical stores group records, and variable names with
	// their group path joined by slashes: "MetaData/latitude".
	LayoutHierarchical Layout = iota
	// LayoutFlat stores no groups. Variable names carry their groups as
	// suffixes, "latitude@MetaData", and so do group attributes, which are
	// kept with the root attributes.
	LayoutFlat
)

func (l Layout) String() string {
	switch l {
	case LayoutHierarchical:
		return "hierarchical"
	case LayoutFlat:
		return "flat"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// LayoutPolicy converts between the dataset stored in a container and the
// logical one an Obs Group works on, in which variable names are slash
// separated paths and every group, including each ancestor, has a record.
type LayoutPolicy interface {
	Layout() Layout
	Load(stored *Dataset) (*Dataset, error)
	Store(logical *Dataset) (*Dataset, error)
}
