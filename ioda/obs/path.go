package obs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
)

// Path locates a group or variable relative to a group, one segment per
// level. Layout policies decide how it is spelled inside a container.
type Path []string

func NewPath(segments ...string) Path {
	return Path(slices.Clone(segments))
}

// ParsePath splits a slash separated path such as "MetaData/latitude".
func ParsePath(s string) (Path, error) {
	p := Path(strings.Split(s, "/"))
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustParsePath is ParsePath for paths known to be valid.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Name is the last segment.
func (p Path) Name() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Parent is p without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

func (p Path) Join(q Path) Path {
	return slices.Concat(p, q)
}

func (p Path) validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty path", api.ErrInvalidName)
	}
	for _, seg := range p {
		if !internal.IsValidName(seg) {
			return fmt.Errorf("%w: %q in path %q", api.ErrInvalidName, seg, p.String())
		}
	}
	return nil
}
