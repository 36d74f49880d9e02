package obs

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
)

// Export copies the Obs Group src into dst, a new writable file, and
// returns the new group. Dimension scales, groups, variables and every
// attribute are copied. Stored values beyond the missing threshold are
// written as the destination variable's fill value.
func Export(src *Group, dst *engines.File) (*Group, error) {
	var scales []DimensionScale
	for name := range src.Dimensions() {
		s, err := src.OpenDimensionScale(name)
		if err != nil {
			return nil, err
		}
		scales = append(scales, s)
	}
	out, err := Generate(dst, scales)
	if err != nil {
		return nil, err
	}
	if err := copyAttributes(out.Attributes(), src.Attributes()); err != nil {
		return nil, err
	}
	for name := range src.Groups(true) {
		p := splitSlash(name)
		sg, err := src.Group(p)
		if err != nil {
			return nil, err
		}
		dg, err := out.CreateGroup(p)
		if err != nil {
			return nil, err
		}
		if err := copyAttributes(dg.Attributes(), sg.Attributes()); err != nil {
			return nil, err
		}
	}
	for name := range src.Variables(true) {
		if err := copyVariable(out, src, splitSlash(name)); err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
	}
	logger.Infof("exported %d dimensions to %s", len(scales), dst.Path())
	return out, nil
}

// copyVariable copies one variable. Coordinate variables already exist
// in dst, and only get their values.
func copyVariable(dst, src *Group, p Path) error {
	sv, err := src.OpenVariable(p)
	if err != nil {
		return err
	}
	dv, err := dst.OpenVariable(p)
	if errors.Is(err, api.ErrNotFound) {
		dv, err = dst.CreateVariable(p, sv.Type(), sv.Dimensions(), sv.Params())
	}
	if err != nil {
		return err
	}
	if err := copyAttributes(dv.Attributes(), sv.Attributes()); err != nil {
		return err
	}
	_, stored, err := sv.stored()
	if err != nil {
		return err
	}
	if stored.Data == nil {
		return nil
	}
	data, err := sv.Read()
	if err != nil {
		return err
	}
	return dv.Write(data)
}

func copyAttributes(dst, src *Attributes) error {
	for name := range src.List() {
		if internal.IsReservedName(name) {
			logger.Warnf("%s: not copying reserved attribute %q", src.owner, name)
			continue
		}
		a, err := src.Open(name)
		if err != nil {
			return err
		}
		value, err := a.Read()
		if err != nil {
			return err
		}
		if err := dst.Write(name, value); err != nil {
			return err
		}
	}
	return nil
}
