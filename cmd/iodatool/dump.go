package main

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/batchatco/go-native-ioda/ioda/obs"
	"github.com/batchatco/go-native-ioda/ioda/types"
)

var withData bool

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print the header, and optionally the data, of a container in CDL.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := openGroup(args[0])
		if err != nil {
			return err
		}
		defer g.File().Close()
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		return dump(cmd.OutOrStdout(), name, g, withData)
	},
}

func init() {
	dumpCmd.Flags().BoolVar(&withData, "data", false, "print variable data")
	addLayoutFlag(dumpCmd)
}

func dump(w io.Writer, name string, g *obs.Group, data bool) error {
	fmt.Fprintf(w, "netcdf %s {\ndimensions:\n", name)
	for dim := range g.Dimensions() {
		s, err := g.OpenDimensionScale(dim)
		if err != nil {
			return err
		}
		if s.Unlimited {
			fmt.Fprintf(w, "\t%s = UNLIMITED ; // (%d currently)\n", s.Name, s.Length)
		} else {
			fmt.Fprintf(w, "\t%s = %d ;\n", s.Name, s.Length)
		}
	}
	fmt.Fprintln(w, "variables:")
	var vars []*obs.Variable
	for name := range g.Variables(true) {
		v, err := g.OpenVariable(obs.MustParsePath(name))
		if err != nil {
			return err
		}
		vars = append(vars, v)
		fmt.Fprintf(w, "\t%s %s(%s) ;\n", v.Type().CDLType(), v.Name(), strings.Join(v.Dimensions(), ", "))
		if err := dumpAttributes(w, "\t\t"+v.Name(), v.Attributes()); err != nil {
			return err
		}
	}
	if attrs := g.Attributes(); hasAny(attrs) {
		fmt.Fprintln(w, "\n// global attributes:")
		if err := dumpAttributes(w, "\t\t", attrs); err != nil {
			return err
		}
	}
	for name := range g.Groups(true) {
		sg, err := g.Group(obs.MustParsePath(name))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\ngroup: %s {\n", name)
		if hasAny(sg.Attributes()) {
			fmt.Fprintln(w, "\n// group attributes:")
			if err := dumpAttributes(w, "\t\t", sg.Attributes()); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "} // group %s\n", name)
	}
	if data {
		fmt.Fprintln(w, "data:")
		for _, v := range vars {
			a, err := v.Read()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n %s = %s ;\n", v.Name(), formatValues(a))
		}
	}
	fmt.Fprintln(w, "}")
	return nil
}

func hasAny(attrs *obs.Attributes) bool {
	for range attrs.List() {
		return true
	}
	return false
}

func dumpAttributes(w io.Writer, prefix string, attrs *obs.Attributes) error {
	for name := range attrs.List() {
		a, err := attrs.Open(name)
		if err != nil {
			return err
		}
		values, err := a.Read()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:%s = %s ;\n", prefix, name, formatValues(values))
	}
	return nil
}

// formatValues prints values the way ncdump does, with _ for missing ones.
func formatValues(a *types.Array) string {
	parts := make([]string, a.Len())
	for i := range parts {
		if a.IsMissing(i) {
			parts[i] = "_"
			continue
		}
		switch v := a.Index(i).(type) {
		case string:
			parts[i] = strconv.Quote(v)
		case float32:
			parts[i] = formatFloat(float64(v), 32) + "f"
		case float64:
			parts[i] = formatFloat(v, 64)
		case int16:
			parts[i] = strconv.Itoa(int(v)) + "s"
		case int64:
			parts[i] = strconv.FormatInt(v, 10) + "LL"
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return strings.Join(parts, ", ")
}

func formatFloat(f float64, bits int) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
