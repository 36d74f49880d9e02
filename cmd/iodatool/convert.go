package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/obs"
)

var (
	outLayoutID int
	outEngine   string
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Copy a container into a new one, in the format given by the output's extension.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return convert(args[0], args[1])
	},
}

func init() {
	addLayoutFlag(convertCmd)
	convertCmd.Flags().IntVar(&outLayoutID, "out-layout", -1, "layout policy id of the output")
	convertCmd.Flags().StringVar(&outEngine, "engine", "", "output format (ioda or netcdf)")
}

func convert(in, out string) (err error) {
	src, err := openGroup(in)
	if err != nil {
		return err
	}
	defer src.File().Close()

	opts := []engines.Option{engines.WithCreateMode(engines.FailIfExists)}
	if outEngine != "" {
		e, err := engines.ByName(outEngine)
		if err != nil {
			return err
		}
		opts = append(opts, engines.WithEngine(e))
	}
	if outLayoutID >= 0 {
		opts = append(opts, engines.WithLayout(api.Layout(outLayoutID)))
	}
	dst, err := engines.CreateFile(out, opts...)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, dst.Close()) }()
	_, err = obs.Export(src, dst)
	return err
}
