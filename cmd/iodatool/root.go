package main

import (
	"github.com/spf13/cobra"

	"github.com/batchatco/go-native-ioda/internal"
	"github.com/batchatco/go-native-ioda/ioda"
	"github.com/batchatco/go-native-ioda/ioda/api"
	"github.com/batchatco/go-native-ioda/ioda/cdf"
	"github.com/batchatco/go-native-ioda/ioda/engines"
	"github.com/batchatco/go-native-ioda/ioda/obs"
	"github.com/batchatco/go-native-ioda/ioda/obsfile"
)

var (
	logLevel string
	layoutID int
)

var rootCmd = &cobra.Command{
	Use:           "iodatool",
	Short:         "Inspect and convert IODA observation containers.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setLogLevel(logLevel)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd, convertCmd, infoCmd)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "fatal, error, warn or info")
}

func setLogLevel(name string) error {
	level, err := internal.ParseLogLevel(name)
	if err != nil {
		return err
	}
	for _, set := range []func(int) int{
		obsfile.SetLogLevel, cdf.SetLogLevel, engines.SetLogLevel, obs.SetLogLevel, ioda.SetLogLevel,
	} {
		set(int(level))
	}
	return nil
}

// addLayoutFlag registers --layout. A negative id means the engine's
// default layout.
func addLayoutFlag(cmd *cobra.Command) {
	cmd.Flags().IntVar(&layoutID, "layout", -1, "layout policy id (0 hierarchical, 1 flat)")
}

// openGroup opens the Obs Group of path read-only.
func openGroup(path string) (*obs.Group, error) {
	f, err := engines.OpenFile(path, engines.ReadOnly)
	if err != nil {
		return nil, err
	}
	layout := f.Layout()
	if layoutID >= 0 {
		layout = api.Layout(layoutID)
	}
	g, err := obs.OpenExisting(f, layout)
	if err != nil {
		f.Close()
		return nil, err
	}
	return g, nil
}
