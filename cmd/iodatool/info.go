package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/batchatco/go-native-ioda/ioda"
)

var infoCmd = &cobra.Command{
	Use:   "info <config>",
	Short: "Summarize the container a YAML or TOML configuration points at.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ioda.LoadConfig(args[0])
		if err != nil {
			return err
		}
		cfg.Mode = ioda.ModeRead
		s, err := ioda.Open(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		nlocs, err := s.NLocs()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, s)
		fmt.Fprintf(w, "nlocs: %d\n", nlocs)
		fmt.Fprintf(w, "dimensions: %s\n", strings.Join(s.Dimensions(), ", "))
		fmt.Fprintf(w, "groups: %s\n", strings.Join(s.Groups(), ", "))
		fmt.Fprintf(w, "variables (%d): %s\n", s.NVars(), strings.Join(s.Variables(), ", "))
		fmt.Fprintf(w, "attributes: %s\n", strings.Join(s.Attributes(), ", "))
		return nil
	},
}
