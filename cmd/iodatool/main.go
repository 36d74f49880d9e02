// Command iodatool inspects and converts observation containers.
//
//	iodatool dump [--data] [--layout N] <file>
//	iodatool convert [--layout N] <in> <out>
//	iodatool info <config.yaml|config.toml>
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
