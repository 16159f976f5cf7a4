// Package main is the aspif-cli entry point, the lpconvert-equivalent
// front end over the aspif/smodels/text library packages.
package main

import (
	"fmt"
	"os"

	"aspif/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
