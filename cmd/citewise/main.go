// Package main provides the entry point for the citewise CLI.
package main

import (
	"os"

	"github.com/citewise/citewise/cmd/citewise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
