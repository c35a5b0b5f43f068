// Package main is the entry point for the researchctl CLI.
package main

import (
	"os"

	"researchplane/cmd/researchctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
