package main

import (
	"os"

	"praxus/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	// Execute prints the error as JSON on stderr.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
