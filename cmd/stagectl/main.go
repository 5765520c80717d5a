// Package main provides the stagectl CLI entry point.
package main

import (
	"os"

	"github.com/launchpath/stagectl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
