// Package main provides the entry point for the helpdesk CLI.
package main

import (
	"os"

	"github.com/raphaelgruber/helpdesk-go/internal/cli"
)

func main() {
	// Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
