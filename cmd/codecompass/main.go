// Package main provides the entry point for the codecompass CLI.
package main

import (
	"os"

	"github.com/signalridge/codecompass/cmd/codecompass/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
