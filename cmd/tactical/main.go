// Package main provides the operator CLI for the tactical catalog.
package main

import (
	"os"

	"github.com/thebtf/laboveda/cmd/tactical/cmd"
)

var Version = "dev"

func main() {
	if err := cmd.Execute(Version); err != nil {
		os.Exit(1)
	}
}
