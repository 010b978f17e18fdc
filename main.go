package main

import (
	"conductor/cmd"
)

// version is overridden at build time via -ldflags.
var version = "0.1.0-dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
