// Package main provides the entrypoint for trafficctl.
package main

import "github.com/trafficpulse/trafficpulse/internal/cli"

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	cli.Version = Version
	cli.Execute()
}
