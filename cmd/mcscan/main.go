// Command mcscan is the entry point for the scan/daemon/operator CLI
// implemented in cmd/cli.
package main

import "github.com/pingcrafty/mcscan/cmd/cli"

// Build information, set by ldflags during release builds.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
