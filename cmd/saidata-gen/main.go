package main

import (
	"os"

	"github.com/example42/saidata-gen/cmd/saidata-gen/cmd"
)

// Version information, set by -ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd.SetVersion(Version, BuildTime, GitCommit)
	os.Exit(cmd.Execute())
}
