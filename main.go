// Package main provides the unai CLI: a tool-calling agent over any LLM
// provider, fed from arguments and stdin.
package main

import (
	"github.com/dotcommander/unai/internal/cmd"
	"github.com/dotcommander/unai/internal/config"
)

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cfg, cfgErr := config.Ensure()
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA}, cfg, cfgErr)
}
