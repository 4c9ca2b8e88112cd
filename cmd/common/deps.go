// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tmdgusya/crawl-selector/internal/bootstrap"
	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/logger"
)

// Persistent flag names.
const (
	FlagConfig = "config"
	FlagDebug  = "debug"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// CommandDeps holds the configuration and logger every command needs.
type CommandDeps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewCommandDeps loads the configuration named by the persistent flags. CLI
// tools log to stderr so their stdout stays machine readable.
func NewCommandDeps(cmd *cobra.Command) (CommandDeps, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)
	debug, _ := cmd.Flags().GetBool(FlagDebug)

	cfg, err := bootstrap.LoadConfig(path, debug)
	if err != nil {
		return CommandDeps{}, err
	}
	cfg.Logging.OutputPaths = []string{"stderr"}
	if !debug {
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "console"
	}

	log, err := bootstrap.CreateLogger(cfg, Version)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}
	return CommandDeps{Config: cfg, Logger: log}, nil
}
