// Package bootstrap wires configuration, storage, the message bus and the HTTP
// server into a running crawl-selector service.
package bootstrap

import (
	"fmt"

	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/logger"
)

// LoadConfig loads the configuration at path, falling back to CONFIG_PATH and
// then config.DefaultPath when path is empty. debug forces debug logging.
func LoadConfig(path string, debug bool) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath(config.DefaultPath)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	return cfg, nil
}

// CreateLogger creates the service logger.
func CreateLogger(cfg *config.Config, version string) (logger.Logger, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		logger.String("service", "crawl-selector"),
		logger.String("version", version),
	), nil
}
