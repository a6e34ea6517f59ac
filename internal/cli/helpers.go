package cli

import (
	"fmt"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/config"
	"github.com/nickmerrett/iso-downloader/pkg/discovery"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config.yaml"

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

func configPath() string {
	if ConfigPath != nil && *ConfigPath != "" {
		return *ConfigPath
	}
	return DefaultConfigPath
}

func initLogging() {
	level := "info"
	if Verbose != nil && *Verbose {
		level = "debug"
	}
	logger.InitLogger(level)
}

func loadConfig() (*config.Config, error) {
	initLogging()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", configPath(), err)
	}
	return cfg, nil
}

func newResolver(cfg *config.Config) *discovery.Resolver {
	return discovery.NewResolver(discovery.NewEngine(cfg.Download.Timeout()))
}
