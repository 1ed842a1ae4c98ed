package main

import (
	"errors"
	"fmt"
	"os"

	"toolgate/internal/config"
	"toolgate/internal/dispatch"
	"toolgate/internal/filemanager"
	"toolgate/internal/logging"
	"toolgate/internal/tools/dbtools"
	"toolgate/internal/tools/filetools"

	"go.opentelemetry.io/otel"
)

// app holds what every command shares: the logger and the global flags.
type app struct {
	logger     logging.Logger
	configPath string
	overrides  config.Overrides
}

// loadConfig reads the config file named by --config, or the standard one,
// and applies the flag overrides. With allowMissing, an absent --config file
// yields the defaults instead of an error.
func (a *app) loadConfig(allowMissing bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	switch {
	case a.configPath == "":
		cfg, err = config.Load()
	case allowMissing && !fileExists(a.configPath):
		def := config.Default()
		cfg = &def
	default:
		cfg, err = config.LoadFrom(a.configPath)
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Apply(a.overrides); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	a.logger.Debug("Configuration loaded", "root", cfg.Files.Root, "database", cfg.Database.Path, "timeout", cfg.Dispatch.Timeout.Std())
	return cfg, nil
}

// saveConfig writes cfg to --config, or to the standard location.
func (a *app) saveConfig(cfg *config.Config) (string, error) {
	if a.configPath != "" {
		return a.configPath, cfg.SaveTo(a.configPath)
	}
	return config.ConfigPath(), cfg.Save()
}

// newDispatcher prepares the files root, registers every tool and freezes
// the registry.
func (a *app) newDispatcher(cfg *config.Config) (*dispatch.Dispatcher, error) {
	root, err := filemanager.PrepareRoot(cfg.Files.Root, a.logger)
	if err != nil {
		return nil, err
	}
	files := cfg.Files
	files.Root = root

	reg := dispatch.NewRegistry()
	if err := filetools.Register(reg, files, a.logger); err != nil {
		return nil, fmt.Errorf("failed to register file tools: %w", err)
	}
	if err := dbtools.Register(reg, cfg.Database, a.logger); err != nil {
		return nil, fmt.Errorf("failed to register database tools: %w", err)
	}

	return dispatch.NewDispatcher(reg, a.logger,
		dispatch.WithTimeout(cfg.Dispatch.Timeout.Std()),
		dispatch.WithMeter(otel.Meter("toolgate")),
	), nil
}

// listRegistry registers the tools without touching the filesystem, for
// commands that only describe them.
func listRegistry(cfg *config.Config) (*dispatch.Registry, error) {
	reg := dispatch.NewRegistry()
	if err := filetools.Register(reg, cfg.Files, nil); err != nil {
		return nil, err
	}
	if err := dbtools.Register(reg, cfg.Database, nil); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
