package main

import (
	"path/filepath"

	"github.com/vexaai/vexa/pkg/auth"
	"github.com/vexaai/vexa/pkg/client"
	"github.com/vexaai/vexa/pkg/config"
	"github.com/vexaai/vexa/pkg/logging"
	"github.com/vexaai/vexa/pkg/orchestrator"
	"github.com/vexaai/vexa/pkg/storage"
)

// app holds the wired components for one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  auth.Store
	cache  *storage.Cache
	orch   *orchestrator.Orchestrator
	out    *Writer
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	out := newStdoutWriter()

	// Logging is best effort; a read-only data dir should not block the CLI.
	logger, err := logging.NewLogger(filepath.Join(cfg.DataDir, "logs"))
	if err != nil {
		logger = logging.Nop()
	}
	logger.SetMinLevel(logging.Level(cfg.Logging.Level))

	credPath, err := auth.DefaultPath(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	store := auth.NewFileStore(credPath)

	api, err := client.New(cfg.API.BaseURL, store, client.Options{
		Timeout: cfg.API.Timeout,
		Logger:  logger,
		OnAuthExpired: func() {
			out.Error("Your session has expired. Run 'vexa login' to sign in again.")
		},
	})
	if err != nil {
		return nil, err
	}

	// The offline cache is also best effort.
	cache, err := storage.Open(filepath.Join(cfg.DataDir, "vexa.db"))
	if err != nil {
		logger.Warn(logging.CategoryStorage, "cache_open_failed", err.Error(), nil)
		cache = nil
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		cache:  cache,
		orch:   orchestrator.New(cfg, store, api, cache, logger),
		out:    out,
	}, nil
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
