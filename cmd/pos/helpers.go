// Shared helpers for pos CLI commands.
package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bluecounts/pos/internal/engine"
	"github.com/bluecounts/pos/internal/sqlite"
	"github.com/bluecounts/pos/pkg/types"
)

// newLogger builds the CLI logger. Commands stay quiet unless --verbose
// turns the engine's structured logging on.
func newLogger() *zap.Logger {
	if !flagVerbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// buildConfig assembles the engine configuration from config.yaml and the
// directory resolution chain.
func buildConfig() (types.Config, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		APIBase:  cliConfig.APIBase,
		TenantID: cliConfig.TenantID,
		OutletID: cliConfig.OutletID,
		DeviceID: cliConfig.DeviceID,
		UserID:   cliConfig.UserID,
		Token:    cliConfig.Token,
		DataDir:  dataDir,
	}, nil
}

// attachBackend creates a SQLite backend and attaches it. The caller must
// defer backend.Detach().
func attachBackend() (*sqlite.Backend, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	return backend, nil
}

// posEngine bundles everything a command needs. The caller must defer
// Close().
type posEngine struct {
	store        *sqlite.Backend
	orchestrator *engine.Orchestrator
	service      *engine.Service
	logger       *zap.Logger
}

func (e *posEngine) Close() {
	e.store.Detach()
	e.logger.Sync()
}

// newEngine attaches the store and wires the orchestrator and write path.
// A configured server with a token counts as reachable; actual transport
// failures degrade gracefully inside the engine.
func newEngine() (*posEngine, error) {
	store, err := attachBackend()
	if err != nil {
		return nil, err
	}
	cfg := store.Config()
	logger := newLogger()

	client := engine.NewClient(cfg.APIBase, cfg.Token, logger)
	orchestrator, err := engine.NewOrchestrator(store, client, cfg, logger)
	if err != nil {
		store.Detach()
		return nil, err
	}
	orchestrator.MarkReachable(cfg.APIBase != "" && cfg.Token != "")

	service := engine.NewService(store, client, cfg, orchestrator, logger)
	return &posEngine{
		store:        store,
		orchestrator: orchestrator,
		service:      service,
		logger:       logger,
	}, nil
}

// pushSoon runs a best-effort push after a local write. Offline or failed
// pushes are fine; the queue keeps the intent.
func (e *posEngine) pushSoon() {
	if !e.orchestrator.Online() {
		return
	}
	if err := e.orchestrator.Push(context.Background()); err != nil {
		e.logger.Warn("push after write failed", zap.Error(err))
	}
}
