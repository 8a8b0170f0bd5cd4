// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	apiconfig "github.com/a2e-project/a2e/internal/a2e-api/config"
	"github.com/a2e-project/a2e/internal/a2e-api/handlers"
	"github.com/a2e-project/a2e/internal/a2e-api/services"
	"github.com/a2e-project/a2e/internal/agentauth"
	"github.com/a2e-project/a2e/internal/audit"
	"github.com/a2e-project/a2e/internal/cache"
	"github.com/a2e-project/a2e/internal/logging"
	"github.com/a2e-project/a2e/internal/ratelimit"
	"github.com/a2e-project/a2e/internal/registry"
	"github.com/a2e-project/a2e/internal/search"
	"github.com/a2e-project/a2e/internal/store"
	"github.com/a2e-project/a2e/internal/vault"
)

func main() {
	flags := pflag.NewFlagSet("a2e-api", pflag.ExitOnError)
	configPath := flags.String("config", os.Getenv("A2E_CONFIG_PATH"), "path to the YAML config file")
	flags.Int("port", 8080, "port http server runs on")
	flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := apiconfig.Load(*configPath, flags)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	baseLogger := logging.New(cfg.Logging)
	slog.SetDefault(baseLogger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	deps, cleanup, err := buildDependencies(cfg, baseLogger)
	if err != nil {
		baseLogger.Error("Failed to initialize components", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	metricsRegistry := prometheus.NewRegistry()
	deps.Limiter = ratelimit.New(cfg.RateLimit, metricsRegistry)
	deps.Cache = cache.New(cfg.Cache, metricsRegistry)

	svcs := services.NewServices(*deps)
	handler := handlers.New(svcs, baseLogger.With("component", "handlers"),
		promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Drop idle rate-limit records periodically so memory stays bounded.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deps.Limiter.EvictStale(24 * time.Hour)
			}
		}
	}()

	go func() {
		baseLogger.Info("A2E API server listening on", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			baseLogger.Error("Server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("Server shutdown error", slog.Any("error", err))
	}
	baseLogger.Info("Server stopped gracefully")
}

// buildDependencies constructs the stateful components behind the services.
// The returned cleanup closes anything holding file handles.
func buildDependencies(cfg *apiconfig.Config, logger *slog.Logger) (*services.Dependencies, func(), error) {
	masterKey := os.Getenv(cfg.Vault.MasterKeyEnv)
	if masterKey == "" {
		return nil, nil, errRequiredEnv(cfg.Vault.MasterKeyEnv)
	}
	v, err := vault.New(cfg.Vault.Path, masterKey, logger)
	if err != nil {
		return nil, nil, err
	}

	signingKey := os.Getenv(cfg.Auth.SigningKeyEnv)
	if signingKey == "" {
		// Ephemeral key: API keys still work but issued tokens will not
		// survive a restart.
		signingKey = randomHex(32)
		logger.Warn("Token signing key not set, generated an ephemeral one",
			slog.String("env", cfg.Auth.SigningKeyEnv))
	}
	auth, err := agentauth.New(cfg.Auth, signingKey, logger)
	if err != nil {
		return nil, nil, err
	}

	var indexer search.Indexer = search.NoopIndexer{}
	if cfg.Search.Enabled {
		osIndexer, err := search.NewOpenSearchIndexer(cfg.Search, logger)
		if err != nil {
			logger.Warn("Semantic search unavailable, falling back to keyword search",
				slog.Any("error", err))
		} else {
			indexer = osIndexer
		}
	}

	reg, err := registry.New(cfg.Registry, indexer, logger)
	if err != nil {
		return nil, nil, err
	}

	journal, err := audit.New(cfg.Audit, logger)
	if err != nil {
		return nil, nil, err
	}

	var st store.Store = store.NewMemory()
	if cfg.Store.SQLitePath != "" {
		sqlite, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st = sqlite
	}

	deps := &services.Dependencies{
		Vault:    v,
		Auth:     auth,
		Registry: reg,
		Journal:  journal,
		Store:    st,
		Retry:    cfg.Retry,
		Limits:   cfg.Engine,
		Logger:   logger,
	}
	return deps, func() {}, nil
}

type errRequiredEnv string

func (e errRequiredEnv) Error() string {
	return "required environment variable " + string(e) + " is not set"
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
