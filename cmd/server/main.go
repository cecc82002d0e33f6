// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Command server runs the Ludex HTTP service: a durable catalog cache,
// a preference-learning engine, and a personalized recommendation API
// backed by a remote game catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/ludex/internal/api"
	"github.com/tomtom215/ludex/internal/cache"
	"github.com/tomtom215/ludex/internal/catalog"
	"github.com/tomtom215/ludex/internal/config"
	"github.com/tomtom215/ludex/internal/logging"
	"github.com/tomtom215/ludex/internal/metrics"
	"github.com/tomtom215/ludex/internal/prefs"
	"github.com/tomtom215/ludex/internal/recommend"
	"github.com/tomtom215/ludex/internal/store"
	"github.com/tomtom215/ludex/internal/supervisor"
)

// candidatePoolSize bounds the remote listing used to seed
// recommendation candidates.
const candidatePoolSize = 100

// version is overridden at build time via
// -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("catalog_url", cfg.Catalog.BaseURL).
		Str("cache_path", cfg.Cache.Path).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("starting ludex server")

	cacheDB, err := store.Open(cfg.Cache.Path)
	if err != nil {
		return fmt.Errorf("opening cache store: %w", err)
	}
	defer func() {
		if cerr := cacheDB.Close(); cerr != nil {
			logging.Err(cerr).Msg("closing cache store")
		}
	}()

	profileDB, err := store.Open(cfg.Preferences.Path)
	if err != nil {
		return fmt.Errorf("opening profile store: %w", err)
	}
	defer func() {
		if cerr := profileDB.Close(); cerr != nil {
			logging.Err(cerr).Msg("closing profile store")
		}
	}()

	cacheStore := store.NewCacheStore(cacheDB)
	profileStore := store.NewProfileStore(profileDB)

	client := catalog.NewCircuitBreakerClient(catalog.NewHTTPClient(&cfg.Catalog), &cfg.Catalog)

	coordinator := cache.NewCoordinator(cacheStore, client, &cfg.Cache)
	prefEngine := prefs.NewEngine(profileStore, coordinator, &cfg.Preferences)
	recommender := recommend.NewEngine(coordinator, prefEngine, client, candidatePoolSize)

	handler := api.NewHandler(coordinator, prefEngine, recommender, client, cfg)
	router := api.NewRouter(handler, api.NewChiMiddlewareFromConfig(&cfg.API))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	treeConfig := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)

	sweeper := cache.NewSweeper(cacheStore, coordinator, &cfg.Cache, logging.Logger())
	tree.AddDataService(sweeper)
	tree.AddAPIService(supervisor.NewHTTPServerService(server, treeConfig.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	startedAt := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(startedAt).Seconds())
			}
		}
	}()

	logging.Info().
		Str("addr", server.Addr).
		Msg("listening")

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().
				Str("service", svc.Name).
				Msg("service did not stop within shutdown timeout")
		}
	}

	logging.Info().Msg("shutdown complete")
	return nil
}
