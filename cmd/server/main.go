// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/api"
	"github.com/loyaltyworks/recommender/internal/bus"
	"github.com/loyaltyworks/recommender/internal/config"
	"github.com/loyaltyworks/recommender/internal/logging"
	"github.com/loyaltyworks/recommender/internal/recommend"
	"github.com/loyaltyworks/recommender/internal/recommend/items"
	"github.com/loyaltyworks/recommender/internal/recommend/searchengine"
	"github.com/loyaltyworks/recommender/internal/search"
	"github.com/loyaltyworks/recommender/internal/settings"
	"github.com/loyaltyworks/recommender/internal/store"
)

func main() {
	cfg, k, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	app, err := buildApp(cfg, settings.NewKoanf(k.Cut("settings")), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		os.Exit(1)
	}
	defer app.close()

	switch command {
	case "serve":
		err = app.serve(cfg)
	case "populate":
		err = app.populate(args)
	case "clean":
		err = app.clean(args)
	case "update-item":
		err = app.updateItem(args)
	default:
		err = fmt.Errorf("unknown command %q (expected serve, populate, clean or update-item)", command)
	}
	if err != nil {
		logger.Error().Err(err).Str("command", command).Msg("Command failed")
		app.close()
		os.Exit(1)
	}
}

// app holds the wired service components.
type app struct {
	logger  zerolog.Logger
	manager *recommend.Manager
	engine  *searchengine.Engine
	client  search.Client
	query   store.Query
	bus     bus.Bus
	db      *sql.DB
}

// buildApp wires the store, search client, bus and recommendation
// manager from configuration.
func buildApp(cfg *config.Config, s settings.Store, logger zerolog.Logger) (*app, error) {
	a := &app{logger: logger}

	switch cfg.Database.Driver {
	case "duckdb":
		db, err := sql.Open("duckdb", cfg.Database.Path+"?access_mode=read_only")
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		a.db = db
		a.query = store.NewSQL(db, tableSpecs(), logger)
		logger.Info().Str("path", cfg.Database.Path).Msg("DuckDB store opened read-only")
	case "memory":
		a.query = store.NewMemory()
		logger.Warn().Msg("In-memory store selected; intended for tests and demos")
	}

	switch cfg.Search.Backend {
	case "elasticsearch":
		client, err := search.NewElastic(search.ElasticConfig{
			Addresses: cfg.Search.Addresses,
			Username:  cfg.Search.Username,
			Password:  cfg.Search.Password,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("search client: %w", err)
		}
		a.client = client
	case "memory":
		a.client = search.NewMemoryClient()
	}

	switch cfg.Bus.Transport {
	case "nats":
		b, err := bus.NewNATS(bus.NATSConfig{
			URL:           cfg.Bus.NATS.URL,
			QueueGroup:    cfg.Bus.NATS.QueueGroup,
			MaxReconnects: cfg.Bus.NATS.MaxReconnects,
			ReconnectWait: cfg.Bus.NATS.ReconnectWait,
			AckWait:       cfg.Bus.NATS.AckWait,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("event bus: %w", err)
		}
		a.bus = b
		logger.Info().Str("url", cfg.Bus.NATS.URL).Msg("NATS event transport connected")
	case "inprocess":
		a.bus = bus.NewInProcess(logger)
	}

	a.manager = recommend.NewManager(s, logger)
	if err := a.manager.RegisterItems(items.All()...); err != nil {
		return nil, fmt.Errorf("register items: %w", err)
	}

	a.engine = searchengine.New(a.client, a.query, s, logger)
	if err := a.manager.RegisterBackends(context.Background(), a.engine); err != nil {
		return nil, fmt.Errorf("register backend: %w", err)
	}
	return a, nil
}

func (a *app) close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing event bus")
		}
		a.bus = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing database")
		}
		a.db = nil
	}
}

// serve runs the HTTP API with event-driven index updates until
// SIGINT/SIGTERM.
func (a *app) serve(cfg *config.Config) error {
	if err := a.manager.BindEvents(a.bus); err != nil {
		return fmt.Errorf("bind events: %w", err)
	}

	handler := api.NewHandler(a.manager, a.query, a.logger)
	handler.AddReadyCheck("search", a.client.Ping)
	if p, ok := a.query.(interface{ Ping(context.Context) error }); ok {
		handler.AddReadyCheck("store", p.Ping)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg.Server, handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info().Msg("Stopped gracefully")
	return nil
}

// populate bulk indexes the named items, or every active item.
func (a *app) populate(args []string) error {
	fs := flag.NewFlagSet("populate", flag.ContinueOnError)
	itemsFlag := fs.String("items", "", "comma-separated item keys (default: all active items)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	keys := splitKeys(*itemsFlag)

	start := time.Now()
	if err := a.manager.PopulateEngine(context.Background(), keys); err != nil {
		return err
	}
	a.logger.Info().Strs("items", keys).Dur("took", time.Since(start)).Msg("Populate finished")
	return nil
}

// clean removes the named item types from the index, or the whole index
// when no items are given (requires -yes).
func (a *app) clean(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	itemsFlag := fs.String("items", "", "comma-separated item keys (default: whole index)")
	yes := fs.Bool("yes", false, "confirm deleting the whole index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	keys := splitKeys(*itemsFlag)
	if len(keys) == 0 && !*yes {
		return errors.New("cleaning the whole index requires -yes")
	}

	if err := a.manager.CleanEngine(context.Background(), keys); err != nil {
		return err
	}
	a.logger.Info().Strs("items", keys).Msg("Clean finished")
	return nil
}

// updateItem reindexes a single entity.
func (a *app) updateItem(args []string) error {
	fs := flag.NewFlagSet("update-item", flag.ContinueOnError)
	itemFlag := fs.String("item", "", "item key")
	idFlag := fs.Int64("id", 0, "entity id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *itemFlag == "" || *idFlag == 0 {
		return errors.New("update-item requires -item and -id")
	}

	if err := a.manager.UpdateItem(context.Background(), *itemFlag, *idFlag); err != nil {
		return err
	}
	a.logger.Info().Str("item", *itemFlag).Int64("id", *idFlag).Msg("Entity reindexed")
	return nil
}

func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
