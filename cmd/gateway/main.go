// Command gateway runs the chat event gateway: it consumes operation topics
// from the configured transport, executes the handlers against the Domain
// Store and Completion Engine, and publishes correlated responses plus the
// audit event stream.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatwire/gateway/internal/completion"
	"github.com/chatwire/gateway/internal/config"
	"github.com/chatwire/gateway/internal/gateway"
	"github.com/chatwire/gateway/internal/logging"
	"github.com/chatwire/gateway/internal/store"
	"github.com/chatwire/gateway/internal/store/memory"
	"github.com/chatwire/gateway/internal/store/postgres"
	"github.com/chatwire/gateway/internal/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	logger.Info("Loaded configuration", logging.LogFields{"config": cfg.String()})

	if cfg.Disabled {
		logger.Info("Event layer disabled, exiting", nil)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var domainStore store.DomainStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		domainStore = pg
		logger.Info("Using postgres store", nil)
	} else {
		domainStore = memory.NewStore()
		logger.Info("No database configured, using in-memory store", nil)
	}

	var engine completion.Engine
	if cfg.CompletionURL != "" {
		engine = completion.NewHTTPEngine(cfg.CompletionURL, cfg.CompletionAPIKey, cfg.CompletionModel)
	} else {
		engine = completion.StaticEngine{}
		logger.Info("No completion endpoint configured, using static engine", nil)
	}

	connector, err := transport.New(cfg, logging.NewWatermillAdapter(logger))
	if err != nil {
		return err
	}

	svc := gateway.New(cfg, logger, domainStore, engine, connector)
	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received", nil)
	return svc.Stop()
}
