package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rhuss/chatkit/pkg/assistant"
	"github.com/rhuss/chatkit/pkg/chatkit"
	"github.com/rhuss/chatkit/pkg/config"
	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/transport"
	transporthttp "github.com/rhuss/chatkit/pkg/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
	})

	srv, cleanup, err := buildServer(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("chatkit server configured",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	return srv.ListenAndServe()
}

// buildServer assembles the store, provider, assistant and HTTP server.
// cleanup releases the store and provider.
func buildServer(ctx context.Context, cfg *config.Config) (*transporthttp.Server, func(), error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	prov, err := buildProvider(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := prov.Close(); err != nil {
			slog.Warn("closing provider", "error", err)
		}
		if err := store.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}

	responder := assistant.New(store, prov,
		assistant.WithAgent(buildAgent(cfg.Assistant)),
		assistant.WithMaxRecentItems(cfg.Assistant.MaxRecentItems),
	)

	inflight := transport.NewInFlightRegistry()
	handler, err := chatkit.New(store, responder, chatkit.WithInFlightRegistry(inflight))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating chat server: %w", err)
	}

	authMW, err := buildAuth(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	srv := transporthttp.NewServer(handler, store, inflight,
		transporthttp.WithAddr(cfg.Server.Addr),
		transporthttp.WithReadHeaderTimeout(cfg.Server.ReadHeaderTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithPageSizes(cfg.Server.DefaultPageSize, cfg.Server.MaxPageSize),
		transporthttp.WithMetrics(cfg.Observability.Metrics.Enabled, cfg.Observability.Metrics.Path),
		transporthttp.WithHTTPMiddleware(authMW),
	)
	return srv, cleanup, nil
}
