// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scrivo Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scrivo-dev/scrivo/internal/command"
	"github.com/scrivo-dev/scrivo/internal/config"
	"github.com/scrivo-dev/scrivo/internal/embed"
	"github.com/scrivo-dev/scrivo/internal/ingest"
	"github.com/scrivo-dev/scrivo/internal/notes"
	"github.com/scrivo-dev/scrivo/internal/search"
	"github.com/scrivo-dev/scrivo/internal/server"
	"github.com/scrivo-dev/scrivo/internal/store"
	scrivoerr "github.com/scrivo-dev/scrivo/pkg/errors"

	// Storage backends register themselves on import.
	_ "github.com/scrivo-dev/scrivo/internal/store/memory"
	_ "github.com/scrivo-dev/scrivo/internal/store/sqlite"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scrivo server",
		Long:  "Load configuration, initialize storage and the command queue, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = discoverConfig()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.WarnInsecurePermissions(cfgPath)

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	stores, err := store.NewStores(&store.StorageConfig{
		Backend:          cfg.Storage.Backend,
		VectorDimensions: cfg.Storage.VectorDimensions,
	}, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening stores: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			slog.Warn("closing stores", "error", err)
		}
	}()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	chunker := ingest.NewChunker(
		ingest.WithChunkSize(cfg.Ingest.ChunkSize),
		ingest.WithOverlap(cfg.Ingest.ChunkOverlap),
	)
	ingestSvc := ingest.NewService(chunker, embedder, stores.Chunks)
	engine := search.NewEngine(embedder, stores.Chunks, stores.Vectors)

	executor := command.NewExecutor(notes.NewFS(cfg.Notes.VaultDir))
	queue := command.NewQueue(stores.Commands, executor, command.Config{
		Workers:       cfg.Commands.Workers,
		PollInterval:  cfg.Commands.PollInterval,
		AbandonAfter:  cfg.Commands.AbandonAfter,
		SweepInterval: cfg.Commands.SweepInterval,
	})

	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.Listen,
		CORSOrigins:    cfg.Server.CORSOrigins,
		CommandTimeout: cfg.Server.CommandTimeout,
	})
	if err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeServerStartFailure, "creating server")
	}
	srv.RegisterRoutes(&server.Services{
		Ingest:   ingestSvc,
		Search:   engine,
		Commands: queue,
		Chunks:   stores.Chunks,
	})

	queue.Start()
	defer queue.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting scrivo",
		"listen", cfg.Server.Listen,
		"backend", cfg.Storage.Backend,
		"embedding", cfg.Embedding.Provider,
	)

	if err := srv.Start(ctx); err != nil {
		return scrivoerr.Wrap(err, scrivoerr.CodeServerStartFailure, "running server")
	}

	slog.Info("scrivo stopped")
	return nil
}

// newEmbedder builds the configured embedding provider. The mock provider is
// deterministic and needs no credentials, which keeps local testing offline.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embed.NewMock(cfg.Storage.VectorDimensions), nil
	default:
		return embed.NewOpenAI(embed.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.Endpoint,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Storage.VectorDimensions,
		})
	}
}

// discoverConfig finds an existing config file in the standard location, or
// bootstraps a commented default there on first run. An empty return means
// run on defaults and environment variables only.
func discoverConfig() string {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return config.BootstrapConfig()
}
