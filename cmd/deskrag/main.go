// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/deskrag/ai"
	"github.com/poiesic/deskrag/ai/openai"
	"github.com/poiesic/deskrag/api"
	"github.com/poiesic/deskrag/audit"
	"github.com/poiesic/deskrag/config"
	"github.com/poiesic/deskrag/ingestion"
	"github.com/poiesic/deskrag/search"
	"github.com/poiesic/deskrag/vectorstore"
	badgerstore "github.com/poiesic/deskrag/vectorstore/badger"
	"github.com/poiesic/deskrag/vectorstore/pgvector"
	"github.com/poiesic/deskrag/zendesk"
)

const dateLayout = "2006-01-02"

func main() {
	app := &cli.App{
		Name:  "deskrag",
		Usage: "Support ticket ingestion and retrieval for agent assist",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
			},
			{
				Name:   "ingest",
				Usage:  "Ingest tickets created in a date range",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "start",
						Usage:    "Range start date (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "end",
						Usage:    "Range end date (YYYY-MM-DD)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "run-tag",
						Usage: "Provenance tag embedded in vector identifiers",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Search ingested tickets",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Search query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to retrieve",
						Value: search.DefaultTopK,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show vector store statistics",
				Action: statsCommand,
			},
			{
				Name:   "reset",
				Usage:  "Delete all vectors from the store",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion without prompting",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := openProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	pipeline, err := buildPipeline(ctx, cfg, provider, store)
	if err != nil {
		return err
	}
	if pipeline != nil {
		defer pipeline.Release()
	} else {
		slog.Warn("ticketing credentials not configured; ingestion endpoints disabled")
	}

	searcher, err := search.NewSearcher(store, provider.Embedder(), provider.Composer())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.NewHandler(pipeline, searcher, store)),
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdownCtx.Done():
	}

	slog.Info("shutting down")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(timeoutCtx)
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context

	start, err := time.Parse(dateLayout, c.String("start"))
	if err != nil {
		return fmt.Errorf("invalid --start date: %w", err)
	}
	end, err := time.Parse(dateLayout, c.String("end"))
	if err != nil {
		return fmt.Errorf("invalid --end date: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.HasTicketing() {
		return fmt.Errorf("ticketing credentials are required for ingestion " +
			"(ZENDESK_SUBDOMAIN, ZENDESK_EMAIL, ZENDESK_API_TOKEN)")
	}
	if tag := c.String("run-tag"); tag != "" {
		cfg.SourceTag = tag
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := openProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	pipeline, err := buildPipeline(ctx, cfg, provider, store)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	result, err := pipeline.Run(ctx, start, end)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return printJSON(result)
}

func searchCommand(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := openProvider(cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	searcher, err := search.NewSearcher(store, provider.Embedder(), provider.Composer())
	if err != nil {
		return err
	}

	results, err := searcher.Search(ctx, c.String("query"), c.Int("top-k"), nil)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func statsCommand(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func resetCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to delete all vectors without --yes")
	}

	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	fmt.Fprintln(os.Stderr, "vector store emptied")
	return nil
}

// openStore binds the configured vector backend and ensures its index.
func openStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, error) {
	var (
		store vectorstore.Store
		err   error
	)
	switch cfg.VectorBackend {
	case config.BackendBadger:
		store, err = badgerstore.Open(cfg.BadgerPath, cfg.EmbeddingDim)
	case config.BackendPgvector:
		store, err = pgvector.New(ctx, cfg.DatabaseURL, cfg.VectorTable, cfg.EmbeddingDim)
	default:
		err = fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	if err := store.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure vector index: %w", err)
	}
	return store, nil
}

func openProvider(cfg *config.Config) (ai.Provider, error) {
	opts := []ai.ConfigOption{
		ai.WithAPIKey(cfg.OpenAIAPIKey),
		ai.WithDimension(cfg.EmbeddingDim),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, ai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, ai.WithEmbeddingModel(cfg.EmbeddingModel))
	}
	if cfg.ChatModel != "" {
		opts = append(opts, ai.WithChatModel(cfg.ChatModel))
	}
	return openai.NewProvider(ai.NewConfig(opts...))
}

// buildPipeline wires the ticketing client, enricher, audit recorder,
// and orchestrator. Returns (nil, nil) when ticketing credentials are
// absent so the server can run search-only.
func buildPipeline(ctx context.Context, cfg *config.Config, provider ai.Provider, store vectorstore.Store) (*ingestion.Pipeline, error) {
	if !cfg.HasTicketing() {
		return nil, nil
	}

	client, err := zendesk.NewClient(cfg.ZendeskSubdomain, cfg.ZendeskEmail, cfg.ZendeskAPIToken)
	if err != nil {
		return nil, err
	}

	registry, err := zendesk.NewFieldRegistry(client)
	if err != nil {
		return nil, err
	}

	enricher, err := ingestion.NewEnricher(client, registry)
	if err != nil {
		return nil, err
	}

	recorder, err := audit.NewRecorder(client, cfg.SourceTag)
	if err != nil {
		return nil, err
	}
	if err := recorder.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	return ingestion.NewPipeline(client, enricher, registry, provider.Embedder(), store,
		ingestion.WithAuditWriter(recorder),
		ingestion.WithRunTag(cfg.SourceTag),
		ingestion.WithProgressWriter(os.Stderr),
	)
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
