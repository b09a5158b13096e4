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
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/docqa"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/api"
	"github.com/poiesic/docqa/chunk"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/rag"
	"github.com/poiesic/docqa/reembed"
)

func main() {
	app := &cli.App{
		Name:  "docqa",
		Usage: "Document question answering over your own files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "docqa.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and ingestion worker",
				Action: serveCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a local file synchronously",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Owner of the ingested document",
						Value:   "anonymous",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question against ingested documents",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Scope retrieval to this user's documents",
						Value:   "anonymous",
					},
					&cli.BoolFlag{
						Name:  "stream",
						Usage: "Stream the answer token by token",
					},
					&cli.Uint64Flag{
						Name:  "document",
						Usage: "Restrict retrieval to one document id",
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Override how many chunks are retrieved",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed a user's chunks with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Owner whose chunks are reembedded",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed embedding calls",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup(c *cli.Context) error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

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

// openSystem loads the configuration and opens the full service stack.
// Callers own the returned System and must Close it.
func openSystem(c *cli.Context) (*docqa.System, *config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
		ai.WithChatHost(cfg.AI.ChatHost),
		ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
		ai.WithChatModel(cfg.AI.ChatModel),
		ai.WithAPIKey(cfg.AI.APIKey()),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := []docqa.SystemOption{docqa.WithAIConfig(aiConfig)}
	if cfg.Storage.InMemory {
		opts = append(opts, docqa.WithInMemoryStorage())
	}

	system, err := docqa.NewSystem(cfg.Storage.Path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return system, cfg, nil
}

func newPipeline(system *docqa.System, cfg *config.AppConfig) (*ingestion.Pipeline, error) {
	chunker := chunk.New(
		chunk.WithChunkSize(cfg.Chunking.ChunkSize),
		chunk.WithChunkOverlap(cfg.Chunking.ChunkOverlap),
	)
	queue := ingestion.NewQueue(cfg.Ingestion.QueueCapacity)

	opts := []ingestion.Option{
		ingestion.WithMaxFileSize(cfg.Ingestion.MaxFileSize),
	}
	if cfg.Ingestion.StagingDir != "" {
		opts = append(opts, ingestion.WithStagingDir(cfg.Ingestion.StagingDir))
	}
	return system.NewIngestionPipeline(chunker, queue, opts...)
}

func serveCommand(c *cli.Context) error {
	system, cfg, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := newPipeline(system, cfg)
	if err != nil {
		return fmt.Errorf("failed to build ingestion pipeline: %w", err)
	}

	worker, err := ingestion.NewWorker(pipeline,
		ingestion.WithConcurrency(cfg.Ingestion.Concurrency))
	if err != nil {
		return fmt.Errorf("failed to build ingestion worker: %w", err)
	}
	defer worker.Release()

	answers, err := system.NewAnswerService(
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
	)
	if err != nil {
		return fmt.Errorf("failed to build answer service: %w", err)
	}

	handler := api.NewHandler(pipeline, answers,
		system.DocumentRepository(), system.VectorRepository())
	server := api.NewServer(cfg.Server.Addr, api.NewRouter(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.ListenAndServe)

	// The worker gets its own context so it can finish jobs already
	// dequeued during shutdown. Closing the queue is what stops it.
	g.Go(func() error {
		return worker.Run(context.Background())
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown failed", "err", err)
		}

		// No more uploads can arrive; drain the queue and stop the worker.
		pipeline.Queue().Close()
		return nil
	})

	return g.Wait()
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	contentType, err := contentTypeForFile(path)
	if err != nil {
		return err
	}

	system, cfg, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	pipeline, err := newPipeline(system, cfg)
	if err != nil {
		return fmt.Errorf("failed to build ingestion pipeline: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	ctx := c.Context
	document, err := pipeline.QueueDocument(ctx, c.String("user"),
		filepath.Base(path), contentType, info.Size(), file)
	if err != nil {
		return fmt.Errorf("failed to queue document: %w", err)
	}

	// Process synchronously; the job we queued is the only one there.
	job := <-pipeline.Queue().Dequeue()
	if err := pipeline.ProcessDocument(ctx, job); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	processed, err := system.DocumentRepository().GetDocument(ctx, document.Id)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	fmt.Printf("Ingested %s (id %d, %d chunks)\n",
		processed.Filename, processed.Id, processed.ChunkCount)
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("expected a question argument")
	}
	question := strings.Join(c.Args().Slice(), " ")

	system, cfg, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	answers, err := system.NewAnswerService(
		rag.WithTopK(cfg.Retrieval.TopK),
		rag.WithMinSimilarity(cfg.Retrieval.MinSimilarity),
	)
	if err != nil {
		return fmt.Errorf("failed to build answer service: %w", err)
	}

	system.WarnStuckDocuments(c.Context, c.String("user"))

	var askOpts []rag.AskOption
	if id := c.Uint64("document"); id != 0 {
		askOpts = append(askOpts, rag.ScopedToDocument(core.ID(id)))
	}
	if k := c.Int("top-k"); k > 0 {
		askOpts = append(askOpts, rag.Limit(k))
	}

	var answer *rag.Answer
	if c.Bool("stream") {
		answer, err = answers.AskStream(c.Context, c.String("user"), question, nil,
			func(ctx context.Context, token string) error {
				_, err := fmt.Print(token)
				return err
			}, askOpts...)
		fmt.Println()
	} else {
		answer, err = answers.Ask(c.Context, c.String("user"), question, askOpts...)
		if err == nil {
			fmt.Println(answer.Answer)
		}
	}
	if err != nil {
		return fmt.Errorf("question failed: %w", err)
	}

	if len(answer.Sources) > 0 {
		fmt.Println()
		for i, source := range answer.Sources {
			fmt.Printf("[%d] %s (%.0f%%)\n", i+1, source.Filename, source.Score*100)
		}
	}
	fmt.Printf("\nTokens: %d in, %d out (est. $%.6f)\n",
		answer.Usage.InputTokens, answer.Usage.OutputTokens, answer.Usage.EstimatedCost)
	return nil
}

func reembedCommand(c *cli.Context) error {
	system, _, err := openSystem(c)
	if err != nil {
		return err
	}
	defer system.Close()

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder := system.NewReembedder(reembedConfig, os.Stderr)

	if err := reembedder.Run(c.Context, c.String("user")); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func contentTypeForFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".txt":
		return "text/plain", nil
	case ".md", ".markdown":
		return "text/markdown", nil
	default:
		return "", fmt.Errorf("unsupported file extension %q: must be .pdf, .txt or .md", filepath.Ext(path))
	}
}
