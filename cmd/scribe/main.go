package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/MikeSquared-Agency/scribe/internal/api"
	"github.com/MikeSquared-Agency/scribe/internal/assistant"
	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/deepseek"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/localstore"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args); err != nil {
		slog.Error("scribe failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg := config.Load()

	app := &cli.Command{
		Name:    "scribe",
		Usage:   "Import, browse and question a ChatGPT Markdown archive",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Value:       cfg.LogLevel,
				Destination: &cfg.LogLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			setupLogging(cfg.LogLevel, os.Stdout)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(&cfg),
			cmdImport(&cfg),
			cmdAsk(&cfg),
		},
	}
	return app.Run(ctx, args)
}

func cmdServe(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "port",
				Usage:       "listen port",
				Value:       cfg.Port,
				Destination: &cfg.Port,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, *cfg)
		},
	}
}

func cmdImport(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a Markdown export, replacing the stored archive",
		ArgsUsage: "<file.md>",
		Before:    logToStderr(cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("import takes exactly one file")
			}
			return importFile(ctx, *cfg, c.Args().First())
		},
	}
}

func cmdAsk(cfg *config.Config) *cli.Command {
	var systemPrompt string
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a question about the stored archive",
		ArgsUsage: "<question>",
		Before:    logToStderr(cfg),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "system-prompt",
				Usage:       "override the built-in system prompt",
				Destination: &systemPrompt,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("ask needs a question")
			}
			return ask(ctx, *cfg, query, systemPrompt)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	slog.Info("scribe starting", "port", cfg.Port)

	db, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	// Event bus (optional; imports work without it, just no events)
	var bus ingest.Publisher
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer hermesClient.Close()
		bus = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured, running without events")
	}

	history, err := ingest.LoadHistory(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("load import history: %w", err)
	}
	importer := ingest.NewImporter(ingest.NewDriver(slog.Default()), db, bus, slog.Default())
	importer.SetHistory(history)

	var ai *assistant.Assistant
	if cfg.DeepSeekAPIKey != "" {
		ai = assistant.New(deepseek.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekURL), slog.Default())
		slog.Info("deepseek client ready", "model", cfg.DeepSeekModel)
	} else {
		slog.Warn("DEEPSEEK_API_KEY not set, ask and distill are disabled")
	}

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectImportRequested, importer.HandleImportRequested); err != nil {
			return fmt.Errorf("subscribe to import requests: %w", err)
		}
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Store:          db,
		Book:           db,
		Importer:       importer,
		Assistant:      ai,
		History:        history,
		Logger:         slog.Default(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	})
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
			"version":   version,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("scribe ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}
	slog.Info("scribe stopped")
	return nil
}

func importFile(ctx context.Context, cfg config.Config, path string) error {
	db, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	file, err := ingest.OpenPath(path)
	if err != nil {
		return err
	}

	history, err := ingest.LoadHistory(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("load import history: %w", err)
	}
	importer := ingest.NewImporter(ingest.NewDriver(slog.Default()), db, nil, slog.Default())
	importer.SetHistory(history)
	res, err := importer.Import(ctx, file, func(p ingest.Progress) {
		fmt.Fprintf(os.Stderr, "\r[%3d%%] %-60s", p.Current, p.Status)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func ask(ctx context.Context, cfg config.Config, query, systemPrompt string) error {
	if cfg.DeepSeekAPIKey == "" {
		return fmt.Errorf("DEEPSEEK_API_KEY is required")
	}

	db, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	conversations, err := db.LoadConversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}

	ai := assistant.New(deepseek.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.DeepSeekURL), slog.Default())
	err = ai.Ask(ctx, query, conversations, systemPrompt,
		func(sources []assistant.Source) {
			for _, s := range sources {
				fmt.Fprintf(os.Stderr, "source [ID:%s] %s (score %d)\n", s.ID, s.Title, s.Score)
			}
		},
		func(fragment string) error {
			_, err := fmt.Fprint(os.Stdout, fragment)
			return err
		},
	)
	fmt.Fprintln(os.Stdout)
	return err
}

// openStore picks PostgreSQL when DATABASE_URL is set and the local SQLite
// file otherwise.
func openStore(ctx context.Context, cfg config.Config) (api.Backend, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("database connected", "backend", "postgres")
		return db, db.Close, nil
	}

	db, err := localstore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	slog.Info("database opened", "backend", "sqlite", "path", db.Path())
	return db, func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}, nil
}

// logToStderr keeps stdout free for command output.
func logToStderr(cfg *config.Config) cli.BeforeFunc {
	return func(ctx context.Context, c *cli.Command) (context.Context, error) {
		setupLogging(cfg.LogLevel, os.Stderr)
		return ctx, nil
	}
}

func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
