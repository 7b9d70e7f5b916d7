package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go-careerwatch/internal/browser"
	"go-careerwatch/internal/config"
	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/storage"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "scraper",
		Short:         "Watch company career pages for new job postings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "path to the YAML config file")
	root.AddCommand(runCommand(), discoverCommand(), configsCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	blobs  storage.BlobStore

	closers []io.Closer
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, logCloser, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, err
	}
	log.Info("🔧 Config loaded", "companies", len(cfg.Companies), "keywords", cfg.Keywords, "storage", cfg.Storage.Backend)

	blobs, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		Dir:         cfg.Storage.Dir,
		RedisURL:    cfg.Storage.RedisURL,
		RedisPrefix: cfg.Storage.RedisPrefix,
		DatabaseURL: cfg.Storage.DatabaseURL,
	})
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	return &app{cfg: cfg, logger: log, blobs: blobs, closers: []io.Closer{blobs, logCloser}}, nil
}

func (a *app) renderer() *browser.Manager {
	return browser.NewManager(browser.Options{
		Headless:      *a.cfg.Discovery.Headless,
		UserAgent:     a.cfg.Discovery.UserAgent,
		ScreenshotDir: a.cfg.Discovery.ScreenshotDir,
	}, a.logger)
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("⚠️ Close failed", "error", err)
		}
	}
}
