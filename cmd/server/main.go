package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-careerwatch/internal/apiconfig"
	"go-careerwatch/internal/browser"
	"go-careerwatch/internal/config"
	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/metrics"
	"go-careerwatch/internal/notifier"
	"go-careerwatch/internal/pipeline"
	"go-careerwatch/internal/scheduler"
	"go-careerwatch/internal/server"
	"go-careerwatch/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	log, logCloser, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		slog.Error("❌ Failed to init logger", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := serve(cfg, log); err != nil {
		log.Error("❌ Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		Dir:         cfg.Storage.Dir,
		RedisURL:    cfg.Storage.RedisURL,
		RedisPrefix: cfg.Storage.RedisPrefix,
		DatabaseURL: cfg.Storage.DatabaseURL,
	})
	if err != nil {
		return err
	}
	defer blobs.Close()

	n, err := notifier.New(cfg.Notifier, log)
	if err != nil {
		return err
	}

	renderer := browser.NewManager(browser.Options{
		Headless:      *cfg.Discovery.Headless,
		UserAgent:     cfg.Discovery.UserAgent,
		ScreenshotDir: cfg.Discovery.ScreenshotDir,
	}, log)
	m := metrics.New()
	p := pipeline.Build(cfg, blobs, renderer, n, m, log, false)

	if cfg.Server.Schedule != "" {
		sched := scheduler.New(p, cfg.Server.Schedule, log)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	api := server.New(ctx, apiconfig.NewStore(blobs, log), blobs, p, m.Handler(), log)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🌐 Server listening", "port", cfg.Server.Port, "schedule", cfg.Server.Schedule)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
