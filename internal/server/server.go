// Package server exposes stored configurations, history and run control over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go-careerwatch/internal/apiconfig"
	"go-careerwatch/internal/dedup"
	"go-careerwatch/internal/pipeline"
	"go-careerwatch/internal/storage"

	"github.com/gin-gonic/gin"
)

// Runner starts background runs and remembers the last one.
type Runner interface {
	Start(ctx context.Context) (<-chan pipeline.Result, error)
	LastSummary() *pipeline.Summary
}

type Server struct {
	store   *apiconfig.Store
	blobs   storage.BlobStore
	runner  Runner
	metrics http.Handler
	logger  *slog.Logger

	// runs outlive the request that triggered them
	baseCtx context.Context
}

func New(baseCtx context.Context, store *apiconfig.Store, blobs storage.BlobStore, runner Runner, metrics http.Handler, logger *slog.Logger) *Server {
	return &Server{store: store, blobs: blobs, runner: runner, metrics: metrics, logger: logger, baseCtx: baseCtx}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	api.GET("/configs", s.listConfigs)
	api.GET("/configs/:company", s.getConfig)
	api.DELETE("/configs/:company", s.invalidateConfig)
	api.GET("/history/:company", s.getHistory)
	api.POST("/runs", s.startRun)
	api.GET("/runs/last", s.lastRun)
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "careerwatch is running!",
		"status":  "healthy",
	})
}

func (s *Server) listConfigs(c *gin.Context) {
	configs, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

func (s *Server) getConfig(c *gin.Context) {
	cfg, ok := s.store.Get(c.Request.Context(), c.Param("company"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no configuration for company"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) invalidateConfig(c *gin.Context) {
	company := c.Param("company")
	if err := s.store.Invalidate(c.Request.Context(), company); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("🗑️ Configuration invalidated via API", "company", company)
	c.Status(http.StatusNoContent)
}

func (s *Server) getHistory(c *gin.Context) {
	det, err := dedup.Load(c.Request.Context(), s.blobs, s.logger)
	if err != nil {
		s.fail(c, err)
		return
	}
	h, ok := det.Company(c.Param("company"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no history for company"})
		return
	}
	c.JSON(http.StatusOK, h)
}

func (s *Server) startRun(c *gin.Context) {
	done, err := s.runner.Start(s.baseCtx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	go func() {
		res := <-done
		if res.Err != nil {
			s.logger.Warn("⚠️ Triggered run ended with error", "error", res.Err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) lastRun(c *gin.Context) {
	summary := s.runner.LastSummary()
	if summary == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	c.JSON(http.StatusOK, summary.Errors())
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("❌ Request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
