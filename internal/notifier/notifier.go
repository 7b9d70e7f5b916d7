// Package notifier delivers the digest of new postings at the end of a run.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-careerwatch/internal/config"
	"go-careerwatch/internal/models"
)

// ErrNotifierFailure wraps any delivery error. History is not rolled back when it happens.
var ErrNotifierFailure = errors.New("notifier failure")

// CompanyJobs are the new postings of one company.
type CompanyJobs struct {
	Company string
	Jobs    []models.JobPosting
}

// Digest is everything one run found.
type Digest struct {
	RunID       string
	GeneratedAt time.Time
	Companies   []CompanyJobs
}

// Total counts postings across companies.
func (d Digest) Total() int {
	n := 0
	for _, c := range d.Companies {
		n += len(c.Jobs)
	}
	return n
}

type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
	Name() string
}

// StatusReporter is implemented by notifiers that can post a one-line run status.
type StatusReporter interface {
	SendStatus(message string) error
}

// New builds the notifier selected in cfg.
func New(cfg config.NotifierConfig, logger *slog.Logger) (Notifier, error) {
	switch cfg.Type {
	case "", "log":
		return NewLog(logger), nil
	case "telegram":
		t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "email":
		return NewEmail(cfg.Email, logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier type %q", cfg.Type)
	}
}

// Log writes the digest to the logger. Used for dry runs.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Notify(_ context.Context, d Digest) error {
	l.logger.Info("📬 New jobs", "run_id", d.RunID, "count", d.Total())
	for _, c := range d.Companies {
		for _, j := range c.Jobs {
			l.logger.Info("🆕 "+j.Title, "company", c.Company, "location", j.Location, "url", j.URL)
		}
	}
	return nil
}

func (l *Log) SendStatus(message string) error {
	l.logger.Warn("ℹ️ " + message)
	return nil
}
