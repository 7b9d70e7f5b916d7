package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go-careerwatch/internal/browser"
	"go-careerwatch/internal/extractor"
	"go-careerwatch/internal/models"
)

// HTMLOptions control the page load when the HTML scraper renders by itself.
type HTMLOptions struct {
	Timeout     time.Duration
	WaitUntil   string
	SettleDelay time.Duration
	ScrollSteps int
}

// HTMLScraper extracts postings from the rendered career page.
type HTMLScraper struct {
	renderer  browser.Renderer
	extractor *extractor.Extractor
	opts      HTMLOptions
	logger    *slog.Logger
}

func NewHTMLScraper(renderer browser.Renderer, ex *extractor.Extractor, opts HTMLOptions, logger *slog.Logger) *HTMLScraper {
	return &HTMLScraper{renderer: renderer, extractor: ex, opts: opts, logger: logger}
}

func (s *HTMLScraper) Name() string {
	return string(models.SourceHTML)
}

// Scrape reuses target.HTML when discovery already loaded the page.
func (s *HTMLScraper) Scrape(ctx context.Context, target Target) ([]models.JobPosting, error) {
	page, base := target.HTML, target.BaseURL
	if page == "" {
		s.logger.Info("🌐 Rendering career page", "company", target.Company, "url", target.CareerURL)
		snap, err := s.renderer.Render(ctx, target.CareerURL, browser.RenderOptions{
			Timeout:     s.opts.Timeout,
			WaitUntil:   s.opts.WaitUntil,
			SettleDelay: s.opts.SettleDelay,
			ScrollSteps: s.opts.ScrollSteps,
			Interact:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", target.CareerURL, err)
		}
		page, base = snap.HTML, snap.FinalURL
	}
	if base == "" {
		base = target.CareerURL
	}

	jobs := s.extractor.Extract(page, base, target.Selectors, extractor.Origin{
		CompanyID:     target.CompanyID,
		Company:       target.Company,
		LocationHints: target.Locations,
	})
	if len(jobs) == 0 {
		s.logger.Warn("⚠️ No postings found in page", "company", target.Company, "url", base)
	}
	return jobs, nil
}
