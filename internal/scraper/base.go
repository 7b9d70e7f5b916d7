// Package scraper holds the two ways postings are fetched for a company:
// replaying its listing API and extracting the rendered career page.
package scraper

import (
	"context"
	"errors"

	"go-careerwatch/internal/extractor"
	"go-careerwatch/internal/models"
)

// ErrNoConfiguration is returned by the API scraper when the target carries no API shape.
var ErrNoConfiguration = errors.New("no api configuration")

// Target is one company as seen by a scraper.
type Target struct {
	CompanyID string
	Company   string
	CareerURL string
	Keywords  []string
	Locations []string
	Selectors extractor.Selectors

	// API is the shape replayed by the API scraper.
	API *models.ApiConfiguration
	// HTML is an already rendered page; when empty the HTML scraper renders CareerURL itself.
	HTML    string
	BaseURL string
}

// Scraper defines the interface that both fetch paths implement
type Scraper interface {
	// Scrape returns the postings currently listed for target
	Scrape(ctx context.Context, target Target) ([]models.JobPosting, error)

	// Name is the fetch path (api, html)
	Name() string
}
