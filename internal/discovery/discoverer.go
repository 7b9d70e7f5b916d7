package discovery

import (
	"context"
	"log/slog"
	"time"

	"go-careerwatch/internal/models"
)

// Discoverer runs one observation and recognises the listing API in it.
type Discoverer struct {
	observer   *Observer
	recognizer *Recognizer
	logger     *slog.Logger
}

func NewDiscoverer(observer *Observer, recognizer *Recognizer, logger *slog.Logger) *Discoverer {
	return &Discoverer{observer: observer, recognizer: recognizer, logger: logger}
}

// Discover observes careerURL and returns the recognised configuration,
// stamped with companyID. The Observation is returned whenever the page
// loaded, including on ErrNoJSONTraffic and ErrNoConfidentMatch, so callers
// can fall back to its HTML.
func (d *Discoverer) Discover(ctx context.Context, companyID, careerURL string) (*models.ApiConfiguration, *Observation, error) {
	start := time.Now()
	d.logger.Info("🔍 Discovering job API", "company", companyID, "url", careerURL)

	obs, err := d.observer.Observe(ctx, careerURL)
	if err != nil {
		d.logger.Warn("⚠️ Discovery failed", "company", companyID, "error", err, "elapsed", time.Since(start).Round(time.Millisecond))
		return nil, obs, err
	}

	cfg, err := d.recognizer.Recognize(careerURL, obs.Candidates)
	if err != nil {
		d.logger.Warn("⚠️ No job API recognized", "company", companyID, "error", err)
		return nil, obs, err
	}
	cfg.CompanyID = companyID

	d.logger.Info("✅ Job API discovered", "company", companyID, "endpoint", cfg.Endpoint,
		"confidence", cfg.Confidence, "elapsed", time.Since(start).Round(time.Millisecond))
	return cfg, obs, nil
}
