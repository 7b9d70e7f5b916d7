// Package pipeline runs one check over every configured company: fetch,
// filter, detect new postings, commit history and notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go-careerwatch/internal/apiconfig"
	"go-careerwatch/internal/config"
	"go-careerwatch/internal/dedup"
	"go-careerwatch/internal/discovery"
	"go-careerwatch/internal/extractor"
	"go-careerwatch/internal/filter"
	"go-careerwatch/internal/metrics"
	"go-careerwatch/internal/models"
	"go-careerwatch/internal/notifier"
	"go-careerwatch/internal/scraper"
	"go-careerwatch/internal/storage"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a run is already in progress")

// Discoverer finds the listing API behind a career page.
type Discoverer interface {
	Discover(ctx context.Context, companyID, careerURL string) (*models.ApiConfiguration, *discovery.Observation, error)
}

type Options struct {
	CompanyDelay time.Duration
	ArchiveDir   string
	// DryRun fetches and detects but leaves history and the archive untouched.
	DryRun bool
}

type Deps struct {
	Config     *config.Config
	Blobs      storage.BlobStore
	Store      *apiconfig.Store
	Discoverer Discoverer
	API        scraper.Scraper
	HTML       scraper.Scraper
	Notifier   notifier.Notifier
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type Pipeline struct {
	Deps
	opts Options

	running sync.Mutex
	mu      sync.Mutex
	last    *Summary

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(deps Deps, opts Options) *Pipeline {
	return &Pipeline{Deps: deps, opts: opts, now: time.Now, sleep: sleepCtx}
}

// LastSummary returns the summary of the most recent finished run, if any.
func (p *Pipeline) LastSummary() *Summary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run processes every company in order. Companies fail independently; the
// returned error covers history, notifier and cancellation problems.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()
	return p.runLocked(ctx)
}

// Result is delivered by Start when the background run ends.
type Result struct {
	Summary *Summary
	Err     error
}

// Start launches a run in the background. It fails immediately with
// ErrRunInProgress instead of queueing behind an active run.
func (p *Pipeline) Start(ctx context.Context) (<-chan Result, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	done := make(chan Result, 1)
	go func() {
		defer p.running.Unlock()
		summary, err := p.runLocked(ctx)
		done <- Result{Summary: summary, Err: err}
	}()
	return done, nil
}

func (p *Pipeline) runLocked(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString(), StartedAt: p.now()}
	log := p.Logger.With("run_id", summary.RunID)
	log.Info("🚀 Run started", "companies", len(p.Config.Companies), "dry_run", p.opts.DryRun)

	err := p.run(ctx, log, summary)

	summary.FinishedAt = p.now()
	summary.Log(log)
	p.reportFailures(log, summary)
	p.Metrics.ObserveRun(summary.Status(), summary.FinishedAt.Sub(summary.StartedAt), summary.Committed)

	p.mu.Lock()
	p.last = summary
	p.mu.Unlock()
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, summary *Summary) error {
	detector, err := dedup.Load(ctx, p.Blobs, log)
	if err != nil {
		summary.Err = err
		return fmt.Errorf("load history: %w", err)
	}

	for i, co := range p.Config.Companies {
		if i > 0 && p.opts.CompanyDelay > 0 {
			if err := p.sleep(ctx, p.opts.CompanyDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		summary.Companies = append(summary.Companies, p.processCompany(ctx, log, detector, co))
	}
	if err := ctx.Err(); err != nil {
		summary.Err = err
		log.Warn("⚠️ Run cancelled, history not committed", "error", err)
		return err
	}

	if !p.opts.DryRun {
		if err := detector.Commit(ctx); err != nil {
			summary.Err = err
			return fmt.Errorf("commit history: %w", err)
		}
		summary.Committed = true
		if p.opts.ArchiveDir != "" {
			if err := saveJobs(p.opts.ArchiveDir, summary.NewJobs(), p.now()); err != nil {
				log.Warn("⚠️ Failed to archive new jobs", "error", err)
			}
		}
	}

	if summary.TotalNew() == 0 {
		log.Info("ℹ️ No new jobs, nothing to send")
		return nil
	}
	digest := summary.Digest(p.now())
	if err := p.Notifier.Notify(ctx, digest); err != nil {
		summary.NotifyErr = fmt.Errorf("%w: %s: %v", notifier.ErrNotifierFailure, p.Notifier.Name(), err)
		log.Error("❌ Failed to send notification", "notifier", p.Notifier.Name(), "error", err)
		return summary.NotifyErr
	}
	summary.Notified = true
	log.Info("📬 Notification sent", "notifier", p.Notifier.Name(), "jobs", digest.Total())
	return nil
}

// reportFailures posts the failed companies when the notifier supports it.
func (p *Pipeline) reportFailures(log *slog.Logger, s *Summary) {
	sr, ok := p.Notifier.(notifier.StatusReporter)
	if !ok || s.Failed() == 0 {
		return
	}
	var names []string
	for _, c := range s.Companies {
		if c.Err != nil {
			names = append(names, c.Company)
		}
	}
	msg := fmt.Sprintf("%d of %d companies could not be checked: %s", len(names), len(s.Companies), strings.Join(names, ", "))
	if err := sr.SendStatus(msg); err != nil {
		log.Warn("⚠️ Failed to send status", "error", err)
	}
}

func (p *Pipeline) processCompany(ctx context.Context, log *slog.Logger, detector *dedup.Detector, co config.Company) CompanyResult {
	start := p.now()
	log = log.With("company", co.Name)
	log.Info("▶️ Checking company", "url", co.URL)

	res := CompanyResult{CompanyID: co.ID, Company: co.Name}
	target := p.target(co)

	jobs, source, err := p.fetch(ctx, log, co, target)
	res.Elapsed = p.now().Sub(start)
	if err != nil {
		res.Err = err
		log.Error("❌ All fetch paths failed", "error", err)
		p.Metrics.ObserveCompany(co.ID, "failed", 0, 0)
		return res
	}

	delta := detector.Detect(co.ID, jobs, filter.New(target.Keywords, target.Locations))
	detector.Stage(co.ID, delta.Matched)

	res.Source = source
	res.Fetched = len(jobs)
	res.Matched = len(delta.Matched)
	res.New = delta.New
	p.Metrics.ObserveCompany(co.ID, string(source), res.Matched, len(res.New))
	log.Info("✅ Company done", "source", source, "fetched", res.Fetched, "matched", res.Matched, "new", len(res.New))
	return res
}

func (p *Pipeline) target(co config.Company) scraper.Target {
	t := scraper.Target{
		CompanyID: co.ID,
		Company:   co.Name,
		CareerURL: co.URL,
		Keywords:  p.Config.KeywordsFor(co),
		Locations: p.Config.LocationsFor(co),
	}
	if s := co.Selectors; s != nil {
		t.Selectors = extractor.Selectors{Container: s.Container, Title: s.Title, Location: s.Location, Link: s.Link}
	}
	return t
}

// fetch tries the stored API, then one discovery, then the HTML extractor.
// A stored configuration that fails replay is invalidated before rediscovery.
func (p *Pipeline) fetch(ctx context.Context, log *slog.Logger, co config.Company, target scraper.Target) ([]models.JobPosting, models.Source, error) {
	if !co.APIEnabled() {
		log.Info("🧾 API disabled, scraping HTML")
		return p.scrapeHTML(ctx, target, nil)
	}

	if cfg, ok := p.Store.Get(ctx, co.ID); ok {
		target.API = cfg
		jobs, err := p.API.Scrape(ctx, target)
		if err == nil {
			p.verified(ctx, log, co.ID, cfg)
			log.Info("⚡ Replayed stored API", "endpoint", cfg.Endpoint, "count", len(jobs))
			return jobs, models.SourceAPI, nil
		}
		log.Warn("⚠️ Stored API configuration is stale, rediscovering", "endpoint", cfg.Endpoint, "error", err)
		p.Metrics.ObserveReplayFailure(co.ID, err)
		if err := p.Store.Invalidate(ctx, co.ID); err != nil {
			log.Warn("⚠️ Failed to invalidate configuration", "error", err)
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}

	cfg, obs, err := p.Discoverer.Discover(ctx, co.ID, co.URL)
	p.Metrics.ObserveDiscovery(err)
	if err == nil {
		target.API = cfg
		jobs, err := p.API.Scrape(ctx, target)
		if err == nil {
			p.verified(ctx, log, co.ID, cfg)
			log.Info("⚡ Discovered API replayed", "endpoint", cfg.Endpoint, "count", len(jobs))
			return jobs, models.SourceAPI, nil
		}
		log.Warn("⚠️ Discovered API failed replay, not saving it", "endpoint", cfg.Endpoint, "error", err)
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	log.Info("🧾 Falling back to HTML extraction")
	return p.scrapeHTML(ctx, target, obs)
}

func (p *Pipeline) scrapeHTML(ctx context.Context, target scraper.Target, obs *discovery.Observation) ([]models.JobPosting, models.Source, error) {
	if obs != nil && obs.HTML != "" {
		target.HTML, target.BaseURL = obs.HTML, obs.FinalURL
	}
	jobs, err := p.HTML.Scrape(ctx, target)
	if err != nil {
		return nil, "", err
	}
	return jobs, models.SourceHTML, nil
}

// verified stores cfg after a successful replay.
func (p *Pipeline) verified(ctx context.Context, log *slog.Logger, companyID string, cfg *models.ApiConfiguration) {
	cfg.Validated = true
	cfg.LastVerified = p.now().UTC()
	if err := p.Store.Put(ctx, companyID, cfg); err != nil {
		log.Warn("⚠️ Failed to save API configuration", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
