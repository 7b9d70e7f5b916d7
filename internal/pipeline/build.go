package pipeline

import (
	"log/slog"

	"go-careerwatch/internal/apiclient"
	"go-careerwatch/internal/apiconfig"
	"go-careerwatch/internal/browser"
	"go-careerwatch/internal/config"
	"go-careerwatch/internal/discovery"
	"go-careerwatch/internal/extractor"
	"go-careerwatch/internal/metrics"
	"go-careerwatch/internal/notifier"
	"go-careerwatch/internal/scraper"
	"go-careerwatch/internal/storage"
)

// ObserverOptions maps the discovery section of the config.
func ObserverOptions(d config.DiscoveryConfig) discovery.ObserverOptions {
	return discovery.ObserverOptions{
		Timeout:        d.NavigationTimeout,
		WaitUntil:      d.WaitUntil,
		SettleDelay:    d.SettleDelay,
		ScrollSteps:    d.ScrollSteps,
		SearchTerm:     d.SearchTerm,
		ClickSelectors: d.ClickSelectors,
	}
}

// NewDiscoverer wires observer and recognizer from the config.
func NewDiscoverer(cfg *config.Config, renderer browser.Renderer, logger *slog.Logger) *discovery.Discoverer {
	return discovery.NewDiscoverer(
		discovery.NewObserver(renderer, ObserverOptions(cfg.Discovery), logger),
		discovery.NewRecognizer(discovery.Thresholds{
			MinScore:       cfg.Discovery.MinScore,
			MinListingSize: cfg.Discovery.MinListingSize,
		}, logger),
		logger,
	)
}

// NewAPIClient builds the replay client from the config.
func NewAPIClient(cfg *config.Config, logger *slog.Logger) *apiclient.Client {
	return apiclient.New(apiclient.Options{
		Timeout:    cfg.Replay.Timeout,
		MaxPages:   cfg.Replay.MaxPages,
		MaxResults: cfg.Replay.MaxResults,
		UserAgent:  cfg.Replay.UserAgent,
	}, logger)
}

// Build wires a Pipeline from the config and its outer collaborators.
func Build(cfg *config.Config, blobs storage.BlobStore, renderer browser.Renderer, n notifier.Notifier, m *metrics.Metrics, logger *slog.Logger, dryRun bool) *Pipeline {
	html := scraper.NewHTMLScraper(renderer, extractor.New(logger), scraper.HTMLOptions{
		Timeout:     cfg.Discovery.NavigationTimeout,
		WaitUntil:   cfg.Discovery.WaitUntil,
		SettleDelay: cfg.Discovery.SettleDelay,
		ScrollSteps: cfg.Discovery.ScrollSteps,
	}, logger)

	return New(Deps{
		Config:     cfg,
		Blobs:      blobs,
		Store:      apiconfig.NewStore(blobs, logger),
		Discoverer: NewDiscoverer(cfg, renderer, logger),
		API:        scraper.NewAPIScraper(NewAPIClient(cfg, logger)),
		HTML:       html,
		Notifier:   n,
		Metrics:    m,
		Logger:     logger,
	}, Options{
		CompanyDelay: cfg.Run.CompanyDelay,
		ArchiveDir:   cfg.Run.ArchiveDir,
		DryRun:       dryRun,
	})
}
