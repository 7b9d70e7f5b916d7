package scraper

import (
	"context"

	"go-careerwatch/internal/apiclient"
	"go-careerwatch/internal/models"
)

// APIScraper replays the target's stored API shape.
type APIScraper struct {
	client *apiclient.Client
}

func NewAPIScraper(client *apiclient.Client) *APIScraper {
	return &APIScraper{client: client}
}

func (s *APIScraper) Name() string {
	return string(models.SourceAPI)
}

func (s *APIScraper) Scrape(ctx context.Context, target Target) ([]models.JobPosting, error) {
	if target.API == nil {
		return nil, ErrNoConfiguration
	}
	var location string
	if len(target.Locations) > 0 {
		location = target.Locations[0]
	}
	return s.client.Fetch(ctx, target.API, apiclient.Params{
		Company:  target.Company,
		Keywords: target.Keywords,
		Location: location,
	})
}
