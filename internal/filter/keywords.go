// Package filter decides which postings a run is interested in.
package filter

import "go-careerwatch/internal/models"

// Predicate reports whether a posting is of interest.
type Predicate func(job models.JobPosting) bool

// All accepts every posting.
func All(models.JobPosting) bool { return true }

// New builds the keyword/location predicate. Keywords are matched against the
// title, locations against the location. An empty list accepts everything.
// With locations configured, a posting without a location is rejected.
func New(keywords, locations []string) Predicate {
	kw := NewMatcher(keywords)
	loc := NewMatcher(locations)
	return func(job models.JobPosting) bool {
		return kw.Match(job.Title) && loc.Match(job.Location)
	}
}
