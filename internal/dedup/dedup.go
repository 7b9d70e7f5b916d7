// Package dedup keeps the job history and decides which postings are new.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"go-careerwatch/internal/filter"
	"go-careerwatch/internal/models"
	"go-careerwatch/internal/storage"
)

const DocumentKey = "job_history.json"

// ErrHistoryCorrupt is returned by Load when the stored history cannot be
// decoded. Starting empty would report every known posting as new.
var ErrHistoryCorrupt = errors.New("job history corrupt")

// Record is the display copy of a posting kept next to its id.
type Record struct {
	Title     string    `json:"title"`
	Location  string    `json:"location,omitempty"`
	URL       string    `json:"url"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// CompanyHistory is everything remembered about one company.
type CompanyHistory struct {
	Seen    map[string]Record `json:"seen"`
	LastRun time.Time         `json:"last_run,omitzero"`
}

// Delta is the result of comparing a fresh batch with history.
type Delta struct {
	Matched []models.JobPosting // postings passing the filter, one per id
	New     []models.JobPosting // subset of Matched never seen before
}

// Detector compares fetched postings against the committed history. Updates
// are staged per company and written together by Commit.
type Detector struct {
	mu      sync.Mutex
	blobs   storage.BlobStore
	logger  *slog.Logger
	now     func() time.Time
	history map[string]*CompanyHistory
	staged  map[string][]models.JobPosting
}

// Load reads the history document. A missing document is an empty history.
func Load(ctx context.Context, blobs storage.BlobStore, logger *slog.Logger) (*Detector, error) {
	d := &Detector{
		blobs:   blobs,
		logger:  logger,
		now:     time.Now,
		history: make(map[string]*CompanyHistory),
		staged:  make(map[string][]models.JobPosting),
	}

	data, err := blobs.Get(ctx, DocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info("📋 No job history yet, starting fresh")
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DocumentKey, err)
	}
	if err := json.Unmarshal(data, &d.history); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
	}

	total := 0
	for id, h := range d.history {
		if h == nil {
			d.history[id] = &CompanyHistory{}
			h = d.history[id]
		}
		if h.Seen == nil {
			h.Seen = make(map[string]Record)
		}
		total += len(h.Seen)
	}
	logger.Info("📋 Loaded job history", "companies", len(d.history), "jobs", total)
	return d, nil
}

// Detect filters fresh with pred and returns the postings whose ids are not in
// the committed history. Duplicate ids in fresh collapse to the first one.
// Staged but uncommitted updates do not count as seen.
func (d *Detector) Detect(companyID string, fresh []models.JobPosting, pred filter.Predicate) Delta {
	if pred == nil {
		pred = filter.All
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var seen map[string]Record
	if h := d.history[companyID]; h != nil {
		seen = h.Seen
	}

	var delta Delta
	batch := make(map[string]bool, len(fresh))
	for _, job := range fresh {
		if job.ID == "" || batch[job.ID] || !pred(job) {
			continue
		}
		batch[job.ID] = true
		delta.Matched = append(delta.Matched, job)
		if _, ok := seen[job.ID]; !ok {
			delta.New = append(delta.New, job)
		}
	}
	return delta
}

// Stage queues matched postings for companyID. Staging an empty slice still
// records a successful run for the company.
func (d *Detector) Stage(companyID string, matched []models.JobPosting) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staged[companyID] = append(d.staged[companyID], matched...)
}

// Pending reports how many companies have staged updates.
func (d *Detector) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.staged)
}

// Commit merges every staged update into history and writes the document
// once. Ids are never removed. On a failed write the in-memory history and
// the staged updates are left untouched.
func (d *Detector) Commit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.staged) == 0 {
		return nil
	}

	now := d.now().UTC()
	next := make(map[string]*CompanyHistory, len(d.history)+len(d.staged))
	for id, h := range d.history {
		next[id] = &CompanyHistory{Seen: maps.Clone(h.Seen), LastRun: h.LastRun}
	}

	added := 0
	for companyID, jobs := range d.staged {
		h := next[companyID]
		if h == nil {
			h = &CompanyHistory{Seen: make(map[string]Record)}
			next[companyID] = h
		}
		for _, job := range jobs {
			rec, ok := h.Seen[job.ID]
			if !ok {
				rec.FirstSeen = now
				added++
			}
			rec.Title, rec.Location, rec.URL = job.Title, job.Location, job.URL
			rec.LastSeen = now
			h.Seen[job.ID] = rec
		}
		h.LastRun = now
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", DocumentKey, err)
	}
	if err := d.blobs.Put(ctx, DocumentKey, data); err != nil {
		return fmt.Errorf("write %s: %w", DocumentKey, err)
	}

	d.history = next
	d.staged = make(map[string][]models.JobPosting)
	d.logger.Info("💾 Job history saved", "companies", len(next), "added", added)
	return nil
}

// Company returns a copy of the committed history of one company.
func (d *Detector) Company(companyID string) (CompanyHistory, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.history[companyID]
	if !ok {
		return CompanyHistory{}, false
	}
	return CompanyHistory{Seen: maps.Clone(h.Seen), LastRun: h.LastRun}, true
}

// Companies lists the company ids with committed history.
func (d *Detector) Companies() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.history))
}
