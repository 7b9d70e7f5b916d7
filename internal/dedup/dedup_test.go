package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-careerwatch/internal/filter"
	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/models"
	"go-careerwatch/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func job(id, title, location string) models.JobPosting {
	return models.JobPosting{ID: id, Title: title, Location: location, URL: "https://acme.example/jobs/" + id, Company: "Acme"}
}

func ids(jobs []models.JobPosting) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func load(t *testing.T, blobs storage.BlobStore) *Detector {
	t.Helper()
	d, err := Load(context.Background(), blobs, logger.Discard())
	require.NoError(t, err)
	return d
}

func TestDetector_Idempotent(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	fresh := []models.JobPosting{job("1", "Intern A", "Berlin"), job("2", "Intern B", "Köln")}

	d := load(t, blobs)
	delta := d.Detect("acme", fresh, filter.All)
	assert.Equal(t, []string{"1", "2"}, ids(delta.New))
	d.Stage("acme", delta.Matched)
	require.NoError(t, d.Commit(ctx))

	// same batch in the next run yields nothing new
	d = load(t, blobs)
	delta = d.Detect("acme", fresh, filter.All)
	assert.Empty(t, delta.New)
	assert.Equal(t, []string{"1", "2"}, ids(delta.Matched))
}

func TestDetector_Monotonic(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()

	d := load(t, blobs)
	d.Stage("acme", []models.JobPosting{job("1", "Intern A", ""), job("2", "Intern B", "")})
	require.NoError(t, d.Commit(ctx))

	// posting 1 disappears from the site; history keeps it
	d = load(t, blobs)
	d.Stage("acme", []models.JobPosting{job("2", "Intern B", ""), job("3", "Intern C", "")})
	require.NoError(t, d.Commit(ctx))

	d = load(t, blobs)
	h, ok := d.Company("acme")
	require.True(t, ok)
	assert.Len(t, h.Seen, 3)
	assert.Contains(t, h.Seen, "1")

	delta := d.Detect("acme", []models.JobPosting{job("1", "Intern A", "")}, filter.All)
	assert.Empty(t, delta.New, "a posting that comes back is not new")
}

func TestDetector_FilterBeforeHistory(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	pred := filter.New([]string{"intern"}, []string{"berlin"})

	d := load(t, blobs)
	fresh := []models.JobPosting{
		job("1", "Intern Data", "Berlin"),
		job("2", "Senior Data", "Berlin"),
		job("3", "Intern Paris", "Paris"),
	}
	delta := d.Detect("acme", fresh, pred)
	assert.Equal(t, []string{"1"}, ids(delta.Matched))
	assert.Equal(t, []string{"1"}, ids(delta.New))
	d.Stage("acme", delta.Matched)
	require.NoError(t, d.Commit(ctx))

	// filtered-out postings never entered history, so a wider filter reports them
	d = load(t, blobs)
	delta = d.Detect("acme", fresh, filter.All)
	assert.Equal(t, []string{"2", "3"}, ids(delta.New))
}

func TestDetector_DuplicateIDsCollapse(t *testing.T) {
	d := load(t, storage.NewMemoryStore())
	delta := d.Detect("acme", []models.JobPosting{
		job("1", "Intern A", ""),
		job("1", "Intern A (copy)", ""),
		job("", "No id", ""),
	}, nil)
	require.Len(t, delta.New, 1)
	assert.Equal(t, "Intern A", delta.New[0].Title)
}

func TestDetector_StagedIsNotSeenUntilCommit(t *testing.T) {
	blobs := storage.NewMemoryStore()
	d := load(t, blobs)
	d.Stage("acme", []models.JobPosting{job("1", "Intern A", "")})
	assert.Equal(t, 1, d.Pending())

	delta := d.Detect("acme", []models.JobPosting{job("1", "Intern A", "")}, nil)
	assert.Len(t, delta.New, 1)

	_, err := blobs.Get(context.Background(), DocumentKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing is written before commit")
}

func TestDetector_CommitTimestamps(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryStore()
	first := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	d := load(t, blobs)
	d.now = func() time.Time { return first }
	d.Stage("acme", []models.JobPosting{job("1", "Intern A", "Berlin")})
	d.Stage("globex", nil)
	require.NoError(t, d.Commit(ctx))
	assert.Zero(t, d.Pending())

	d = load(t, blobs)
	d.now = func() time.Time { return second }
	d.Stage("acme", []models.JobPosting{job("1", "Intern A (renamed)", "Berlin")})
	require.NoError(t, d.Commit(ctx))

	h, ok := d.Company("acme")
	require.True(t, ok)
	rec := h.Seen["1"]
	assert.Equal(t, first, rec.FirstSeen)
	assert.Equal(t, second, rec.LastSeen)
	assert.Equal(t, "Intern A (renamed)", rec.Title)
	assert.Equal(t, second, h.LastRun)

	g, ok := d.Company("globex")
	require.True(t, ok, "an empty successful run is still recorded")
	assert.Empty(t, g.Seen)
	assert.Equal(t, first, g.LastRun)
	assert.Equal(t, []string{"acme", "globex"}, d.Companies())
}

type failingStore struct {
	storage.BlobStore
}

func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestDetector_FailedCommitKeepsState(t *testing.T) {
	d := load(t, failingStore{storage.NewMemoryStore()})
	d.Stage("acme", []models.JobPosting{job("1", "Intern A", "")})

	assert.ErrorContains(t, d.Commit(context.Background()), "disk full")
	assert.Equal(t, 1, d.Pending())
	_, ok := d.Company("acme")
	assert.False(t, ok)
}

func TestLoad_Corrupt(t *testing.T) {
	blobs := storage.NewMemoryStore()
	require.NoError(t, blobs.Put(context.Background(), DocumentKey, []byte(`[1,2`)))

	_, err := Load(context.Background(), blobs, logger.Discard())
	assert.ErrorIs(t, err, ErrHistoryCorrupt)
}
