// Package apiconfig persists discovered API shapes, one record per company,
// in a single indented JSON document.
package apiconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-careerwatch/internal/models"
	"go-careerwatch/internal/storage"
)

const DocumentKey = "api_configs.json"

// ErrConfigCorrupt marks a document or entry that could not be decoded. It is
// only logged; corrupt entries read as absent.
var ErrConfigCorrupt = errors.New("api configuration corrupt")

type Store struct {
	mu     sync.Mutex
	blobs  storage.BlobStore
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(blobs storage.BlobStore, logger *slog.Logger) *Store {
	return &Store{blobs: blobs, logger: logger, now: time.Now}
}

// Get returns the stored configuration for companyID. Missing, unreadable and
// invalid entries all report false.
func (s *Store) Get(ctx context.Context, companyID string) (*models.ApiConfiguration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("⚠️ Could not read API configurations", "error", err)
		return nil, false
	}
	raw, ok := doc[companyID]
	if !ok {
		return nil, false
	}
	cfg, err := decode(raw)
	if err != nil {
		s.logger.Warn("⚠️ Ignoring stored API configuration", "company", companyID, "error", err)
		return nil, false
	}
	return cfg, true
}

// Put replaces the configuration for companyID.
func (s *Store) Put(ctx context.Context, companyID string, cfg *models.ApiConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid configuration for %s: %w", companyID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}

	stored := *cfg
	stored.CompanyID = companyID
	raw, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	doc[companyID] = raw
	return s.save(ctx, doc)
}

// Invalidate removes the configuration for companyID. Removing a missing entry is not an error.
func (s *Store) Invalidate(ctx context.Context, companyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := doc[companyID]; !ok {
		return nil
	}
	delete(doc, companyID)
	return s.save(ctx, doc)
}

// List returns every valid configuration keyed by company id.
func (s *Store) List(ctx context.Context) (map[string]*models.ApiConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.ApiConfiguration, len(doc))
	for id, raw := range doc {
		cfg, err := decode(raw)
		if err != nil {
			s.logger.Warn("⚠️ Skipping stored API configuration", "company", id, "error", err)
			continue
		}
		out[id] = cfg
	}
	return out, nil
}

// load reads the document. A document that is not a JSON object is backed up
// once and replaced by an empty one.
func (s *Store) load(ctx context.Context) (map[string]json.RawMessage, error) {
	data, err := s.blobs.Get(ctx, DocumentKey)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", DocumentKey, err)
	}

	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", DocumentKey, s.now().UTC().Format("20060102T150405"))
		s.logger.Error("❌ API configuration document is corrupt, starting empty",
			"error", fmt.Errorf("%w: %v", ErrConfigCorrupt, err), "backup", backup)
		doc = make(map[string]json.RawMessage)
		if err := s.blobs.Put(ctx, backup, data); err != nil {
			s.logger.Warn("⚠️ Could not back up corrupt document", "error", err)
			return doc, nil
		}
		// the original lives on in the backup
		if err := s.save(ctx, doc); err != nil {
			s.logger.Warn("⚠️ Could not reset corrupt document", "error", err)
		}
		return doc, nil
	}
	return doc, nil
}

func (s *Store) save(ctx context.Context, doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", DocumentKey, err)
	}
	if err := s.blobs.Put(ctx, DocumentKey, data); err != nil {
		return fmt.Errorf("write %s: %w", DocumentKey, err)
	}
	return nil
}

func decode(raw json.RawMessage) (*models.ApiConfiguration, error) {
	var cfg models.ApiConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	return &cfg, nil
}
