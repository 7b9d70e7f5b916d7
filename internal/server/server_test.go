package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-careerwatch/internal/apiconfig"
	"go-careerwatch/internal/dedup"
	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/metrics"
	"go-careerwatch/internal/models"
	"go-careerwatch/internal/pipeline"
	"go-careerwatch/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	startErr error
	started  int
	last     *pipeline.Summary
}

func (f *fakeRunner) Start(context.Context) (<-chan pipeline.Result, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started++
	done := make(chan pipeline.Result, 1)
	done <- pipeline.Result{Summary: &pipeline.Summary{RunID: "r1"}}
	return done, nil
}

func (f *fakeRunner) LastSummary() *pipeline.Summary { return f.last }

type fixture struct {
	blobs  *storage.MemoryStore
	store  *apiconfig.Store
	runner *fakeRunner
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	blobs := storage.NewMemoryStore()
	f := &fixture{
		blobs:  blobs,
		store:  apiconfig.NewStore(blobs, logger.Discard()),
		runner: &fakeRunner{},
	}
	f.router = New(context.Background(), f.store, blobs, f.runner, metrics.New().Handler(), logger.Discard()).Router()
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	f.router.ServeHTTP(w, req)
	return w
}

func apiConfig() *models.ApiConfiguration {
	return &models.ApiConfiguration{
		CareerURL: "https://acme.example/careers",
		Endpoint:  "https://acme.example/api/jobs",
		Method:    "GET",
		Fields:    models.FieldMapping{ItemsPath: "data", Title: "title"},
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestConfigs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, "acme", apiConfig()))

	w := f.do(http.MethodGet, "/api/configs")
	require.Equal(t, http.StatusOK, w.Code)
	var all map[string]models.ApiConfiguration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Contains(t, all, "acme")

	w = f.do(http.MethodGet, "/api/configs/acme")
	require.Equal(t, http.StatusOK, w.Code)
	var one models.ApiConfiguration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &one))
	assert.Equal(t, "acme", one.CompanyID)
	assert.Equal(t, "https://acme.example/api/jobs", one.Endpoint)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/configs/globex").Code)

	w = f.do(http.MethodDelete, "/api/configs/acme")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/configs/acme").Code)

	// invalidating twice is fine
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/configs/acme").Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := dedup.Load(ctx, f.blobs, logger.Discard())
	require.NoError(t, err)
	d.Stage("acme", []models.JobPosting{{ID: "1", Title: "Intern A", URL: "https://acme.example/jobs/1"}})
	require.NoError(t, d.Commit(ctx))

	w := f.do(http.MethodGet, "/api/history/acme")
	require.Equal(t, http.StatusOK, w.Code)
	var h dedup.CompanyHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Contains(t, h.Seen, "1")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/history/globex").Code)
}

func TestHistory_Corrupt(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.blobs.Put(context.Background(), dedup.DocumentKey, []byte("{")))

	w := f.do(http.MethodGet, "/api/history/acme")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStartRun(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
		wantCode int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"already running", pipeline.ErrRunInProgress, http.StatusConflict},
		{"other failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.runner.startErr = tt.startErr
			w := f.do(http.MethodPost, "/api/runs")
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestLastRun(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/runs/last").Code)

	f.runner.last = &pipeline.Summary{
		RunID:     "run-1",
		StartedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Companies: []pipeline.CompanyResult{
			{CompanyID: "acme", Company: "Acme", Err: errors.New("render failed")},
		},
	}
	w := f.do(http.MethodGet, "/api/runs/last")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"run-1"`)
	assert.Contains(t, w.Body.String(), `"error":"render failed"`)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
