package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-careerwatch/internal/models"
)

// saveJobs appends jobs to <dir>/job-search-YYYY-MM-DD.json.
func saveJobs(dir string, jobs []models.JobPosting, now time.Time) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("job-search-%s.json", now.Format("2006-01-02")))

	var existing []models.JobPosting
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	data, err = json.MarshalIndent(append(existing, jobs...), "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
