package pipeline

import (
	"log/slog"
	"time"

	"go-careerwatch/internal/models"
	"go-careerwatch/internal/notifier"
)

// CompanyResult is the outcome for one company.
type CompanyResult struct {
	CompanyID string              `json:"company_id"`
	Company   string              `json:"company"`
	Source    models.Source       `json:"source,omitempty"`
	Fetched   int                 `json:"fetched"`
	Matched   int                 `json:"matched"`
	New       []models.JobPosting `json:"new,omitempty"`
	Elapsed   time.Duration       `json:"elapsed"`
	Err       error               `json:"-"`
	Error     string              `json:"error,omitempty"`
}

// Summary describes one run.
type Summary struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Companies  []CompanyResult `json:"companies"`
	Committed  bool            `json:"committed"`
	Notified   bool            `json:"notified"`
	Err        error           `json:"-"`
	NotifyErr  error           `json:"-"`
}

// TotalNew counts new postings across companies.
func (s *Summary) TotalNew() int {
	n := 0
	for _, c := range s.Companies {
		n += len(c.New)
	}
	return n
}

// NewJobs flattens the new postings in company order.
func (s *Summary) NewJobs() []models.JobPosting {
	var out []models.JobPosting
	for _, c := range s.Companies {
		out = append(out, c.New...)
	}
	return out
}

// Failed counts companies where every fetch path failed.
func (s *Summary) Failed() int {
	n := 0
	for _, c := range s.Companies {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Status is ok, partial or failed.
func (s *Summary) Status() string {
	switch {
	case s.Err != nil || (len(s.Companies) > 0 && s.Failed() == len(s.Companies)):
		return "failed"
	case s.Failed() > 0 || s.NotifyErr != nil:
		return "partial"
	default:
		return "ok"
	}
}

// Digest groups the new postings by company for the notifier.
func (s *Summary) Digest(now time.Time) notifier.Digest {
	d := notifier.Digest{RunID: s.RunID, GeneratedAt: now}
	for _, c := range s.Companies {
		if len(c.New) == 0 {
			continue
		}
		d.Companies = append(d.Companies, notifier.CompanyJobs{Company: c.Company, Jobs: c.New})
	}
	return d
}

// Errors returns a copy with the string form of per-company errors filled in
// for JSON output.
func (s *Summary) Errors() *Summary {
	out := *s
	out.Companies = make([]CompanyResult, len(s.Companies))
	for i, c := range s.Companies {
		if c.Err != nil {
			c.Error = c.Err.Error()
		}
		out.Companies[i] = c
	}
	return &out
}

func (s *Summary) Log(log *slog.Logger) {
	log.Info("🏁 Run finished",
		"status", s.Status(),
		"companies", len(s.Companies),
		"failed", s.Failed(),
		"new", s.TotalNew(),
		"committed", s.Committed,
		"elapsed", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	for _, c := range s.Companies {
		if c.Err != nil {
			log.Warn("  ❌ "+c.Company, "error", c.Err)
			continue
		}
		log.Info("  ✅ "+c.Company, "source", c.Source, "matched", c.Matched, "new", len(c.New))
	}
}
