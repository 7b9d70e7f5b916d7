package extractor

import (
	"testing"

	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseURL = "https://acme.example/careers"

var origin = Origin{CompanyID: "acme", Company: "Acme", LocationHints: []string{"berlin", "köln"}}

func extract(page string, sel Selectors) []models.JobPosting {
	return New(logger.Discard()).Extract(page, baseURL, sel, origin)
}

func titles(jobs []models.JobPosting) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Title)
	}
	return out
}

func TestExtract_JobCards(t *testing.T) {
	page := `<html><body>
	<script>var jobs = [];</script>
	<ul class="jobs-list">
		<li class="job-item">
			<h3 class="job-title">Werkstudent Data</h3>
			<span class="job-location">Köln</span>
			<a href="/about">About us</a>
			<a href="/jobs/1?utm_source=x">Details</a>
		</li>
		<li class="job-item">
			<h3 class="job-title">  Praktikum
				Backend </h3>
			<span class="job-location">Berlin</span>
			<a href="/jobs/2">Details</a>
		</li>
	</ul></body></html>`

	jobs := extract(page, Selectors{})
	require.Len(t, jobs, 2)

	first := jobs[0]
	assert.Equal(t, "Werkstudent Data", first.Title)
	assert.Equal(t, "Köln", first.Location)
	assert.Equal(t, "https://acme.example/jobs/1?utm_source=x", first.URL)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, models.SourceHTML, first.Source)
	assert.Equal(t, models.DeriveID("acme", "", "Werkstudent Data", "https://acme.example/jobs/1"), first.ID,
		"tracking parameters do not change identity")

	assert.Equal(t, "Praktikum Backend", jobs[1].Title)
}

func TestExtract_PrefersSiblingCardsOverWrapper(t *testing.T) {
	page := `<div class="positions">
		<div class="position"><h2>Intern QA</h2><a href="/p/1">Apply</a></div>
		<div class="position"><h2>Intern SRE</h2><a href="/p/2">Apply</a></div>
		<div class="position"><h2>Intern Go</h2><a href="/p/3">Apply</a></div>
	</div>`

	jobs := extract(page, Selectors{})
	assert.Equal(t, []string{"Intern QA", "Intern SRE", "Intern Go"}, titles(jobs))
	assert.Equal(t, "https://acme.example/p/3", jobs[2].URL)
}

func TestExtract_SelectorOverrides(t *testing.T) {
	page := `<main>
		<div class="opening"><span class="name">Data Intern</span><em class="where">Hamburg</em><a href="openings/10">more</a></div>
		<div class="opening"><span class="name">ML Intern</span><em class="where">Bonn</em><a href="openings/11">more</a></div>
	</main>`

	jobs := extract(page, Selectors{
		Container: []string{".opening"},
		Title:     []string{".name"},
		Location:  []string{".where"},
	})
	require.Len(t, jobs, 2)
	assert.Equal(t, "Data Intern", jobs[0].Title)
	assert.Equal(t, "Hamburg", jobs[0].Location)
	assert.Equal(t, "https://acme.example/openings/10", jobs[0].URL)
}

func TestExtract_CardIsAnchor(t *testing.T) {
	page := `<div>
		<a class="job-item" href="/jobs/7"><span class="title">Intern A</span></a>
		<a class="job-item" href="/jobs/8"><span class="title">Intern B</span></a>
	</div>`

	jobs := extract(page, Selectors{})
	require.Len(t, jobs, 2)
	assert.Equal(t, "https://acme.example/jobs/8", jobs[1].URL)
}

func TestExtract_LinkHeuristic(t *testing.T) {
	page := `<body><div>
		<p><a href="/careers/intern-data">Intern Data</a> - Berlin</p>
		<p><a href="https://boards.example/x/42">Working Student Customer Success Team</a></p>
		<a href="/about">About</a>
		<a href="#top">Back to the top of this very long page</a>
		<a href="mailto:jobs@acme.example">jobs@acme.example</a>
		<p><a href="/careers/intern-data">Intern Data</a></p>
	</div></body>`

	jobs := extract(page, Selectors{})
	require.Len(t, jobs, 2)

	assert.Equal(t, "Intern Data", jobs[0].Title)
	assert.Equal(t, "https://acme.example/careers/intern-data", jobs[0].URL)
	assert.Equal(t, "Intern Data - Berlin", jobs[0].Location)

	assert.Equal(t, "Working Student Customer Success Team", jobs[1].Title)
	assert.Equal(t, "https://boards.example/x/42", jobs[1].URL)
	assert.Empty(t, jobs[1].Location)
}

func TestExtract_NothingFound(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"empty", ""},
		{"no links", `<html><body><h1>We are hiring soon</h1></body></html>`},
		{"single card", `<ul><li class="job-item"><h3>Only one</h3><a href="/about">x</a></li></ul>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, extract(tt.page, Selectors{}))
		})
	}
}
