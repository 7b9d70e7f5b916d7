package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go-careerwatch/internal/logger"
	"go-careerwatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestClient(maxPages int) *Client {
	c := New(Options{Timeout: 5 * time.Second, MaxPages: maxPages, MaxResults: 50, UserAgent: "careerwatch-test"}, logger.Discard())
	c.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return c
}

func jobsJSON(from, n int) string {
	items := make([]string, 0, n)
	for i := from; i < from+n; i++ {
		items = append(items, fmt.Sprintf(`{"id":"%d","title":"Engineer %d","city":"Berlin","path":"/jobs/%d"}`, i, i, i))
	}
	return `{"data":[` + strings.Join(items, ",") + `]}`
}

func offsetConfig(endpoint string) *models.ApiConfiguration {
	return &models.ApiConfiguration{
		CompanyID: "acme",
		CareerURL: "https://acme.example/careers",
		Endpoint:  endpoint,
		Method:    "GET",
		Headers:   map[string]string{"x-api-key": "secret"},
		Pagination: models.Pagination{
			Kind: models.PaginationOffset, Param: "offset", In: models.ParamInQuery, Step: 5,
		},
		Fields: models.FieldMapping{
			ItemsPath: "data", ID: "id", Title: "title", Location: "city", URL: "path",
			URLPrefix: "https://acme.example/careers",
		},
	}
}

func TestFetch_StopsAfterEmptyPage(t *testing.T) {
	sizes := []int{5, 5, 5, 0}
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(requests.Add(1))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "careerwatch-test", r.Header.Get("User-Agent"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		assert.Equal(t, (n-1)*5, offset)

		size := 0
		if n <= len(sizes) {
			size = sizes[n-1]
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, jobsJSON(offset, size))
	}))
	defer srv.Close()

	jobs, err := newTestClient(20).Fetch(context.Background(), offsetConfig(srv.URL+"/api/jobs?offset=0"), Params{Company: "Acme"})
	require.NoError(t, err)

	assert.Len(t, jobs, 15)
	assert.EqualValues(t, 4, requests.Load(), "must not request a 5th page")

	first := jobs[0]
	assert.Equal(t, "Engineer 0", first.Title)
	assert.Equal(t, "Berlin", first.Location)
	assert.Equal(t, "https://acme.example/jobs/0", first.URL)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, models.SourceAPI, first.Source)
	assert.Equal(t, models.DeriveID("acme", "", "Engineer 0", "https://acme.example/jobs/0"), first.ID)
}

func TestFetch_StopsWhenPageRepeats(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// server ignores the offset and always returns the same page
		io.WriteString(w, jobsJSON(0, 5))
	}))
	defer srv.Close()

	jobs, err := newTestClient(20).Fetch(context.Background(), offsetConfig(srv.URL), Params{})
	require.NoError(t, err)
	assert.Len(t, jobs, 5)
	assert.EqualValues(t, 2, requests.Load())
}

func TestFetch_MaxPages(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		io.WriteString(w, jobsJSON(offset, 5))
	}))
	defer srv.Close()

	jobs, err := newTestClient(3).Fetch(context.Background(), offsetConfig(srv.URL), Params{})
	require.NoError(t, err)
	assert.Len(t, jobs, 15)
	assert.EqualValues(t, 3, requests.Load())
}

func TestFetch_ErrorAfterFirstPageKeepsResults(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, jobsJSON(0, 5))
	}))
	defer srv.Close()

	jobs, err := newTestClient(20).Fetch(context.Background(), offsetConfig(srv.URL), Params{})
	require.NoError(t, err)
	assert.Len(t, jobs, 5)
}

func TestFetch_ReplayFailed(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"gone", http.StatusGone, `{"error":"gone"}`, "410"},
		{"not json", http.StatusOK, `<html>maintenance</html>`, "not valid JSON"},
		{"items path moved", http.StatusOK, `{"results":[{"title":"x"}]}`, "no longer resolves"},
		{"nothing mappable", http.StatusOK, `{"data":[{"name":"x"},{"name":"y"}]}`, "none could be mapped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			jobs, err := newTestClient(20).Fetch(context.Background(), offsetConfig(srv.URL), Params{})
			assert.ErrorIs(t, err, ErrReplayFailed)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Nil(t, jobs)
		})
	}
}

func TestFetch_EmptyListingIsValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	jobs, err := newTestClient(20).Fetch(context.Background(), offsetConfig(srv.URL), Params{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestFetch_CursorInBody(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, _ := io.ReadAll(r.Body)
		body := gjson.ParseBytes(raw)
		assert.Equal(t, "go|data", body.Get("query").String())
		assert.Equal(t, "2026-03-01T08:00:00Z", body.Get("since").String())

		switch body.Get("cursor").String() {
		case "":
			io.WriteString(w, `{"hits":[{"title":"A","loc":{"city":"Köln","country":"DE"}},{"title":"B"}],"next":"c2","more":true}`)
		case "c2":
			io.WriteString(w, `{"hits":[{"title":"C"}],"next":"c3","more":false}`)
		default:
			t.Errorf("unexpected cursor %q", body.Get("cursor").String())
		}
	}))
	defer srv.Close()

	cfg := &models.ApiConfiguration{
		CompanyID:    "acme",
		CareerURL:    "https://acme.example/careers",
		Endpoint:     srv.URL + "/search",
		Method:       "POST",
		BodyTemplate: `{"query":"{keywords}","since":"{current_time}","size":{max_results}}`,
		Pagination: models.Pagination{
			Kind: models.PaginationCursor, Param: "cursor", In: models.ParamInBody,
			CursorPath: "next", HasMorePath: "more",
		},
		Fields: models.FieldMapping{ItemsPath: "hits", Title: "title", Location: "loc"},
	}

	jobs, err := newTestClient(20).Fetch(context.Background(), cfg, Params{Keywords: []string{"go", "data"}})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.EqualValues(t, 2, requests.Load())

	assert.Equal(t, "Köln, DE", jobs[0].Location)
	assert.Equal(t, "https://acme.example/careers", jobs[1].URL, "missing link falls back to the career page")
}

func TestFetch_PageNumberWithTotal(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		fmt.Fprintf(w, `{"totalPages":2,"results":[{"title":"Job %d"}]}`, page)
	}))
	defer srv.Close()

	cfg := &models.ApiConfiguration{
		CompanyID: "acme",
		Endpoint:  srv.URL + "/jobs?q={keywords}",
		Method:    "GET",
		Pagination: models.Pagination{
			Kind: models.PaginationPage, Param: "page", In: models.ParamInQuery,
			Start: 1, Step: 1, TotalPagesPath: "totalPages",
		},
		Fields: models.FieldMapping{ItemsPath: "results", Title: "title"},
	}

	jobs, err := newTestClient(20).Fetch(context.Background(), cfg, Params{})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Job 1", jobs[0].Title)
	assert.Equal(t, "Job 2", jobs[1].Title)
	assert.EqualValues(t, 2, requests.Load())
}

func TestRenderLocation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `" Berlin "`, "Berlin"},
		{"city and country", `{"city":"Köln","country":"DE"}`, "Köln, DE"},
		{"name only", `{"name":"Remote"}`, "Remote"},
		{"country only", `{"countryCode":"DE"}`, "DE"},
		{"address list", `[{"city":"Köln","country":"DE"},{"city":"Berlin","country":"DE"},{"city":"Köln","country":"DE"}]`, "Köln, DE; Berlin, DE"},
		{"string list", `["Berlin","Munich"]`, "Berlin; Munich"},
		{"nested name", `{"location":{"name":"Hamburg"}}`, "Hamburg"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderLocation(gjson.Parse(tt.raw)))
		})
	}
}

func TestSubstitute(t *testing.T) {
	values := map[string]string{"{keywords}": `intern|"go"`, "{location}": "DEU"}

	assert.Equal(t, `{"q":"intern|\"go\"","loc":"DEU"}`, substitute(`{"q":"{keywords}","loc":"{location}"}`, values, jsonEscape))
	assert.Equal(t, "https://x.example/?q=intern%7C%22go%22", substitute("https://x.example/?q={keywords}", values, url.QueryEscape))
	assert.Equal(t, "no placeholders", substitute("no placeholders", values, jsonEscape))
}
