// Package apiclient replays a discovered job-listing API without a browser.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go-careerwatch/internal/models"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrReplayFailed means the stored configuration no longer produces postings
// and should be invalidated.
var ErrReplayFailed = errors.New("api replay failed")

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxPages = 20
	maxBodyBytes    = 10 << 20
)

type Options struct {
	Timeout    time.Duration
	MaxPages   int
	MaxResults int // value for the {max_results} placeholder
	UserAgent  string
}

// Params fill the request template placeholders.
type Params struct {
	Company  string // display name stamped on postings
	Keywords []string
	Location string
}

type Client struct {
	http   *http.Client
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func New(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = 100
	}
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// cursor state between pages
type pageState struct {
	number int
	offset int
	cursor string
}

// Fetch replays cfg page by page. It stops on the first page that adds no new
// postings, an exhausted cursor, hasMore=false, the reported page total, the
// page limit, or an error after the first page. Problems on the first page
// wrap ErrReplayFailed.
func (c *Client) Fetch(ctx context.Context, cfg *models.ApiConfiguration, params Params) ([]models.JobPosting, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid configuration: %v", ErrReplayFailed, err)
	}

	p := cfg.Pagination
	state := pageState{number: p.Start, offset: p.Start}
	seen := make(map[string]bool)
	var postings []models.JobPosting

	for page := 1; page <= c.opts.MaxPages; page++ {
		body, err := c.fetchPage(ctx, cfg, params, state)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%w: %v", ErrReplayFailed, err)
			}
			c.logger.Warn("⚠️ Stopping pagination after error", "endpoint", cfg.Endpoint, "page", page, "error", err)
			break
		}

		resp := gjson.ParseBytes(body)
		items := resp
		if cfg.Fields.ItemsPath != "" {
			items = resp.Get(cfg.Fields.ItemsPath)
		}
		if !items.IsArray() {
			if page == 1 {
				return nil, fmt.Errorf("%w: items path %q no longer resolves to an array", ErrReplayFailed, cfg.Fields.ItemsPath)
			}
			break
		}

		elems := items.Array()
		batch := MapItems(cfg, params.Company, elems)
		if page == 1 && len(elems) > 0 && len(batch) == 0 {
			return nil, fmt.Errorf("%w: %d items but none could be mapped", ErrReplayFailed, len(elems))
		}

		added := 0
		for _, jp := range batch {
			if seen[jp.ID] {
				continue
			}
			seen[jp.ID] = true
			postings = append(postings, jp)
			added++
		}
		c.logger.Debug("page fetched", "endpoint", cfg.Endpoint, "page", page, "items", len(elems), "new", added)

		if added == 0 || !advance(&state, p, resp, len(elems)) || done(p, resp, page) {
			break
		}
	}

	return postings, nil
}

// advance moves state to the next page; false means there is no next page.
func advance(state *pageState, p models.Pagination, resp gjson.Result, items int) bool {
	switch p.Kind {
	case models.PaginationOffset:
		step := p.Step
		if step <= 0 {
			step = items
		}
		state.offset += step
	case models.PaginationPage:
		step := p.Step
		if step <= 0 {
			step = 1
		}
		state.number += step
	case models.PaginationCursor:
		next := resp.Get(p.CursorPath).String()
		if next == "" || next == state.cursor {
			return false
		}
		state.cursor = next
	default:
		return false
	}
	return true
}

// done checks the response-side hints.
func done(p models.Pagination, resp gjson.Result, fetched int) bool {
	if p.HasMorePath != "" {
		if v := resp.Get(p.HasMorePath); v.Exists() && !v.Bool() {
			return true
		}
	}
	if p.TotalPagesPath != "" {
		if total := resp.Get(p.TotalPagesPath).Int(); total > 0 && int64(fetched) >= total {
			return true
		}
	}
	return false
}

func (c *Client) fetchPage(ctx context.Context, cfg *models.ApiConfiguration, params Params, state pageState) ([]byte, error) {
	req, err := c.buildRequest(ctx, cfg, params, state)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("api returned %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, cfg *models.ApiConfiguration, params Params, state pageState) (*http.Request, error) {
	values := c.placeholders(params)

	endpoint, err := url.Parse(substitute(cfg.Endpoint, values, url.QueryEscape))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	body := ""
	if cfg.BodyTemplate != "" {
		body = substitute(cfg.BodyTemplate, values, jsonEscape)
	}

	p := cfg.Pagination
	if name, value, ok := pageParam(p, state); ok {
		switch p.In {
		case models.ParamInBody:
			if body == "" {
				body = "{}"
			}
			if body, err = sjson.Set(body, p.Param, value); err != nil {
				return nil, fmt.Errorf("set %s in body: %w", p.Param, err)
			}
		default:
			q := endpoint.Query()
			q.Set(name, fmt.Sprint(value))
			endpoint.RawQuery = q.Encode()
		}
	}

	method := strings.ToUpper(cfg.Method)
	var reader io.Reader
	if body != "" && method != http.MethodGet {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

// pageParam returns the pagination parameter for the current page. The first
// cursor page goes out exactly as captured.
func pageParam(p models.Pagination, state pageState) (string, any, bool) {
	switch p.Kind {
	case models.PaginationOffset:
		return p.Param, state.offset, true
	case models.PaginationPage:
		return p.Param, state.number, true
	case models.PaginationCursor:
		if state.cursor == "" {
			return "", nil, false
		}
		return p.Param, state.cursor, true
	}
	return "", nil, false
}

func (c *Client) placeholders(params Params) map[string]string {
	keywords := "intern|internship"
	if len(params.Keywords) > 0 {
		keywords = strings.Join(params.Keywords, "|")
	}
	return map[string]string{
		"{keywords}":     keywords,
		"{location}":     params.Location,
		"{country}":      params.Location,
		"{max_results}":  strconv.Itoa(c.opts.MaxResults),
		"{current_time}": c.now().UTC().Format(time.RFC3339),
	}
}

func substitute(tmpl string, values map[string]string, escape func(string) string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, escape(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// jsonEscape escapes v for use inside an existing JSON string literal.
func jsonEscape(v string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	return string(b[1 : len(b)-1])
}
