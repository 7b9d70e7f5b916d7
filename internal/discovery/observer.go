package discovery

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"go-careerwatch/internal/browser"
	"go-careerwatch/internal/models"

	"github.com/tidwall/gjson"
)

type ObserverOptions struct {
	Timeout        time.Duration
	WaitUntil      string
	SettleDelay    time.Duration
	ScrollSteps    int
	SearchTerm     string
	ClickSelectors []string
}

// Observer loads a career page through a Renderer and surfaces the JSON calls
// that look like job data.
type Observer struct {
	renderer browser.Renderer
	opts     ObserverOptions
	logger   *slog.Logger
}

func NewObserver(renderer browser.Renderer, opts ObserverOptions, logger *slog.Logger) *Observer {
	return &Observer{renderer: renderer, opts: opts, logger: logger}
}

// Observation is the result of one page load.
type Observation struct {
	CareerURL     string
	FinalURL      string
	HTML          string
	JSONResponses int

	// Candidates yields capture-ordered job-data candidates. It can be ranged
	// over once; later iterations yield nothing.
	Candidates iter.Seq[models.CandidateRequest]
}

// Observe renders careerURL and records its network traffic.
//
// On ErrNoJSONTraffic the returned Observation is non-nil and still carries
// the final DOM, so the HTML fallback can reuse the page load.
func (o *Observer) Observe(ctx context.Context, careerURL string) (*Observation, error) {
	snap, err := o.renderer.Render(ctx, careerURL, browser.RenderOptions{
		Timeout:        o.opts.Timeout,
		WaitUntil:      o.opts.WaitUntil,
		SettleDelay:    o.opts.SettleDelay,
		ScrollSteps:    o.opts.ScrollSteps,
		SearchTerm:     o.opts.SearchTerm,
		ClickSelectors: o.opts.ClickSelectors,
		Interact:       true,
		CaptureTraffic: true,
	})
	if err != nil {
		if errors.Is(err, browser.ErrNavigationTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrDiscoveryTimeout, err)
		}
		return nil, fmt.Errorf("observe %s: %w", careerURL, err)
	}

	exchanges := make([]browser.Exchange, 0, len(snap.Exchanges))
	for _, ex := range snap.Exchanges {
		if ex.IsJSON() {
			exchanges = append(exchanges, ex)
		}
	}
	sort.SliceStable(exchanges, func(i, j int) bool {
		if !exchanges[i].CapturedAt.Equal(exchanges[j].CapturedAt) {
			return exchanges[i].CapturedAt.Before(exchanges[j].CapturedAt)
		}
		return exchanges[i].Seq < exchanges[j].Seq
	})

	obs := &Observation{
		CareerURL:     careerURL,
		FinalURL:      snap.FinalURL,
		HTML:          snap.HTML,
		JSONResponses: len(exchanges),
		Candidates:    candidates(exchanges),
	}

	o.logger.Info("📡 Traffic captured", "url", careerURL, "exchanges", len(snap.Exchanges), "json", len(exchanges))
	if len(exchanges) == 0 {
		return obs, ErrNoJSONTraffic
	}
	return obs, nil
}

// candidates parses bodies lazily and only yields the ones that look like job data.
func candidates(exchanges []browser.Exchange) iter.Seq[models.CandidateRequest] {
	var used atomic.Bool
	return func(yield func(models.CandidateRequest) bool) {
		if used.Swap(true) {
			return
		}
		for _, ex := range exchanges {
			if ex.Status >= 400 || !LooksLikeJobData(ex.ResponseBody) {
				continue
			}
			c := models.CandidateRequest{
				Seq:          ex.Seq,
				CapturedAt:   ex.CapturedAt,
				URL:          ex.URL,
				Method:       ex.Method,
				Headers:      ex.Headers,
				Body:         string(ex.Body),
				Status:       ex.Status,
				ContentType:  ex.ContentType,
				ResponseBody: ex.ResponseBody,
			}
			if !yield(c) {
				return
			}
		}
	}
}

// LooksLikeJobData reports whether body holds, anywhere, an array of two or
// more objects whose elements share at least two string-valued fields.
func LooksLikeJobData(body []byte) bool {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return false
	}
	found := false
	walkArrays(gjson.ParseBytes(body), "", 0, func(_ string, arr gjson.Result) bool {
		elems := arr.Array()
		if len(elems) >= 2 && len(sharedStringFields(elems)) >= 2 {
			found = true
			return false
		}
		return true
	})
	return found
}

const maxWalkDepth = 6

// walkArrays calls fn for every array of objects under v with its gjson path.
// fn returns false to stop the walk.
func walkArrays(v gjson.Result, path string, depth int, fn func(path string, arr gjson.Result) bool) bool {
	if depth > maxWalkDepth {
		return true
	}
	switch {
	case v.IsArray():
		elems := v.Array()
		if len(elems) == 0 {
			return true
		}
		if elems[0].IsObject() {
			if !fn(path, v) {
				return false
			}
		}
		// nested listings hang off the first element often enough
		return walkArrays(elems[0], joinPath(path, "0"), depth+1, fn)
	case v.IsObject():
		cont := true
		v.ForEach(func(key, value gjson.Result) bool {
			if value.IsArray() || value.IsObject() {
				cont = walkArrays(value, joinPath(path, escapePath(key.String())), depth+1, fn)
			}
			return cont
		})
		return cont
	}
	return true
}

// sharedStringFields returns the keys that hold a string in every object element.
func sharedStringFields(elems []gjson.Result) []string {
	var shared map[string]bool
	for _, el := range elems {
		if !el.IsObject() {
			continue
		}
		fields := make(map[string]bool)
		el.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.String {
				fields[key.String()] = true
			}
			return true
		})
		if shared == nil {
			shared = fields
			continue
		}
		for k := range shared {
			if !fields[k] {
				delete(shared, k)
			}
		}
	}
	out := make([]string, 0, len(shared))
	for k := range shared {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func joinPath(base, comp string) string {
	if base == "" {
		return comp
	}
	return base + "." + comp
}

// escapePath escapes gjson path syntax inside a single key.
func escapePath(key string) string {
	var b []byte
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', '[', ']', '{', '}', ',', ':', '"':
			b = append(b, '\\')
		}
		b = append(b, key[i])
	}
	return string(b)
}
