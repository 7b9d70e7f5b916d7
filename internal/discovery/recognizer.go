package discovery

import (
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"go-careerwatch/internal/models"

	"github.com/tidwall/gjson"
)

// Thresholds tunes how eager the recognizer is.
type Thresholds struct {
	MinScore       int // below this the best candidate is rejected
	MinListingSize int // arrays at least this long get the full size bonus
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinScore: 50, MinListingSize: 4}
}

const (
	scoreLargeListing  = 30
	scoreSmallListing  = 10
	scoreTitle         = 25
	scoreLink          = 15
	scoreLocation      = 15
	scoreID            = 10
	scoreRegular       = 20
	scoreMostlyRegular = 10
)

// Field-name lexicon, compared after normalizeKey. Order is preference.
var (
	titleKeys    = []string{"title", "jobtitle", "postingtitle", "position", "positionname", "name", "text"}
	linkKeys     = []string{"applyurl", "joburl", "absoluteurl", "hostedurl", "url", "link", "href", "externalpath", "canonicalpositionurl"}
	locationKeys = []string{"location", "locations", "joblocation", "city", "addresses", "address", "office", "country", "locationstext"}
	idKeys       = []string{"id", "jobid", "requisitionid", "reqid", "postingid", "uuid", "displayjobid"}
)

// Match is the best object array found in one candidate.
type Match struct {
	Candidate models.CandidateRequest
	Score     int
	Items     int
	Fields    models.FieldMapping
}

// Recognizer picks the job-listing API out of the candidates seen during a
// page load and turns it into a replayable configuration. It holds no state
// between calls.
type Recognizer struct {
	th     Thresholds
	now    func() time.Time
	logger *slog.Logger
}

func NewRecognizer(th Thresholds, logger *slog.Logger) *Recognizer {
	if th.MinScore == 0 {
		th.MinScore = DefaultThresholds().MinScore
	}
	if th.MinListingSize == 0 {
		th.MinListingSize = DefaultThresholds().MinListingSize
	}
	return &Recognizer{th: th, now: time.Now, logger: logger}
}

// Recognize scores every candidate and builds an ApiConfiguration from the
// winner. Equal scores go to the later capture.
func (r *Recognizer) Recognize(careerURL string, candidates iter.Seq[models.CandidateRequest]) (*models.ApiConfiguration, error) {
	var (
		best  *Match
		count int
	)
	for c := range candidates {
		count++
		m, ok := r.Score(c)
		if !ok {
			continue
		}
		r.logger.Debug("candidate scored", "url", c.URL, "score", m.Score, "items", m.Items, "items_path", m.Fields.ItemsPath)
		if best == nil || better(m, *best) {
			best = &m
		}
	}

	if best == nil || best.Score < r.th.MinScore {
		top := 0
		if best != nil {
			top = best.Score
		}
		return nil, fmt.Errorf("%w: %d candidates, top score %d (min %d)", ErrNoConfidentMatch, count, top, r.th.MinScore)
	}

	cfg := r.buildConfig(careerURL, *best)
	r.logger.Info("🎯 Job API recognized", "endpoint", cfg.Endpoint, "method", cfg.Method, "score", best.Score, "pagination", cfg.Pagination.Kind)
	return cfg, nil
}

func better(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.Candidate.CapturedAt.Equal(b.Candidate.CapturedAt) {
		return a.Candidate.CapturedAt.After(b.Candidate.CapturedAt)
	}
	return a.Candidate.Seq > b.Candidate.Seq
}

// Score returns the best-scoring object array inside c's response body.
func (r *Recognizer) Score(c models.CandidateRequest) (Match, bool) {
	if !gjson.ValidBytes(c.ResponseBody) {
		return Match{}, false
	}
	var (
		best  Match
		found bool
	)
	walkArrays(gjson.ParseBytes(c.ResponseBody), "", 0, func(path string, arr gjson.Result) bool {
		m, ok := r.scoreArray(path, arr)
		if ok && (!found || m.Score > best.Score) {
			best, found = m, true
		}
		return true
	})
	if !found {
		return Match{}, false
	}
	best.Candidate = c
	return best, true
}

func (r *Recognizer) scoreArray(path string, arr gjson.Result) (Match, bool) {
	var objects []gjson.Result
	for _, el := range arr.Array() {
		if el.IsObject() {
			objects = append(objects, el)
		}
	}
	// a single object is a detail view, not a listing
	if len(objects) < 2 {
		return Match{}, false
	}

	first := objects[0]
	fields := models.FieldMapping{ItemsPath: path}
	fields.Title = pickKey(first, titleKeys, stringValue)
	if fields.Title == "" {
		// without a title there is nothing to show for a posting
		return Match{}, false
	}
	fields.URL = pickKey(first, linkKeys, stringValue)
	fields.Location = pickKey(first, locationKeys, anyValue)
	fields.ID = pickKey(first, idKeys, scalarValue)

	score := scoreSmallListing
	if len(objects) >= r.th.MinListingSize {
		score = scoreLargeListing
	}
	score += scoreTitle
	if fields.URL != "" {
		score += scoreLink
	}
	if fields.Location != "" {
		score += scoreLocation
	}
	if fields.ID != "" {
		score += scoreID
	}

	switch regular := regularity(objects); {
	case regular == 1:
		score += scoreRegular
	case regular >= 0.8:
		score += scoreMostlyRegular
	}

	return Match{Score: score, Items: len(objects), Fields: fields}, true
}

// regularity is the share of elements whose key set equals the first one's.
func regularity(objects []gjson.Result) float64 {
	ref := keySet(objects[0])
	same := 0
	for _, o := range objects {
		if keySet(o) == ref {
			same++
		}
	}
	return float64(same) / float64(len(objects))
}

func keySet(o gjson.Result) string {
	var keys []string
	o.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}

type valueCheck func(gjson.Result) bool

func stringValue(v gjson.Result) bool { return v.Type == gjson.String && strings.TrimSpace(v.Str) != "" }
func scalarValue(v gjson.Result) bool { return v.Type == gjson.String || v.Type == gjson.Number }
func anyValue(v gjson.Result) bool    { return v.Exists() && v.Type != gjson.Null }

// pickKey returns the escaped element key for the first lexicon entry present
// in obj whose value passes check.
func pickKey(obj gjson.Result, lexicon []string, check valueCheck) string {
	byNorm := make(map[string]string)
	obj.ForEach(func(key, value gjson.Result) bool {
		if !check(value) {
			return true
		}
		n := normalizeKey(key.String())
		if _, dup := byNorm[n]; !dup {
			byNorm[n] = key.String()
		}
		return true
	})
	for _, want := range lexicon {
		if key, ok := byNorm[normalizeKey(want)]; ok {
			return escapePath(key)
		}
	}
	return ""
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

func (r *Recognizer) buildConfig(careerURL string, m Match) *models.ApiConfiguration {
	c := m.Candidate
	method := strings.ToUpper(c.Method)
	if method == "" {
		method = "GET"
	}

	cfg := &models.ApiConfiguration{
		CareerURL:    careerURL,
		Endpoint:     c.URL,
		Method:       method,
		Headers:      ReplayHeaders(c.Headers, careerURL),
		Pagination:   DetectPagination(c, m.Fields.ItemsPath, m.Items),
		Fields:       m.Fields,
		DiscoveredAt: r.now().UTC(),
		Confidence:   m.Score,
	}
	if method != "GET" {
		cfg.BodyTemplate = c.Body
	}
	if m.Fields.URL != "" && relativeLinks(c.ResponseBody, m.Fields) {
		cfg.Fields.URLPrefix = careerURL
	}
	return cfg
}

// relativeLinks reports whether the first posting link lacks a scheme.
func relativeLinks(body []byte, f models.FieldMapping) bool {
	first := gjson.GetBytes(body, joinPath(f.ItemsPath, "0")).Get(f.URL)
	u, err := url.Parse(strings.TrimSpace(first.String()))
	return err == nil && !u.IsAbs()
}

var keepHeaders = map[string]bool{
	"api-key":         true,
	"x-api-key":       true,
	"apikey":          true,
	"authorization":   true,
	"content-type":    true,
	"accept":          true,
	"accept-language": true,
}

// ReplayHeaders keeps auth keys, content negotiation and custom x-* headers.
// Cookies never survive; referer is pinned to the career page.
func ReplayHeaders(captured map[string]string, careerURL string) map[string]string {
	out := make(map[string]string)
	for k, v := range captured {
		lk := strings.ToLower(k)
		switch {
		case lk == "cookie" || strings.HasPrefix(lk, ":"):
			continue
		case strings.HasPrefix(lk, "x-forwarded-"):
			continue
		case keepHeaders[lk], strings.HasPrefix(lk, "x-"):
			out[lk] = v
		}
	}
	if careerURL != "" {
		out["referer"] = careerURL
	}
	return out
}
