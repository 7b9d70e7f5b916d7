package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNavigationTimeout is returned when the page does not reach the requested
// load state within RenderOptions.Timeout.
var ErrNavigationTimeout = errors.New("navigation timed out")

// Renderer is the headless render surface: load a URL, wait for the load state
// or the timeout, and hand back the captured traffic and the final DOM.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (*Snapshot, error)
}

type RenderOptions struct {
	Timeout        time.Duration
	WaitUntil      string // networkidle, load, domcontentloaded
	SettleDelay    time.Duration
	ScrollSteps    int
	SearchTerm     string
	ClickSelectors []string

	// Interact dismisses cookie banners, scrolls and pokes search/filter controls
	Interact bool
	// CaptureTraffic records XHR/fetch and JSON responses into Snapshot.Exchanges
	CaptureTraffic bool
}

// Exchange is one request/response pair observed while the page was loading.
type Exchange struct {
	Seq          int
	CapturedAt   time.Time
	URL          string
	Method       string
	Headers      map[string]string
	Body         []byte
	ResourceType string
	Status       int
	ContentType  string
	ResponseBody []byte
}

// IsJSON reports whether the response declared a JSON content type.
func (e Exchange) IsJSON() bool {
	ct := strings.ToLower(e.ContentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json") || strings.Contains(ct, "text/json")
}

type Snapshot struct {
	FinalURL  string
	HTML      string
	Exchanges []Exchange
}
