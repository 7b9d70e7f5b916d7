package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"go-careerwatch/utils"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Headless      bool
	UserAgent     string
	ScreenshotDir string
}

// Manager owns the Playwright lifecycle. Every page load runs through WithPage,
// which starts playwright, a browser, a context and a page and releases all of
// them before returning.
type Manager struct {
	opts   Options
	logger *slog.Logger
	shots  *utils.ScreenshotDebugger
}

func NewManager(opts Options, logger *slog.Logger) *Manager {
	return &Manager{
		opts:   opts,
		logger: logger,
		shots:  utils.NewScreenshotDebugger(opts.ScreenshotDir, logger),
	}
}

// WithPage acquires a fresh page, runs fn and always tears the browser down,
// including on timeout, context cancellation or panic inside fn.
func (m *Manager) WithPage(ctx context.Context, fn func(page playwright.Page) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer func() {
		if stopErr := pw.Stop(); stopErr != nil {
			m.logger.Warn("⚠️ Failed to stop playwright", "error", stopErr)
		}
	}()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	// Closing the browser unblocks whatever playwright call is in flight.
	stop := context.AfterFunc(ctx, func() { _ = browser.Close() })
	defer stop()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(m.opts.UserAgent),
		IgnoreHttpsErrors: playwright.Bool(true),
		Viewport:          &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return fmt.Errorf("could not create browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	defer page.Close()

	if err := page.AddInitScript(playwright.Script{Content: playwright.String(utils.HideWebdriverScript)}); err != nil {
		m.logger.Debug("could not install init script", "error", err)
	}

	err = fn(page)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Render implements Renderer on top of a real Chromium.
func (m *Manager) Render(ctx context.Context, target string, opts RenderOptions) (*Snapshot, error) {
	var snap *Snapshot
	err := m.WithPage(ctx, func(page playwright.Page) error {
		rec := &recorder{}
		if opts.CaptureTraffic {
			page.OnResponse(rec.add)
		}

		m.logger.Info("📄 Loading page", "url", target, "wait_until", opts.WaitUntil)
		if _, err := page.Goto(target, playwright.PageGotoOptions{
			WaitUntil: waitUntil(opts.WaitUntil),
			Timeout:   playwright.Float(float64(opts.Timeout.Milliseconds())),
		}); err != nil {
			if errors.Is(err, playwright.ErrTimeout) {
				m.shots.CaptureAndLog(page, "timeout-"+hostOf(target), "Navigation timed out")
				return fmt.Errorf("%w: %s after %s", ErrNavigationTimeout, target, opts.Timeout)
			}
			return fmt.Errorf("failed to navigate to %s: %w", target, err)
		}

		if opts.Interact {
			m.interact(page, opts)
		}
		if opts.SettleDelay > 0 {
			page.WaitForTimeout(float64(opts.SettleDelay.Milliseconds()))
		}

		html, err := page.Content()
		if err != nil {
			return fmt.Errorf("failed to read page content: %w", err)
		}

		snap = &Snapshot{
			FinalURL:  page.URL(),
			HTML:      html,
			Exchanges: rec.drain(m.logger),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *Manager) interact(page playwright.Page, opts RenderOptions) {
	if DismissCookieBanner(page) {
		m.logger.Debug("🍪 Cookie banner dismissed")
	}

	utils.MouseJiggle(page)
	utils.SmoothScroll(page, opts.ScrollSteps)

	if TriggerSearch(page, opts.SearchTerm) {
		m.logger.Debug("🔍 Search box triggered", "term", opts.SearchTerm)
	}
	if n := ClickFilters(page, opts.ClickSelectors); n > 0 {
		m.logger.Debug("🖱️ Clicked filter controls", "count", n)
	}

	// Give whatever the interaction triggered a chance to finish.
	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64((5 * time.Second).Milliseconds())),
	})
}

func waitUntil(s string) *playwright.WaitUntilState {
	switch s {
	case "load":
		return playwright.WaitUntilStateLoad
	case "domcontentloaded":
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateNetworkidle
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "page"
	}
	return u.Host
}

type captured struct {
	seq  int
	at   time.Time
	resp playwright.Response
}

// recorder collects responses from the event handler. Bodies are fetched later
// in drain; calling Body() inside the handler can block the event loop.
type recorder struct {
	mu    sync.Mutex
	items []captured
}

func (r *recorder) add(resp playwright.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, captured{seq: len(r.items), at: time.Now(), resp: resp})
}

func (r *recorder) drain(logger *slog.Logger) []Exchange {
	r.mu.Lock()
	items := r.items
	r.items = nil
	r.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].seq < items[j].seq })

	out := make([]Exchange, 0, len(items))
	for _, c := range items {
		req := c.resp.Request()
		headers := c.resp.Headers()
		ex := Exchange{
			Seq:          c.seq,
			CapturedAt:   c.at,
			URL:          c.resp.URL(),
			Method:       req.Method(),
			Headers:      req.Headers(),
			ResourceType: req.ResourceType(),
			Status:       c.resp.Status(),
			ContentType:  headers["content-type"],
		}
		if ex.ResourceType != "xhr" && ex.ResourceType != "fetch" && !ex.IsJSON() {
			continue
		}
		if data, err := req.PostData(); err == nil && data != "" {
			ex.Body = []byte(data)
		}
		if ex.IsJSON() && !strings.EqualFold(ex.Method, "OPTIONS") {
			body, err := c.resp.Body()
			if err != nil {
				logger.Debug("could not read response body", "url", ex.URL, "error", err)
			}
			ex.ResponseBody = body
		}
		out = append(out, ex)
	}
	return out
}
