package utils

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ScreenshotDebugger saves full-page screenshots when a page load goes wrong.
// A nil *ScreenshotDebugger is valid and does nothing.
type ScreenshotDebugger struct {
	outputDir string
	logger    *slog.Logger
}

// NewScreenshotDebugger returns nil when dir is empty (screenshots disabled).
func NewScreenshotDebugger(dir string, logger *slog.Logger) *ScreenshotDebugger {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("⚠️ Failed to create screenshot directory", "dir", dir, "error", err)
		return nil
	}
	return &ScreenshotDebugger{
		outputDir: dir,
		logger:    logger,
	}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// CaptureAndLog writes <name>_<timestamp>.png and returns its path.
func (s *ScreenshotDebugger) CaptureAndLog(page playwright.Page, name, message string) (string, error) {
	if s == nil || page == nil {
		return "", nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s.png", unsafeName.ReplaceAllString(name, "-"), timestamp)
	path := filepath.Join(s.outputDir, filename)
	s.logger.Info("📸 "+message, "path", path)

	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		s.logger.Warn("⚠️ Failed to capture screenshot", "error", err)
		return "", err
	}
	return path, nil
}
