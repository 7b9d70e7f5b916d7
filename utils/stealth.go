package utils

import (
	"math/rand/v2"
	"time"

	"github.com/playwright-community/playwright-go"
)

// HideWebdriverScript removes the navigator.webdriver flag headless Chromium exposes.
const HideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// RandomDelay sleeps for a random duration in [lo, hi).
func RandomDelay(lo, hi time.Duration) {
	if lo >= hi {
		time.Sleep(lo)
		return
	}
	time.Sleep(lo + rand.N(hi-lo))
}

// MouseJiggle moves the pointer somewhere inside the viewport
func MouseJiggle(page playwright.Page) {
	x := float64(100 + rand.IntN(800))
	y := float64(100 + rand.IntN(600))

	_ = page.Mouse().Move(x, y)
	RandomDelay(100*time.Millisecond, 300*time.Millisecond)
}

// SmoothScroll wheels down in steps to trigger lazy loading, then jumps to the bottom.
func SmoothScroll(page playwright.Page, steps int) {
	for range steps {
		_ = page.Mouse().Wheel(0, 500)
		RandomDelay(400*time.Millisecond, 900*time.Millisecond)
	}

	// small correction upwards, like a reader overshooting
	_ = page.Mouse().Wheel(0, -200)
	RandomDelay(300*time.Millisecond, 600*time.Millisecond)

	_, _ = page.Evaluate("window.scrollTo(0, document.body.scrollHeight)")
}
