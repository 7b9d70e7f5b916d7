package browser

import (
	"time"

	"go-careerwatch/utils"

	"github.com/playwright-community/playwright-go"
)

var cookieSelectors = []string{
	`button:has-text("Accept all")`,
	`button:has-text("Accept")`,
	`button:has-text("Agree")`,
	"[id*='accept']",
	"[class*='accept']",
}

var searchSelectors = []string{
	`input[type="search"]`,
	`input[placeholder*="search" i]`,
	`input[placeholder*="job" i]`,
	`input[id*="search" i]`,
	`input[class*="search" i]`,
}

// DismissCookieBanner clicks the first visible consent button, if any.
func DismissCookieBanner(page playwright.Page) bool {
	for _, sel := range cookieSelectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
			continue
		}
		utils.RandomDelay(500*time.Millisecond, time.Second)
		return true
	}
	return false
}

// TriggerSearch types term into the first search-looking input and submits it,
// which makes many career sites fire their listing API.
func TriggerSearch(page playwright.Page, term string) bool {
	if term == "" {
		return false
	}
	for _, sel := range searchSelectors {
		input := page.Locator(sel).First()
		if count, _ := input.Count(); count == 0 {
			continue
		}
		if err := input.Fill(term, playwright.LocatorFillOptions{Timeout: playwright.Float(2000)}); err != nil {
			continue
		}
		utils.RandomDelay(800*time.Millisecond, 1200*time.Millisecond)
		if err := input.Press("Enter"); err != nil {
			continue
		}
		utils.RandomDelay(1500*time.Millisecond, 2500*time.Millisecond)
		return true
	}
	return false
}

// ClickFilters clicks every selector that matches a visible element and
// returns how many were clicked.
func ClickFilters(page playwright.Page, selectors []string) int {
	clicked := 0
	for _, sel := range selectors {
		btn := page.Locator(sel).First()
		if visible, _ := btn.IsVisible(); !visible {
			continue
		}
		if err := btn.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)}); err != nil {
			continue
		}
		clicked++
		utils.RandomDelay(1500*time.Millisecond, 2500*time.Millisecond)
	}
	return clicked
}
