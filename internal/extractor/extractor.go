// Package extractor pulls job postings out of a rendered career page when no
// listing API is available.
package extractor

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"go-careerwatch/internal/filter"
	"go-careerwatch/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Selectors are ordered CSS selector lists. An empty field uses the default list.
type Selectors struct {
	Container []string
	Title     []string
	Location  []string
	Link      []string
}

// DefaultSelectors go from specific to broad.
func DefaultSelectors() Selectors {
	return Selectors{
		Container: []string{
			"[class*='job'][class*='listing']",
			"[class*='job'][class*='item']",
			"[class*='position']",
			"[class*='career']",
			"article",
			".job",
			".position",
			"[role='listitem']",
		},
		Title:    []string{"[class*='title']", "[class*='job-name']", "h2", "h3", "a"},
		Location: []string{"[class*='location']", "[class*='office']", "[class*='city']"},
		Link:     []string{"a[href*='job']", "a[href*='position']", "a[href*='career']", "a[href]"},
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if len(s.Container) > 0 {
		d.Container = s.Container
	}
	if len(s.Title) > 0 {
		d.Title = s.Title
	}
	if len(s.Location) > 0 {
		d.Location = s.Location
	}
	if len(s.Link) > 0 {
		d.Link = s.Link
	}
	return d
}

// Origin stamps extracted postings.
type Origin struct {
	CompanyID string
	Company   string
	// LocationHints let the link heuristic recognise a location in the text
	// around an anchor.
	LocationHints []string
}

const (
	minCards          = 2
	minLinkTextLength = 20
	maxLocationLength = 100
)

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the postings found in page. It never fails: a page it cannot
// make sense of yields an empty slice.
func (e *Extractor) Extract(page, baseURL string, sel Selectors, origin Origin) []models.JobPosting {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		e.logger.Warn("⚠️ Could not parse page", "url", baseURL, "error", err)
		return nil
	}
	doc.Find("script, style, noscript, template").Remove()

	sel = sel.withDefaults()
	for _, cs := range sel.Container {
		cards := cardGroup(doc.Find(cs), sel.Title)
		if len(cards) < minCards {
			continue
		}
		jobs := dedupe(e.fromCards(cards, baseURL, sel, origin))
		if len(jobs) >= minCards {
			e.logger.Debug("container selector matched", "url", baseURL, "selector", cs, "count", len(jobs))
			return jobs
		}
	}

	jobs := dedupe(e.fromLinks(doc, baseURL, origin))
	e.logger.Debug("link heuristic used", "url", baseURL, "count", len(jobs))
	return jobs
}

// cardGroup returns the largest set of sibling elements that each contain a
// title. Job cards repeat under one parent, which rules out list wrappers and
// nested title spans that happen to match the same selector.
func cardGroup(matched *goquery.Selection, titles []string) []*goquery.Selection {
	groups := make(map[*html.Node][]*goquery.Selection)
	var order []*html.Node
	matched.Each(func(_ int, s *goquery.Selection) {
		if firstText(s, titles) == "" {
			return
		}
		parent := s.Get(0).Parent
		if _, ok := groups[parent]; !ok {
			order = append(order, parent)
		}
		groups[parent] = append(groups[parent], s)
	})

	var best []*goquery.Selection
	for _, p := range order {
		if len(groups[p]) > len(best) {
			best = groups[p]
		}
	}
	return best
}

func (e *Extractor) fromCards(cards []*goquery.Selection, baseURL string, sel Selectors, origin Origin) []models.JobPosting {
	out := make([]models.JobPosting, 0, len(cards))
	for _, card := range cards {
		title := firstText(card, sel.Title)
		if title == "" {
			continue
		}
		out = append(out, posting(origin, title, firstText(card, sel.Location), cardLink(card, sel.Link, baseURL)))
	}
	return out
}

// cardLink tries the link selectors, then the card itself when it is an anchor.
func cardLink(card *goquery.Selection, selectors []string, baseURL string) string {
	for _, ls := range selectors {
		var link string
		card.Find(ls).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if href, ok := usableHref(a); ok {
				link = href
				return false
			}
			return true
		})
		if link != "" {
			return models.ResolveURL(baseURL, link)
		}
	}
	if goquery.NodeName(card) == "a" {
		if href, ok := usableHref(card); ok {
			return models.ResolveURL(baseURL, href)
		}
	}
	return baseURL
}

// fromLinks looks at every anchor whose target or text suggests a posting.
func (e *Extractor) fromLinks(doc *goquery.Document, baseURL string, origin Origin) []models.JobPosting {
	hints := filter.NewMatcher(origin.LocationHints)
	var out []models.JobPosting
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := usableHref(a)
		if !ok {
			return
		}
		text := cleanText(a.Text())
		if text == "" {
			return
		}
		lower := strings.ToLower(href)
		if !strings.Contains(lower, "job") && !strings.Contains(lower, "career") &&
			!strings.Contains(lower, "position") && utf8.RuneCountInString(text) <= minLinkTextLength {
			return
		}

		var location string
		if !hints.Empty() {
			if around := cleanText(a.Parent().Text()); hints.Match(around) {
				location = truncate(around, maxLocationLength)
			}
		}
		out = append(out, posting(origin, text, location, models.ResolveURL(baseURL, href)))
	})
	return out
}

func posting(origin Origin, title, location, link string) models.JobPosting {
	return models.JobPosting{
		ID:       models.DeriveID(origin.CompanyID, "", title, link),
		Title:    title,
		Location: location,
		URL:      link,
		Company:  origin.Company,
		Source:   models.SourceHTML,
	}
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, q := range selectors {
		var text string
		s.Find(q).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text = cleanText(el.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

func usableHref(a *goquery.Selection) (string, bool) {
	href, ok := a.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, p := range []string{"#", "javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, p) {
			return "", false
		}
	}
	return href, true
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func dedupe(jobs []models.JobPosting) []models.JobPosting {
	seen := make(map[string]bool, len(jobs))
	out := jobs[:0]
	for _, j := range jobs {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		out = append(out, j)
	}
	return out
}
