package filter

import (
	"strings"

	"go-careerwatch/internal/models"
)

// Matcher holds terms folded the same way as the text they are matched against.
type Matcher struct {
	terms []string
}

// NewMatcher folds terms once. Blank terms are dropped.
func NewMatcher(terms []string) Matcher {
	m := Matcher{terms: make([]string, 0, len(terms))}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		f := models.NormalizeText(t)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		m.terms = append(m.terms, f)
	}
	return m
}

// Empty reports whether the matcher has no terms and so accepts everything.
func (m Matcher) Empty() bool {
	return len(m.terms) == 0
}

// Match reports whether any term is a substring of text, ignoring case and accents.
// "Werkstudent (m/w/d) Köln" matches "koln" and "werkstudent".
func (m Matcher) Match(text string) bool {
	if m.Empty() {
		return true
	}
	folded := models.NormalizeText(text)
	for _, t := range m.terms {
		if strings.Contains(folded, t) {
			return true
		}
	}
	return false
}
