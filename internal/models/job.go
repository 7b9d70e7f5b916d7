package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Source tells which fetch path produced a posting.
type Source string

const (
	SourceAPI  Source = "api"
	SourceHTML Source = "html"
)

// JobPosting is a normalized job entry regardless of the path that produced it.
type JobPosting struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Location string          `json:"location"`
	URL      string          `json:"url"`
	Company  string          `json:"company"`
	Source   Source          `json:"source"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// NormalizeText lower-cases s, strips diacritics and collapses whitespace.
// "  Werkstudent München " -> "werkstudent munchen"
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.Join(strings.Fields(strings.ToLower(result)), " ")
}

// CanonicalLink reduces a posting link to the parts that identify it, so that
// relative and absolute forms of the same link compare equal.
func CanonicalLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")
	if path == "" {
		path = "/"
	}

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return path
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := query[k]
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return path + "?" + strings.Join(parts, "&")
}

// DeriveID returns the stable identity of a posting. A native id from the
// source wins; otherwise title and canonical link are hashed together.
func DeriveID(company, nativeID, title, link string) string {
	var key string
	if id := strings.TrimSpace(nativeID); id != "" {
		key = "id|" + strings.ToLower(company) + "|" + id
	} else {
		key = "tl|" + strings.ToLower(company) + "|" + NormalizeText(title) + "|" + CanonicalLink(link)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// ResolveURL turns a possibly relative link into an absolute one using base.
func ResolveURL(base, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return link
	}
	return b.ResolveReference(ref).String()
}
