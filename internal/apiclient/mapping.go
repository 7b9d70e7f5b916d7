package apiclient

import (
	"encoding/json"
	"strings"

	"go-careerwatch/internal/models"

	"github.com/tidwall/gjson"
)

// MapItems applies the field mapping to listing elements. Elements without a
// title are dropped.
func MapItems(cfg *models.ApiConfiguration, company string, items []gjson.Result) []models.JobPosting {
	f := cfg.Fields
	out := make([]models.JobPosting, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		title := strings.TrimSpace(item.Get(f.Title).String())
		if title == "" {
			continue
		}

		var link string
		if f.URL != "" {
			link = strings.TrimSpace(item.Get(f.URL).String())
		}
		linked := link != ""
		switch {
		case !linked:
			link = cfg.CareerURL
		case f.URLPrefix != "":
			link = models.ResolveURL(f.URLPrefix, link)
		default:
			link = models.ResolveURL(cfg.Endpoint, link)
		}

		// a posting with its own link is identified the way the HTML
		// fallback identifies it, so switching paths does not re-alert
		var nativeID string
		if f.ID != "" && !linked {
			nativeID = item.Get(f.ID).String()
		}

		var location string
		if f.Location != "" {
			location = RenderLocation(item.Get(f.Location))
		}

		out = append(out, models.JobPosting{
			ID:       models.DeriveID(cfg.CompanyID, nativeID, title, link),
			Title:    title,
			Location: location,
			URL:      link,
			Company:  company,
			Source:   models.SourceAPI,
			Raw:      json.RawMessage(item.Raw),
		})
	}
	return out
}

var (
	cityKeys    = []string{"city", "locality", "town", "municipality"}
	nameKeys    = []string{"name", "displayname", "label", "text", "location", "formatted"}
	countryKeys = []string{"country", "countryname", "countrycode"}
)

// RenderLocation turns a string, an address object or a list of either into
// display text: "Köln, DE; Berlin, DE".
func RenderLocation(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return strings.TrimSpace(v.Str)
	case v.IsArray():
		var parts []string
		seen := make(map[string]bool)
		for _, el := range v.Array() {
			s := RenderLocation(el)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			parts = append(parts, s)
		}
		return strings.Join(parts, "; ")
	case v.IsObject():
		fields := make(map[string]gjson.Result)
		v.ForEach(func(key, value gjson.Result) bool {
			k := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(key.String()))
			if _, dup := fields[k]; !dup {
				fields[k] = value
			}
			return true
		})
		place := firstString(fields, cityKeys)
		if place == "" {
			place = firstString(fields, nameKeys)
		}
		country := firstString(fields, countryKeys)
		switch {
		case place != "" && country != "" && !strings.Contains(place, country):
			return place + ", " + country
		case place != "":
			return place
		default:
			return country
		}
	}
	return ""
}

func firstString(fields map[string]gjson.Result, keys []string) string {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if s := RenderLocation(v); s != "" {
				return s
			}
		}
	}
	return ""
}
