package discovery

import (
	"net/url"
	"strconv"
	"strings"

	"go-careerwatch/internal/models"

	"github.com/tidwall/gjson"
)

var (
	cursorParams   = []string{"cursor", "nextcursor", "pagetoken", "nextpagetoken", "nexttoken", "token", "after", "continuationtoken", "startcursor"}
	cursorFields   = []string{"nextcursor", "nextpagetoken", "nexttoken", "cursor", "continuationtoken", "endcursor", "after"}
	offsetParams   = []string{"offset", "skip", "start", "from", "startindex", "firstresult"}
	sizeParams     = []string{"limit", "top", "size", "pagesize", "perpage", "count", "rows", "maxresults", "num"}
	pageParams     = []string{"page", "pagenumber", "pageno", "pageindex", "currentpage", "p"}
	pageFields     = []string{"page", "currentpage", "pagenumber"}
	hasMoreFields  = []string{"hasmore", "hasnextpage", "morepages", "hasnext"}
	totalPageField = []string{"totalpages", "pagecount", "numpages", "lastpage"}
)

type requestParam struct {
	name  string
	value string
	in    models.ParamLocation
}

// DetectPagination inspects the captured request and response for paging
// signals and records them as replayable metadata.
func DetectPagination(c models.CandidateRequest, itemsPath string, items int) models.Pagination {
	params := requestParams(c)
	resp := gjson.ParseBytes(c.ResponseBody)
	hints := responseHints(resp, itemsPath)

	p := models.Pagination{Kind: models.PaginationNone}
	p.HasMorePath = hints.find(hasMoreFields, func(v gjson.Result) bool { return v.IsBool() })
	p.TotalPagesPath = hints.find(totalPageField, func(v gjson.Result) bool { return v.Type == gjson.Number })

	if cursorPath := hints.find(cursorFields, func(v gjson.Result) bool {
		return v.Type == gjson.String && v.Str != "" && !strings.HasPrefix(v.Str, "http")
	}); cursorPath != "" {
		p.Kind = models.PaginationCursor
		p.CursorPath = cursorPath
		if rp, ok := params.find(cursorParams); ok {
			p.Param, p.In = rp.name, rp.in
		} else {
			p.Param, p.In = cursorParamFor(cursorPath), defaultIn(c)
		}
		return p
	}

	if rp, ok := params.findNumeric(offsetParams); ok {
		p.Kind = models.PaginationOffset
		p.Param, p.In = rp.name, rp.in
		p.Step = items
		if size, ok := params.find(sizeParams); ok {
			if n, err := strconv.Atoi(size.value); err == nil && n > 0 {
				p.Step = n
			}
		}
		return p
	}

	if rp, ok := params.findNumeric(pageParams); ok {
		p.Kind = models.PaginationPage
		p.Param, p.In = rp.name, rp.in
		p.Start, p.Step = 1, 1
		if rp.value == "0" {
			p.Start = 0
		}
		return p
	}

	if hints.find(pageFields, func(v gjson.Result) bool { return v.Type == gjson.Number }) != "" && p.TotalPagesPath != "" {
		p.Kind = models.PaginationPage
		p.Param, p.In = "page", defaultIn(c)
		p.Start, p.Step = 1, 1
	}
	return p
}

type paramList []requestParam

func (l paramList) find(names []string) (requestParam, bool) {
	for _, want := range names {
		for _, rp := range l {
			if normalizeKey(rp.name) == want {
				return rp, true
			}
		}
	}
	return requestParam{}, false
}

func (l paramList) findNumeric(names []string) (requestParam, bool) {
	var numeric paramList
	for _, rp := range l {
		if _, err := strconv.Atoi(rp.value); err == nil {
			numeric = append(numeric, rp)
		}
	}
	return numeric.find(names)
}

func requestParams(c models.CandidateRequest) paramList {
	var out paramList
	if u, err := url.Parse(c.URL); err == nil {
		for name, vals := range u.Query() {
			v := ""
			if len(vals) > 0 {
				v = vals[0]
			}
			out = append(out, requestParam{name: name, value: v, in: models.ParamInQuery})
		}
	}
	if body := gjson.Parse(c.Body); c.Body != "" && body.IsObject() {
		body.ForEach(func(key, value gjson.Result) bool {
			if value.Type == gjson.String || value.Type == gjson.Number {
				out = append(out, requestParam{name: key.String(), value: value.String(), in: models.ParamInBody})
			}
			return true
		})
	}
	return out
}

func defaultIn(c models.CandidateRequest) models.ParamLocation {
	if c.Body != "" && gjson.Parse(c.Body).IsObject() {
		return models.ParamInBody
	}
	return models.ParamInQuery
}

type hint struct {
	path  string
	key   string
	value gjson.Result
}

type hintList []hint

// responseHints collects scalar fields at the top two levels of the response,
// ignoring the listing array itself.
func responseHints(resp gjson.Result, itemsPath string) hintList {
	var out hintList
	var walk func(v gjson.Result, path string, depth int)
	walk = func(v gjson.Result, path string, depth int) {
		if !v.IsObject() || depth > 1 {
			return
		}
		v.ForEach(func(key, value gjson.Result) bool {
			p := joinPath(path, escapePath(key.String()))
			if p == itemsPath {
				return true
			}
			if value.IsObject() {
				walk(value, p, depth+1)
			} else if !value.IsArray() {
				out = append(out, hint{path: p, key: key.String(), value: value})
			}
			return true
		})
	}
	walk(resp, "", 0)
	return out
}

func (l hintList) find(names []string, ok func(gjson.Result) bool) string {
	for _, want := range names {
		for _, h := range l {
			if normalizeKey(h.key) == want && ok(h.value) {
				return h.path
			}
		}
	}
	return ""
}

// cursorParamFor guesses the request parameter from the response field:
// "meta.nextPageToken" -> "pageToken", "cursor" -> "cursor".
func cursorParamFor(path string) string {
	key := path
	if i := strings.LastIndex(path, "."); i >= 0 {
		key = path[i+1:]
	}
	key = strings.ReplaceAll(key, `\`, "")
	for _, prefix := range []string{"next_", "next"} {
		if len(key) > len(prefix) && strings.EqualFold(key[:len(prefix)], prefix) {
			rest := key[len(prefix):]
			return strings.ToLower(rest[:1]) + rest[1:]
		}
	}
	return key
}
