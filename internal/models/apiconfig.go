package models

import (
	"fmt"
	"strings"
	"time"
)

type PaginationKind string

const (
	PaginationNone   PaginationKind = "none"
	PaginationOffset PaginationKind = "offset"
	PaginationCursor PaginationKind = "cursor"
	PaginationPage   PaginationKind = "page"
)

type ParamLocation string

const (
	ParamInQuery ParamLocation = "query"
	ParamInBody  ParamLocation = "body"
)

// Pagination is replayable metadata describing how to walk a listing API.
// Paths are gjson paths into the response (CursorPath, HasMorePath,
// TotalPagesPath) or into the request body when In is "body" (Param).
type Pagination struct {
	Kind           PaginationKind `json:"kind"`
	Param          string         `json:"param,omitempty"`
	In             ParamLocation  `json:"in,omitempty"`
	Start          int            `json:"start,omitempty"`
	Step           int            `json:"step,omitempty"`
	CursorPath     string         `json:"cursor_path,omitempty"`
	HasMorePath    string         `json:"has_more_path,omitempty"`
	TotalPagesPath string         `json:"total_pages_path,omitempty"`
}

// FieldMapping maps gjson paths in a listing response to JobPosting fields.
// ItemsPath locates the array of postings ("" means the body is the array);
// the other paths are relative to one array element.
type FieldMapping struct {
	ItemsPath string `json:"items_path"`
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Location  string `json:"location,omitempty"`
	URL       string `json:"url,omitempty"`
	URLPrefix string `json:"url_prefix,omitempty"`
}

// ApiConfiguration is a discovered, replayable job-listing API shape.
type ApiConfiguration struct {
	CompanyID    string            `json:"company_id"`
	CareerURL    string            `json:"career_url"`
	Endpoint     string            `json:"endpoint"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyTemplate string            `json:"body_template,omitempty"`
	Pagination   Pagination        `json:"pagination"`
	Fields       FieldMapping      `json:"fields"`
	DiscoveredAt time.Time         `json:"discovered_at"`
	LastVerified time.Time         `json:"last_verified,omitzero"`
	Confidence   int               `json:"confidence"`
	Validated    bool              `json:"validated"`
}

// Validate reports whether the configuration carries enough to be replayed.
func (c *ApiConfiguration) Validate() error {
	if c == nil {
		return fmt.Errorf("configuration is nil")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	switch strings.ToUpper(c.Method) {
	case "GET", "POST", "PUT":
	default:
		return fmt.Errorf("unsupported method %q", c.Method)
	}
	if c.Fields.Title == "" {
		return fmt.Errorf("title mapping is required")
	}
	switch c.Pagination.Kind {
	case PaginationNone, "":
	case PaginationOffset, PaginationPage:
		if c.Pagination.Param == "" {
			return fmt.Errorf("%s pagination needs a parameter", c.Pagination.Kind)
		}
	case PaginationCursor:
		if c.Pagination.Param == "" || c.Pagination.CursorPath == "" {
			return fmt.Errorf("cursor pagination needs a parameter and a cursor path")
		}
	default:
		return fmt.Errorf("unknown pagination kind %q", c.Pagination.Kind)
	}
	return nil
}
