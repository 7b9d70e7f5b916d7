package models

import "time"

// CandidateRequest is one captured request/response pair that might be a
// job-listing API call. It only lives for the duration of a discovery attempt.
type CandidateRequest struct {
	Seq          int
	CapturedAt   time.Time
	URL          string
	Method       string
	Headers      map[string]string
	Body         string
	Status       int
	ContentType  string
	ResponseBody []byte
}
