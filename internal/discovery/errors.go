package discovery

import "errors"

// All three are recoverable: the caller falls back to HTML extraction.
var (
	ErrDiscoveryTimeout = errors.New("discovery timed out before the page settled")
	ErrNoJSONTraffic    = errors.New("no JSON traffic observed")
	ErrNoConfidentMatch = errors.New("no candidate scored above the confidence threshold")
)
