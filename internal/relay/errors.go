package relay

import "errors"

var (
	// ErrInvalidInput is returned for an empty or whitespace-only query.
	ErrInvalidInput = errors.New("query is required")

	// ErrUpstreamUnavailable wraps catalog or model call failures. The relay
	// recovers from it with the fallback matcher.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedUpstreamResponse wraps model replies that do not match the
	// reply schema. The relay recovers by using the raw text as the answer.
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")
)
