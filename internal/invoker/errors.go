package invoker

import (
	"errors"
	"fmt"
)

// Sentinel errors for report generation.
var (
	// ErrConfiguration means a credential, endpoint or model is missing. It is
	// never retried.
	ErrConfiguration = errors.New("invoker misconfigured")
	// ErrUpstreamUnavailable means every attempt failed with a transport
	// error or a non-success status.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrMalformedResponse means the upstream answered successfully but the
	// payload is not a report. It is never retried.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// StatusError is a non-success HTTP answer from the upstream service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}
