package services

import "errors"

var (
	// ErrInvalidRequest marks caller mistakes: missing documents, unknown
	// roles, empty identifiers.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrForbidden marks operations the actor variant may not perform.
	ErrForbidden = errors.New("operation not permitted for actor")
)
