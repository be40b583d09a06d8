package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
	ErrTooLarge     = errors.New("batch too large")
	ErrUnavailable  = errors.New("service unavailable")
)
