package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("saved result not found")
	ErrInvalidLimit  = errors.New("invalid ranking limit")
	ErrInvalidRecord = errors.New("invalid saved result")
)
