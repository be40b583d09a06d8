package evaluation

import "errors"

// Sentinel kinds for evaluation failures.
var (
	ErrNoMembers        = errors.New("no consortium members")
	ErrShareSumMismatch = errors.New("share sum is not 1")
)
