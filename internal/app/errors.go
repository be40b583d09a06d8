package service

import (
	"errors"
	"fmt"

	"github.com/okian/consortium/internal/adapters/http/api"
)

// Sentinel kinds for service errors. ErrNotStarted also matches
// api.ErrUnavailable so handlers answer 503.
var (
	ErrNotStarted = fmt.Errorf("service not started: %w", api.ErrUnavailable)
	ErrRulesLoad  = errors.New("load rule tables")
)
