package ruleset

import (
	"errors"
	"fmt"
)

// Sentinel kinds for rule set errors.
var (
	ErrUnknownRuleSet      = errors.New("unknown rule set")
	ErrUnknownJurisdiction = errors.New("unknown jurisdiction")
	ErrUnknownTier         = errors.New("unknown tier")
	ErrInvalidTable        = errors.New("invalid rule table")
	ErrDuplicateRuleSet    = errors.New("duplicate rule set")
)

// ConfigurationError reports a rule configuration that cannot be used for
// scoring. Evaluation must stop when one is returned.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Key, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func configErr(key string, format string, args ...any) error {
	return &ConfigurationError{Key: key, Err: fmt.Errorf(format, args...)}
}
