package repository

import "time"

const defaultMaxLimit = 1000

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMaxLimit caps the n accepted by Ranking.
func WithMaxLimit(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithClock overrides the clock used to stamp SavedAt.
func WithClock(now func() time.Time) Option {
	return func(s *TreapStore) {
		if now != nil {
			s.now = now
		}
	}
}
