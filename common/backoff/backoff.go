// Package backoff contains helpers for dealing with backoffs.
package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewExponentialBackOff creates an instance of ExponentialBackOff that never
// gives up and waits at most maxInterval between attempts. A zero
// maxInterval keeps the library default.
func NewExponentialBackOff(maxInterval time.Duration) *backoff.ExponentialBackOff {
	opts := []backoff.ExponentialBackOffOpts{
		backoff.WithMaxElapsedTime(0),
	}
	if maxInterval > 0 {
		opts = append(opts, backoff.WithMaxInterval(maxInterval))
	}
	return backoff.NewExponentialBackOff(opts...)
}

// NewBoundedBackOff creates an exponential backoff that gives up after the
// given number of retries.
func NewBoundedBackOff(maxRetries uint64, maxInterval time.Duration) backoff.BackOff {
	return backoff.WithMaxRetries(NewExponentialBackOff(maxInterval), maxRetries)
}
