package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDuplicateName = errors.New("pack name already exists")
	ErrPackNotFound  = errors.New("pack not found")
	ErrBlockNotFound = errors.New("block not found")
)

// RateLimitedError is returned by transports when the provider asks the caller
// to wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// AsRateLimited extracts the wait duration from a rate limit error.
func AsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
