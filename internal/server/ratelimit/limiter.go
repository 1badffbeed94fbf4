// Package ratelimit throttles repeated failed logins per client.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/blogify/internal/common"
)

// Limiter counts failures per key inside a fixed window.
type Limiter interface {
	// Check returns a *LimitedError when key has used up its attempts.
	Check(ctx context.Context, key string) error
	// Fail records one failed attempt for key.
	Fail(ctx context.Context, key string) error
	// Reset forgets all failures for key.
	Reset(ctx context.Context, key string) error
}

// LimitedError matches common.ErrTooManyAttempts via errors.Is.
type LimitedError struct {
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *LimitedError) Unwrap() error { return common.ErrTooManyAttempts }

// Nop never limits.
type Nop struct{}

func (Nop) Check(context.Context, string) error { return nil }
func (Nop) Fail(context.Context, string) error  { return nil }
func (Nop) Reset(context.Context, string) error { return nil }
