// Package lock serializes mutations of a single loan across requests and,
// with the Redis backend, across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAcquired is returned when the lock is still held by someone else
// once the caller's context is done.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func(ctx context.Context) error

// Locker grants exclusive access to a key until the returned Unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LoanKey is the lock key guarding all mutations of one loan.
func LoanKey(loanID string) string {
	return fmt.Sprintf("loan:%s", loanID)
}

func notAcquired(key string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, cause)
}
