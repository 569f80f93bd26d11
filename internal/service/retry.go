package service

import (
    "context"
    "errors"
    "time"

    "github.com/openlodge/reservations/internal/repository"
)

// Retry policy for store calls that need strong consistency (reserve,
// confirm, release).  Transient failures are retried with exponential
// backoff a bounded number of times; sentinel errors are never retried.
const (
    retryAttempts   = 3
    initialBackoff  = 100 * time.Millisecond
    maxRetryBackoff = 2 * time.Second
)

// retryStore invokes fn up to retryAttempts times.  It returns nil on the
// first success and the last error otherwise.  Sentinel repository errors
// and context cancellation abort immediately since retrying cannot help.
func retryStore(ctx context.Context, fn func() error) error {
    backoff := initialBackoff
    var err error
    for attempt := 0; attempt < retryAttempts; attempt++ {
        err = fn()
        if err == nil || !retryable(err) {
            return err
        }
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(backoff):
        }
        if backoff < maxRetryBackoff {
            backoff *= 2
        }
    }
    return err
}

func retryable(err error) bool {
    if errors.Is(err, repository.ErrUnitNotFound) ||
        errors.Is(err, repository.ErrUnitExists) ||
        errors.Is(err, repository.ErrCapacityBelowCommitted) {
        return false
    }
    if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
        return false
    }
    return true
}
