// Package retry provides the fixed sleep policy of the delivery worker loop.
//
// The worker never retries a single delivery. It only decides how long to pause
// between iterations: a long idle wait when the queue was empty and a short
// backoff after an iteration failed. A successful iteration loops immediately.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy defines the pauses of the worker loop.
//
// Example with defaults:
//
//	queue empty       -> sleep 10s
//	iteration failed  -> sleep 1s
//	item handled      -> no sleep
type Policy struct {
	IdleWait     time.Duration // Pause after finding the queue empty
	ErrorBackoff time.Duration // Pause after an iteration returned an error
}

// DefaultPolicy returns the default worker policy: 10s idle wait, 1s error backoff.
func DefaultPolicy() Policy {
	return Policy{
		IdleWait:     10 * time.Second,
		ErrorBackoff: 1 * time.Second,
	}
}

// Validate checks both pauses are positive.
func (p Policy) Validate() error {
	if p.IdleWait <= 0 {
		return fmt.Errorf("idle wait must be > 0, got %v", p.IdleWait)
	}
	if p.ErrorBackoff <= 0 {
		return fmt.Errorf("error backoff must be > 0, got %v", p.ErrorBackoff)
	}
	return nil
}

// String returns a human-readable description of the policy.
func (p Policy) String() string {
	return fmt.Sprintf("idle wait %v, error backoff %v", p.IdleWait, p.ErrorBackoff)
}

// Sleep pauses for d or until ctx is done, whichever comes first.
// It returns ctx.Err() if the pause was interrupted.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
