package courier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coregx/courier/model"
)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator) error

// WithCoordinatorStore sets the connection pool claim transactions are opened on
// and the claim repository. Both are required.
func WithCoordinatorStore(db TxBeginner, claims ClaimRepository) CoordinatorOption {
	return func(c *Coordinator) error {
		if db == nil {
			return fmt.Errorf("db cannot be nil")
		}
		if claims == nil {
			return fmt.Errorf("claims repository cannot be nil")
		}
		c.db = db
		c.claims = claims
		return nil
	}
}

// WithCoordinatorLogger sets the logger. Required.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithInFlightPolling makes TryStart wait for a claim held by a concurrent request.
// The stored row is re-read up to attempts times, interval apart, before giving up
// with ErrInFlight. The default of zero attempts reports ErrInFlight immediately.
func WithInFlightPolling(attempts int, interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) error {
		if attempts < 0 {
			return fmt.Errorf("polling attempts must be >= 0, got %d", attempts)
		}
		if attempts > 0 && interval <= 0 {
			return fmt.Errorf("polling interval must be > 0, got %v", interval)
		}
		c.pollAttempts = attempts
		c.pollInterval = interval
		return nil
	}
}

// Coordinator decides, per (caller, idempotency key), whether a request does the
// work or replays the response stored by the request that did.
//
// The insert-if-absent of the claim row is the single decision point: exactly one
// concurrent caller gets a UnitOfWork, the others get the saved response once that
// unit of work commits.
type Coordinator struct {
	db           TxBeginner
	claims       ClaimRepository
	logger       Logger
	pollAttempts int
	pollInterval time.Duration
}

// NewCoordinator creates a coordinator.
//
// Required options:
//   - WithCoordinatorStore
//   - WithCoordinatorLogger
func NewCoordinator(opts ...CoordinatorOption) (*Coordinator, error) {
	c := &Coordinator{}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if c.db == nil || c.claims == nil {
		return nil, NewError(ErrCodeConfiguration, "claim store is required (use WithCoordinatorStore)")
	}
	if c.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithCoordinatorLogger)")
	}

	return c, nil
}

// NextAction is the outcome of TryStart: either start processing under a fresh
// claim or return the response saved by an earlier request.
type NextAction struct {
	work  *UnitOfWork
	saved model.ResponseSnapshot
}

// StartProcessing returns the unit of work when this request won the claim.
func (a NextAction) StartProcessing() (*UnitOfWork, bool) {
	return a.work, a.work != nil
}

// SavedResponse returns the stored response when the claim was already completed.
func (a NextAction) SavedResponse() (model.ResponseSnapshot, bool) {
	return a.saved, a.work == nil
}

// TryStart claims (callerID, key) or fetches the response stored on an existing claim.
//
// Errors:
//   - ErrCodeValidation: empty caller or zero key
//   - ErrCodeDatabase: the store failed
//   - ErrCodeInFlight: the claim belongs to a request that has not completed yet
//   - ErrCodeInvariantViolation: the conflicting row vanished or is partially written
func (c *Coordinator) TryStart(ctx context.Context, callerID string, key model.IdempotencyKey) (NextAction, error) {
	if callerID == "" {
		return NextAction{}, NewError(ErrCodeValidation, "caller id is required")
	}
	if key.IsZero() {
		return NextAction{}, NewError(ErrCodeValidation, "idempotency key is required")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return NextAction{}, NewErrorWithCause(ErrCodeDatabase, "failed to begin claim transaction", err)
	}

	inserted, err := c.claims.TryInsert(ctx, tx, callerID, key)
	if err != nil {
		_ = tx.Rollback()
		return NextAction{}, err
	}
	if inserted {
		c.logger.Debugf("Claimed idempotency key %s for caller %s", key, callerID)
		return NextAction{work: &UnitOfWork{tx: tx, claims: c.claims, callerID: callerID, key: key}}, nil
	}

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		c.logger.Warnf("Failed to roll back conflicting claim for key %s: %v", key, err)
	}

	return c.savedResponse(ctx, callerID, key)
}

// savedResponse reads the existing claim, polling while it is in flight if configured.
func (c *Coordinator) savedResponse(ctx context.Context, callerID string, key model.IdempotencyKey) (NextAction, error) {
	for attempt := 0; ; attempt++ {
		claim, err := c.claims.Load(ctx, callerID, key)
		if IsNoData(err) {
			return NextAction{}, NewErrorWithCause(ErrCodeInvariantViolation,
				"claim row vanished after insert conflict", err)
		}
		if err != nil {
			return NextAction{}, err
		}

		switch claim.State() {
		case model.ClaimCompleted:
			snapshot, err := claim.Snapshot()
			if err != nil {
				return NextAction{}, NewErrorWithCause(ErrCodeInvariantViolation, "stored response cannot be decoded", err)
			}
			c.logger.Debugf("Replaying saved response for idempotency key %s (caller %s)", key, callerID)
			return NextAction{saved: snapshot}, nil
		case model.ClaimCorrupt:
			return NextAction{}, NewErrorWithCause(ErrCodeInvariantViolation, "claim row is partially written", model.ErrClaimCorrupt)
		}

		if attempt >= c.pollAttempts {
			c.logger.Warnf("Idempotency key %s for caller %s is still in flight after %d polls", key, callerID, attempt)
			return NextAction{}, ErrInFlight
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return NextAction{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// UnitOfWork is the open claim transaction handed to the request that won the claim.
//
// It must be completed exactly once, either with CommitWith (store the response and
// commit) or Abandon (roll back, the key becomes claimable again). Work that has to
// be atomic with the claim runs on Exec.
type UnitOfWork struct {
	tx       *sql.Tx
	claims   ClaimRepository
	callerID string
	key      model.IdempotencyKey

	mu   sync.Mutex
	done bool
}

// Exec returns the claim transaction.
func (u *UnitOfWork) Exec() Executor {
	return u.tx
}

// CallerID returns the caller the claim belongs to.
func (u *UnitOfWork) CallerID() string {
	return u.callerID
}

// Key returns the claimed idempotency key.
func (u *UnitOfWork) Key() model.IdempotencyKey {
	return u.key
}

func (u *UnitOfWork) finish() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return false
	}
	u.done = true
	return true
}

// CommitWith stores snapshot on the claim and commits. On failure the transaction
// is rolled back and the claim released.
func (u *UnitOfWork) CommitWith(ctx context.Context, snapshot model.ResponseSnapshot) error {
	if !u.finish() {
		return ErrUnitOfWorkDone
	}

	if err := snapshot.Validate(); err != nil {
		_ = u.tx.Rollback()
		return NewErrorWithCause(ErrCodeValidation, "response cannot be stored", err)
	}

	if err := u.claims.Put(ctx, u.tx, u.callerID, u.key, snapshot); err != nil {
		_ = u.tx.Rollback()
		return err
	}

	if err := u.tx.Commit(); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to commit claim transaction", err)
	}
	return nil
}

// Abandon rolls the claim back.
func (u *UnitOfWork) Abandon() error {
	if !u.finish() {
		return ErrUnitOfWorkDone
	}
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return NewErrorWithCause(ErrCodeDatabase, "failed to roll back claim transaction", err)
	}
	return nil
}
