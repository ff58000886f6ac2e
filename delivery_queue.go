package courier

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/coregx/courier/model"
)

// DeliveryQueue hands out queue items to workers, one locked row per transaction.
//
// Several workers, in one process or many, can drain the same queue: a dequeue
// skips rows locked by other transactions instead of waiting on them. A lease
// holds its row lock until it is completed or abandoned; if the process dies the
// database releases the lock and the item becomes available again.
type DeliveryQueue struct {
	db   TxBeginner
	repo QueueRepository
}

// NewDeliveryQueue creates a delivery queue over the given pool and repository.
func NewDeliveryQueue(db TxBeginner, repo QueueRepository) (*DeliveryQueue, error) {
	if db == nil {
		return nil, NewError(ErrCodeConfiguration, "db is required")
	}
	if repo == nil {
		return nil, NewError(ErrCodeConfiguration, "QueueRepository is required")
	}
	return &DeliveryQueue{db: db, repo: repo}, nil
}

// Enqueue fans a publish action out to recipients, one item per distinct address.
// Pass the claim transaction as exec so the fan-out commits with the claim.
func (q *DeliveryQueue) Enqueue(ctx context.Context, exec Executor, publishActionID string, recipients []string) error {
	if publishActionID == "" {
		return NewError(ErrCodeValidation, "publish action id is required")
	}
	if len(recipients) == 0 {
		return nil
	}
	return q.repo.Enqueue(ctx, exec, publishActionID, recipients)
}

// Len returns the number of queued items, including leased ones.
func (q *DeliveryQueue) Len(ctx context.Context) (int, error) {
	return q.repo.Count(ctx)
}

// DequeueOne opens a transaction and locks one available item.
// Returns ErrNoData when no unlocked item exists.
//
// Canceling ctx interrupts the dequeue. Once an item is locked the lease no longer
// depends on ctx: its transaction stays open until Complete or Abandon.
func (q *DeliveryQueue) DequeueOne(ctx context.Context) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txCtx, release := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, release)

	tx, err := q.db.BeginTx(txCtx, nil)
	if err != nil {
		stop()
		release()
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to begin dequeue transaction", err)
	}

	item, err := q.repo.DequeueOne(txCtx, tx)
	if err != nil {
		_ = tx.Rollback()
		stop()
		release()
		return nil, err
	}

	if !stop() {
		// ctx ended while the row was being locked and the transaction is rolling back.
		_ = tx.Rollback()
		release()
		return nil, ctx.Err()
	}

	return &Lease{tx: tx, repo: q.repo, item: item, release: release}, nil
}

// Lease is a locked queue item. Complete or Abandon it exactly once.
type Lease struct {
	tx      *sql.Tx
	repo    QueueRepository
	item    model.QueueItem
	release context.CancelFunc

	mu   sync.Mutex
	done bool
}

// Item returns the leased queue item.
func (l *Lease) Item() model.QueueItem {
	return l.item
}

// Exec returns the lease transaction.
func (l *Lease) Exec() Executor {
	return l.tx
}

func (l *Lease) finish() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return false
	}
	l.done = true
	return true
}

// Complete deletes the item and commits. It is the last operation of the lease.
func (l *Lease) Complete(ctx context.Context) error {
	if !l.finish() {
		return ErrUnitOfWorkDone
	}
	defer l.release()

	if err := l.repo.Delete(ctx, l.tx, l.item); err != nil {
		_ = l.tx.Rollback()
		return err
	}
	if err := l.tx.Commit(); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to commit queue item removal", err)
	}
	return nil
}

// Abandon rolls back, releasing the lock so the item can be dequeued again.
func (l *Lease) Abandon() error {
	if !l.finish() {
		return ErrUnitOfWorkDone
	}
	defer l.release()

	if err := l.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return NewErrorWithCause(ErrCodeDatabase, "failed to roll back dequeue transaction", err)
	}
	return nil
}
