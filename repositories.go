package courier

import (
	"context"
	"database/sql"

	"github.com/coregx/courier/model"
)

// Executor runs statements. Both *sql.DB and *sql.Tx satisfy it, so a repository
// method taking an Executor works inside a claim or lease transaction as well as
// standalone on the pool.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxBeginner opens transactions. *sql.DB satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// ClaimRepository defines the persistence interface for idempotency claims and
// the response snapshots stored on them.
//
// Implementations must be safe for concurrent use. The (caller, key) pair is the
// row identity; the store's uniqueness constraint on it is the only
// synchronization between concurrent requests.
type ClaimRepository interface {
	// Load retrieves the claim row.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, callerID string, key model.IdempotencyKey) (model.Claim, error)

	// Get returns the stored snapshot. The boolean is false when the row is absent
	// or its response has not been stored yet.
	Get(ctx context.Context, callerID string, key model.IdempotencyKey) (model.ResponseSnapshot, bool, error)

	// TryInsert creates an in-flight claim unless one already exists.
	// Returns true if this call created the row.
	TryInsert(ctx context.Context, exec Executor, callerID string, key model.IdempotencyKey) (bool, error)

	// Put stores the response on the claim exactly once. An in-flight row is
	// completed; without a row a completed one is inserted. A row that already
	// holds a response is a constraint violation.
	Put(ctx context.Context, exec Executor, callerID string, key model.IdempotencyKey, snapshot model.ResponseSnapshot) error
}

// QueueRepository defines the persistence interface for delivery queue items.
type QueueRepository interface {
	// Enqueue inserts one row per distinct recipient.
	// Separate calls are not deduplicated against each other.
	Enqueue(ctx context.Context, exec Executor, publishActionID string, recipients []string) error

	// DequeueOne selects and locks one row not locked by another transaction,
	// skipping locked rows instead of waiting on them. exec must be a transaction.
	// Returns ErrNoData if no unlocked row exists.
	DequeueOne(ctx context.Context, exec Executor) (model.QueueItem, error)

	// Delete removes the row.
	Delete(ctx context.Context, exec Executor, item model.QueueItem) error

	// Count returns the number of rows, locked or not.
	Count(ctx context.Context) (int, error)
}

// PublishActionRepository defines the persistence interface for newsletter issue content.
type PublishActionRepository interface {
	// Load retrieves a publish action by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id string) (model.PublishAction, error)

	// Insert stores a new publish action.
	Insert(ctx context.Context, exec Executor, action model.PublishAction) error
}

// SubscriberRepository defines the persistence interface for newsletter subscribers.
type SubscriberRepository interface {
	// Save creates a new subscriber (if ID=0) or updates an existing one.
	// Returns the saved subscriber with populated ID.
	Save(ctx context.Context, m model.Subscriber) (model.Subscriber, error)

	// FindByEmail retrieves a subscriber by address.
	// Returns ErrNoData if not found.
	FindByEmail(ctx context.Context, email string) (model.Subscriber, error)

	// FindByConfirmationToken retrieves the subscriber a confirmation link was issued to.
	// Returns ErrNoData if not found.
	FindByConfirmationToken(ctx context.Context, token string) (model.Subscriber, error)

	// ListConfirmedEmails returns the stored addresses of confirmed subscribers.
	// Addresses are returned as stored and must be parsed again before use.
	ListConfirmedEmails(ctx context.Context) ([]string, error)
}
