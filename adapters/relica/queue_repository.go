package relica

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// enqueueChunk bounds the rows per INSERT to stay under driver placeholder limits.
const enqueueChunk = 500

// QueueRepository implements courier.QueueRepository using Relica.
type QueueRepository struct {
	sqlDB       *sql.DB
	db          *relica.DB
	dialect     Dialect
	tablePrefix string
}

// NewQueueRepository creates a new QueueRepository with default table prefix.
func NewQueueRepository(sqlDB *sql.DB, driverName string) *QueueRepository {
	return NewQueueRepositoryWithPrefix(sqlDB, driverName, courier.DefaultTablePrefix)
}

// NewQueueRepositoryWithPrefix creates a new QueueRepository with custom table prefix.
func NewQueueRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *QueueRepository {
	return &QueueRepository{
		sqlDB:       sqlDB,
		db:          relica.WrapDB(sqlDB, driverName),
		dialect:     mustDialect(driverName),
		tablePrefix: prefix,
	}
}

func (r *QueueRepository) tableName() string {
	return r.tablePrefix + "delivery_queue"
}

// Enqueue inserts one row per distinct recipient.
func (r *QueueRepository) Enqueue(ctx context.Context, exec courier.Executor, publishActionID string, recipients []string) error {
	items := model.NewQueueItems(publishActionID, recipients)

	for start := 0; start < len(items); start += enqueueChunk {
		end := start + enqueueChunk
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		var b strings.Builder
		b.WriteString("INSERT INTO ")
		b.WriteString(r.tableName())
		b.WriteString(" (publish_action_id, recipient_address) VALUES ")
		args := make([]interface{}, 0, 2*len(chunk))
		for i, item := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?)")
			args = append(args, item.PublishActionID, item.RecipientAddress)
		}

		if _, err := exec.ExecContext(ctx, r.dialect.Rebind(b.String()), args...); err != nil {
			return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to enqueue delivery tasks", err)
		}
	}

	return nil
}

// DequeueOne locks one row that no other transaction holds.
func (r *QueueRepository) DequeueOne(ctx context.Context, exec courier.Executor) (model.QueueItem, error) {
	var item model.QueueItem

	query := "SELECT publish_action_id, recipient_address FROM " + r.tableName() +
		" LIMIT 1" + r.dialect.LockSkipLocked()

	err := exec.QueryRowContext(ctx, query).Scan(&item.PublishActionID, &item.RecipientAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return item, courier.ErrNoData
	}
	if err != nil {
		return item, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to dequeue delivery task", err)
	}

	return item, nil
}

// Delete removes a queue row.
func (r *QueueRepository) Delete(ctx context.Context, exec courier.Executor, item model.QueueItem) error {
	query := r.dialect.Rebind("DELETE FROM " + r.tableName() +
		" WHERE publish_action_id = ? AND recipient_address = ?")

	if _, err := exec.ExecContext(ctx, query, item.PublishActionID, item.RecipientAddress); err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to delete delivery task", err)
	}
	return nil
}

// Count returns the number of queued rows.
// Relica only scans into structs, so the scalar is read from the pool directly.
func (r *QueueRepository) Count(ctx context.Context) (int, error) {
	var count int64
	err := r.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.tableName()).Scan(&count)
	if err != nil {
		return 0, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to count delivery tasks", err)
	}
	return int(count), nil
}

// FindByPublishAction lists the rows still queued for a publish action.
func (r *QueueRepository) FindByPublishAction(ctx context.Context, publishActionID string) ([]model.QueueItem, error) {
	var items []model.QueueItem

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("publish_action_id = ?", publishActionID).
		OrderBy("recipient_address ASC").
		WithContext(ctx).
		All(&items)

	if err != nil {
		return nil, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to find delivery tasks", err)
	}
	return items, nil
}
