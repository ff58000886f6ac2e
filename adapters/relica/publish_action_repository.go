package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// PublishActionRepository implements courier.PublishActionRepository using Relica.
type PublishActionRepository struct {
	db          *relica.DB
	dialect     Dialect
	tablePrefix string
}

// NewPublishActionRepository creates a new PublishActionRepository with default table prefix.
func NewPublishActionRepository(sqlDB *sql.DB, driverName string) *PublishActionRepository {
	return NewPublishActionRepositoryWithPrefix(sqlDB, driverName, courier.DefaultTablePrefix)
}

// NewPublishActionRepositoryWithPrefix creates a new PublishActionRepository with custom table prefix.
func NewPublishActionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *PublishActionRepository {
	return &PublishActionRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		dialect:     mustDialect(driverName),
		tablePrefix: prefix,
	}
}

func (r *PublishActionRepository) tableName() string {
	return r.tablePrefix + "publish_actions"
}

// Load retrieves a publish action by ID.
func (r *PublishActionRepository) Load(ctx context.Context, id string) (model.PublishAction, error) {
	var action model.PublishAction

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("id = ?", id).
		WithContext(ctx).
		One(&action)

	if errors.Is(err, sql.ErrNoRows) {
		return action, courier.ErrNoData
	}
	if err != nil {
		return action, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to load publish action", err)
	}
	return action, nil
}

// Insert stores a publish action on exec, typically the claim transaction.
func (r *PublishActionRepository) Insert(ctx context.Context, exec courier.Executor, action model.PublishAction) error {
	query := r.dialect.Rebind("INSERT INTO " + r.tableName() +
		" (id, title, text_content, html_content, published_at) VALUES (?, ?, ?, ?, ?)")

	_, err := exec.ExecContext(ctx, query,
		action.ID, action.Title, action.TextContent, action.HTMLContent, action.PublishedAt)
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert publish action", err)
	}
	return nil
}
