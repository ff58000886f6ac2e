package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// SubscriberRepository implements courier.SubscriberRepository using Relica ORM.
type SubscriberRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSubscriberRepository creates a new SubscriberRepository with default table prefix.
func NewSubscriberRepository(sqlDB *sql.DB, driverName string) *SubscriberRepository {
	return &SubscriberRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: courier.DefaultTablePrefix}
}

// NewSubscriberRepositoryWithPrefix creates a new SubscriberRepository with custom table prefix.
func NewSubscriberRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriberRepository {
	return &SubscriberRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SubscriberRepository) tableName() string {
	return r.tablePrefix + "subscribers"
}

// Save creates or updates a subscriber.
func (r *SubscriberRepository) Save(ctx context.Context, m model.Subscriber) (model.Subscriber, error) {
	if m.ID == 0 {
		// Insert using Model() API - auto-populates m.ID
		err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
		if err != nil {
			return m, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert subscriber", err)
		}
		return m, nil
	}

	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to update subscriber", err)
	}
	return m, nil
}

// FindByEmail retrieves a subscriber by address.
func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (model.Subscriber, error) {
	return r.findOne(ctx, "email = ?", email)
}

// FindByConfirmationToken retrieves a subscriber by confirmation token.
func (r *SubscriberRepository) FindByConfirmationToken(ctx context.Context, token string) (model.Subscriber, error) {
	return r.findOne(ctx, "confirmation_token = ?", token)
}

func (r *SubscriberRepository) findOne(ctx context.Context, where string, arg interface{}) (model.Subscriber, error) {
	var sub model.Subscriber
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where(where, arg).One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, courier.ErrNoData
	}
	if err != nil {
		return sub, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to load subscriber", err)
	}
	return sub, nil
}

// ListConfirmedEmails returns the addresses of confirmed subscribers, oldest first.
func (r *SubscriberRepository) ListConfirmedEmails(ctx context.Context) ([]string, error) {
	var subs []model.Subscriber

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("status = ?", string(model.SubscriberConfirmed)).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&subs)

	if err != nil {
		return nil, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to list confirmed subscribers", err)
	}

	emails := make([]string, 0, len(subs))
	for _, s := range subs {
		emails = append(emails, s.Email)
	}
	return emails, nil
}
