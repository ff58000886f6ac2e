package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
	"github.com/coregx/relica"
)

// ClaimRepository implements courier.ClaimRepository using Relica.
type ClaimRepository struct {
	db          *relica.DB
	dialect     Dialect
	tablePrefix string
}

// NewClaimRepository creates a new ClaimRepository with default table prefix.
func NewClaimRepository(sqlDB *sql.DB, driverName string) *ClaimRepository {
	return NewClaimRepositoryWithPrefix(sqlDB, driverName, courier.DefaultTablePrefix)
}

// NewClaimRepositoryWithPrefix creates a new ClaimRepository with custom table prefix.
func NewClaimRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *ClaimRepository {
	return &ClaimRepository{
		db:          relica.WrapDB(sqlDB, driverName),
		dialect:     mustDialect(driverName),
		tablePrefix: prefix,
	}
}

func (r *ClaimRepository) tableName() string {
	return r.tablePrefix + "claims"
}

// Load retrieves the claim row for (callerID, key).
func (r *ClaimRepository) Load(ctx context.Context, callerID string, key model.IdempotencyKey) (model.Claim, error) {
	var claim model.Claim

	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("caller_id = ? AND idempotency_key = ?", callerID, key.String()).
		WithContext(ctx).
		One(&claim)

	if errors.Is(err, sql.ErrNoRows) {
		return claim, courier.ErrNoData
	}
	if err != nil {
		return claim, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to load claim", err)
	}

	return claim, nil
}

// Get returns the stored response. False when the claim is absent or in flight.
func (r *ClaimRepository) Get(ctx context.Context, callerID string, key model.IdempotencyKey) (model.ResponseSnapshot, bool, error) {
	claim, err := r.Load(ctx, callerID, key)
	if courier.IsNoData(err) {
		return model.ResponseSnapshot{}, false, nil
	}
	if err != nil {
		return model.ResponseSnapshot{}, false, err
	}

	switch claim.State() {
	case model.ClaimInFlight:
		return model.ResponseSnapshot{}, false, nil
	case model.ClaimCorrupt:
		return model.ResponseSnapshot{}, false, courier.NewErrorWithCause(courier.ErrCodeInvariantViolation,
			"claim row is partially written", model.ErrClaimCorrupt)
	}

	snapshot, err := claim.Snapshot()
	if err != nil {
		return model.ResponseSnapshot{}, false, courier.NewErrorWithCause(courier.ErrCodeInvariantViolation,
			"stored response cannot be decoded", err)
	}
	return snapshot, true, nil
}

// TryInsert creates an in-flight claim unless one exists.
func (r *ClaimRepository) TryInsert(ctx context.Context, exec courier.Executor, callerID string, key model.IdempotencyKey) (bool, error) {
	query := r.dialect.InsertIfAbsent(r.tableName(), "caller_id", "idempotency_key", "created_at")

	res, err := exec.ExecContext(ctx, query, callerID, key.String(), time.Now().UTC())
	if err != nil {
		return false, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to insert claim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to read claim insert result", err)
	}

	return n == 1, nil
}

// Put stores the response on the claim. An in-flight row is completed; without a
// row a completed one is inserted. A completed row fails the insert on the
// primary key and is reported as a database error.
func (r *ClaimRepository) Put(ctx context.Context, exec courier.Executor, callerID string, key model.IdempotencyKey, snapshot model.ResponseSnapshot) error {
	headers, err := model.EncodeHeaders(snapshot.Headers)
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeValidation, "failed to encode response headers", err)
	}
	body := snapshot.Body
	if body == nil {
		body = []byte{}
	}

	update := r.dialect.Rebind("UPDATE " + r.tableName() +
		" SET response_status_code = ?, response_headers = ?, response_body = ?" +
		" WHERE caller_id = ? AND idempotency_key = ? AND response_status_code IS NULL")

	res, err := exec.ExecContext(ctx, update, snapshot.StatusCode, headers, body, callerID, key.String())
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to save response", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to read response update result", err)
	}
	if n == 1 {
		return nil
	}

	insert := r.dialect.Rebind("INSERT INTO " + r.tableName() +
		" (caller_id, idempotency_key, created_at, response_status_code, response_headers, response_body)" +
		" VALUES (?, ?, ?, ?, ?, ?)")

	if _, err := exec.ExecContext(ctx, insert, callerID, key.String(), time.Now().UTC(), snapshot.StatusCode, headers, body); err != nil {
		return courier.NewErrorWithCause(courier.ErrCodeDatabase, "failed to save response", err)
	}
	return nil
}
