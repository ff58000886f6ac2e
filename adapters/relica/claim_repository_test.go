package relica

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

func TestClaimRepository_TryInsert(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")
	key := mustKey(t, "abc-123")

	inserted, err := repo.TryInsert(ctx, db, "U1", key)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.TryInsert(ctx, db, "U1", key)
	require.NoError(t, err)
	assert.False(t, inserted, "second insert for the same pair must not create a row")

	// Different caller, same key: independent claim.
	inserted, err = repo.TryInsert(ctx, db, "U2", key)
	require.NoError(t, err)
	assert.True(t, inserted)

	claim, err := repo.Load(ctx, "U1", key)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimInFlight, claim.State())
	assert.Equal(t, "U1", claim.CallerID)
	assert.Equal(t, "abc-123", claim.IdempotencyKey)
	assert.False(t, claim.CreatedAt.IsZero())
}

func TestClaimRepository_LoadMissing(t *testing.T) {
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")

	_, err := repo.Load(context.Background(), "U1", mustKey(t, "missing"))
	assert.True(t, courier.IsNoData(err))

	_, ok, err := repo.Get(context.Background(), "U1", mustKey(t, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimRepository_PutInsideClaimTransaction(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")
	key := mustKey(t, "abc-123")

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	inserted, err := repo.TryInsert(ctx, tx, "U1", key)
	require.NoError(t, err)
	require.True(t, inserted)

	stored := model.SeeOther("/admin/newsletter")
	require.NoError(t, repo.Put(ctx, tx, "U1", key, stored))

	// Not visible before commit.
	_, ok, err := repo.Get(ctx, "U1", key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.Commit())

	got, ok, err := repo.Get(ctx, "U1", key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, http.StatusSeeOther, got.StatusCode)
	location, found := got.Header("Location")
	assert.True(t, found)
	assert.Equal(t, "/admin/newsletter", string(location))
	assert.Equal(t, stored, got)
}

func TestClaimRepository_InFlightIsNotASnapshot(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")
	key := mustKey(t, "in-flight")

	_, err := repo.TryInsert(ctx, db, "U1", key)
	require.NoError(t, err)

	_, ok, err := repo.Get(ctx, "U1", key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimRepository_PutPreservesBytesAndOrder(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")
	key := mustKey(t, "bytes")

	stored := model.ResponseSnapshot{
		StatusCode: http.StatusOK,
		Headers: []model.HeaderPair{
			{Name: "X-Second", Value: []byte{0xff, 0xfe}},
			{Name: "X-First", Value: []byte("a")},
			{Name: "X-Second", Value: []byte("again")},
		},
		Body: []byte{0x00, 0x01, 0x02},
	}

	// Standalone: no claim row yet, Put inserts a completed one.
	require.NoError(t, repo.Put(ctx, db, "U1", key, stored))

	got, ok, err := repo.Get(ctx, "U1", key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestClaimRepository_PutTwiceFails(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")
	key := mustKey(t, "twice")

	require.NoError(t, repo.Put(ctx, db, "U1", key, model.SeeOther("/first")))

	err := repo.Put(ctx, db, "U1", key, model.SeeOther("/second"))
	assert.True(t, courier.HasCode(err, courier.ErrCodeDatabase))

	got, ok, err := repo.Get(ctx, "U1", key)
	require.NoError(t, err)
	require.True(t, ok)
	location, _ := got.Header("Location")
	assert.Equal(t, "/first", string(location))
}

func TestClaimRepository_CorruptRow(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewClaimRepository(db, "sqlite3")
	key := mustKey(t, "corrupt")

	_, err := db.ExecContext(ctx,
		"INSERT INTO courier_claims (caller_id, idempotency_key, created_at, response_status_code) VALUES (?, ?, CURRENT_TIMESTAMP, ?)",
		"U1", key.String(), 303)
	require.NoError(t, err)

	_, _, err = repo.Get(ctx, "U1", key)
	assert.True(t, courier.IsInvariantViolation(err))
}
