package relica

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

// openSQLite returns a migrated file-backed database. Immediate transactions
// make every writer exclusive, which stands in for row locks.
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "courier.db") +
		"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, courier.Migrate(context.Background(), db, "sqlite3", courier.DefaultTablePrefix))
	return db
}

func mustKey(t *testing.T, raw string) model.IdempotencyKey {
	t.Helper()
	key, err := model.ParseIdempotencyKey(raw)
	require.NoError(t, err)
	return key
}
