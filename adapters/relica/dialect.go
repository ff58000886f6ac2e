package relica

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect holds the SQL differences between the supported drivers for the
// statements that run on a caller's transaction instead of through Relica.
type Dialect struct {
	name string
}

// NewDialect returns the dialect of a database/sql driver name:
// "postgres" (also "pgx"), "mysql" or "sqlite3" (also "sqlite").
func NewDialect(driverName string) (Dialect, error) {
	switch driverName {
	case "postgres", "pgx":
		return Dialect{name: "postgres"}, nil
	case "mysql":
		return Dialect{name: "mysql"}, nil
	case "sqlite3", "sqlite":
		return Dialect{name: "sqlite3"}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver %q", driverName)
	}
}

func mustDialect(driverName string) Dialect {
	d, err := NewDialect(driverName)
	if err != nil {
		panic("relica: " + err.Error())
	}
	return d
}

// Name returns the canonical driver name, as used by courier.Schema.
func (d Dialect) Name() string {
	return d.name
}

// Rebind rewrites ? placeholders into the driver's bind syntax.
func (d Dialect) Rebind(query string) string {
	if d.name != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertIfAbsent builds an INSERT that silently does nothing when the row's key
// already exists. RowsAffected reports whether a row was created.
func (d Dialect) InsertIfAbsent(table string, columns ...string) string {
	values := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	cols := strings.Join(columns, ", ")

	var q string
	if d.name == "mysql" {
		q = fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, cols, values)
	} else {
		q = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", table, cols, values)
	}
	return d.Rebind(q)
}

// LockSkipLocked returns the clause that locks selected rows and skips rows
// locked by other transactions. SQLite has no row locks: a writing transaction
// there already excludes every other writer, so the clause is empty.
func (d Dialect) LockSkipLocked() string {
	if d.name == "sqlite3" {
		return ""
	}
	return " FOR UPDATE SKIP LOCKED"
}
