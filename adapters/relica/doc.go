// Package relica provides repository implementations using Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies.
//
// Reads and standalone writes go through Relica. Statements that must run inside a
// claim or lease transaction (claim insert, response store, fan-out, dequeue, delete)
// take a courier.Executor and are written per Dialect:
//
//   - PostgreSQL: $n placeholders, ON CONFLICT DO NOTHING, FOR UPDATE SKIP LOCKED
//   - MySQL 8+: INSERT IGNORE, FOR UPDATE SKIP LOCKED
//   - SQLite: ON CONFLICT DO NOTHING, no row locks; open the database with
//     _txlock=immediate so a dequeuing transaction excludes other writers
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/courier"
//	    "github.com/coregx/courier/adapters/relica"
//	    _ "github.com/lib/pq"
//	)
//
//	db, err := sql.Open("postgres", dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	repos := relica.NewRepositories(db, "postgres")
//	queue, err := courier.NewDeliveryQueue(db, repos.Queue)
package relica
