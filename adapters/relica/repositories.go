package relica

import (
	"database/sql"

	"github.com/coregx/courier"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Claim         courier.ClaimRepository
	Queue         courier.QueueRepository
	PublishAction courier.PublishActionRepository
	Subscriber    courier.SubscriberRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to PostgreSQL, MySQL, or SQLite.
// The driverName should be "postgres", "mysql", or "sqlite3"; any other name panics.
// The table prefix defaults to "courier_".
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, courier.DefaultTablePrefix)
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Claim:         NewClaimRepositoryWithPrefix(db, driverName, prefix),
		Queue:         NewQueueRepositoryWithPrefix(db, driverName, prefix),
		PublishAction: NewPublishActionRepositoryWithPrefix(db, driverName, prefix),
		Subscriber:    NewSubscriberRepositoryWithPrefix(db, driverName, prefix),
	}
}
