// Package model contains the domain values and persisted rows of the courier system:
// idempotency keys, subscriber addresses, response snapshots, claims, publish actions,
// delivery queue items and subscribers.
package model

// tablePrefix is the default prefix of every courier table.
const tablePrefix = "courier_"
