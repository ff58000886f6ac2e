package model

import (
	"database/sql"
	"errors"
	"time"
)

// ClaimState is the lifecycle position of a claim row.
type ClaimState int

const (
	// ClaimInFlight means the row exists but no response has been stored yet.
	ClaimInFlight ClaimState = iota

	// ClaimCompleted means the response fields are populated and replayable.
	ClaimCompleted

	// ClaimCorrupt means some but not all response fields are populated.
	ClaimCorrupt
)

func (s ClaimState) String() string {
	switch s {
	case ClaimInFlight:
		return "in_flight"
	case ClaimCompleted:
		return "completed"
	default:
		return "corrupt"
	}
}

// ErrClaimNotCompleted is returned by Claim.Snapshot for rows without a stored response.
var ErrClaimNotCompleted = errors.New("claim has no stored response")

// ErrClaimCorrupt is returned by Claim.Snapshot for partially populated rows.
var ErrClaimCorrupt = errors.New("claim has a partially stored response")

// Claim is the row asserting that a (caller, idempotency key) pair has started
// or finished exactly one operation.
//
// The status code and header list decide the state: both NULL is in flight, both
// set is completed. The body is not consulted because drivers may scan an empty
// body and a NULL body to the same nil slice.
type Claim struct {
	CallerID           string        `json:"callerID" db:"caller_id"`
	IdempotencyKey     string        `json:"idempotencyKey" db:"idempotency_key"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	ResponseStatusCode sql.NullInt64 `json:"responseStatusCode" db:"response_status_code"`
	ResponseHeaders    []byte        `json:"responseHeaders" db:"response_headers"`
	ResponseBody       []byte        `json:"responseBody" db:"response_body"`
}

// TableName returns the database table name for Claim.
func (c Claim) TableName() string {
	return tablePrefix + "claims"
}

// State classifies the row.
func (c Claim) State() ClaimState {
	hasStatus := c.ResponseStatusCode.Valid
	hasHeaders := len(c.ResponseHeaders) > 0
	switch {
	case hasStatus && hasHeaders:
		return ClaimCompleted
	case !hasStatus && !hasHeaders:
		return ClaimInFlight
	default:
		return ClaimCorrupt
	}
}

// Snapshot rebuilds the stored response.
func (c Claim) Snapshot() (ResponseSnapshot, error) {
	switch c.State() {
	case ClaimInFlight:
		return ResponseSnapshot{}, ErrClaimNotCompleted
	case ClaimCorrupt:
		return ResponseSnapshot{}, ErrClaimCorrupt
	}

	headers, err := DecodeHeaders(c.ResponseHeaders)
	if err != nil {
		return ResponseSnapshot{}, err
	}
	body := c.ResponseBody
	if body == nil {
		body = []byte{}
	}
	return ResponseSnapshot{
		StatusCode: int(c.ResponseStatusCode.Int64),
		Headers:    headers,
		Body:       body,
	}, nil
}
