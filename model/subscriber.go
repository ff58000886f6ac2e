package model

import (
	"time"

	"github.com/google/uuid"
)

// SubscriberStatus is the confirmation state of a subscriber.
type SubscriberStatus string

const (
	// SubscriberPending is a subscriber who has not clicked the confirmation link yet.
	SubscriberPending SubscriberStatus = "pending_confirmation"

	// SubscriberConfirmed is a subscriber who receives newsletter issues.
	SubscriberConfirmed SubscriberStatus = "confirmed"
)

// Subscriber represents a newsletter recipient.
//
// Only confirmed subscribers receive issues. The stored email is kept as raw text:
// it was valid when stored, but every reader parses it again before sending.
type Subscriber struct {
	ID                int64            `json:"id" db:"id"`
	Email             string           `json:"email" db:"email"`
	Name              string           `json:"name" db:"name"`
	Status            SubscriberStatus `json:"status" db:"status"`
	ConfirmationToken string           `json:"-" db:"confirmation_token"`
	SubscribedAt      time.Time        `json:"subscribedAt" db:"subscribed_at"`
}

// TableName returns the database table name for Subscriber.
func (t Subscriber) TableName() string {
	return tablePrefix + "subscribers"
}

// NewSubscriber creates a pending subscriber with a fresh confirmation token.
func NewSubscriber(email SubscriberEmail, name SubscriberName) Subscriber {
	return Subscriber{
		ID:                0,
		Email:             email.String(),
		Name:              name.String(),
		Status:            SubscriberPending,
		ConfirmationToken: NewConfirmationToken(),
		SubscribedAt:      time.Now().UTC(),
	}
}

// NewConfirmationToken returns an unguessable token for confirmation links.
func NewConfirmationToken() string {
	return uuid.NewString()
}

// IsConfirmed reports whether the subscriber receives issues.
func (t *Subscriber) IsConfirmed() bool {
	return t.Status == SubscriberConfirmed
}

// Confirm marks the subscriber as confirmed.
func (t *Subscriber) Confirm() {
	t.Status = SubscriberConfirmed
}
