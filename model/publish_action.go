package model

import (
	"time"

	"github.com/google/uuid"
)

// PublishAction is the content of one newsletter issue. Queue items reference it
// by ID so the content is stored once, not per recipient.
type PublishAction struct {
	// ID is a UUID. Title doubles as the email subject.
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	TextContent string    `json:"textContent" db:"text_content"`
	HTMLContent string    `json:"htmlContent" db:"html_content"`
	PublishedAt time.Time `json:"publishedAt" db:"published_at"`
}

// TableName returns the database table name for PublishAction.
func (p PublishAction) TableName() string {
	return tablePrefix + "publish_actions"
}

// NewPublishAction creates a publish action with a fresh random ID.
func NewPublishAction(title, textContent, htmlContent string) PublishAction {
	return PublishAction{
		ID:          uuid.NewString(),
		Title:       title,
		TextContent: textContent,
		HTMLContent: htmlContent,
		PublishedAt: time.Now().UTC(),
	}
}
