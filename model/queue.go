package model

// QueueItem is one (publish action, recipient) pair awaiting delivery.
//
// Queue items follow this lifecycle:
//  1. Created when a publish action fans out to its confirmed recipients
//  2. Claimed by a worker transaction (row locked, invisible to other workers)
//  3. Deleted by that same transaction once delivery was attempted or skipped
//
// If the claiming transaction aborts, the lock is released and the item becomes
// available again. The pair itself is the row identity.
type QueueItem struct {
	PublishActionID  string `json:"publishActionID" db:"publish_action_id"`
	RecipientAddress string `json:"recipientAddress" db:"recipient_address"`
}

// TableName returns the database table name for QueueItem.
func (q QueueItem) TableName() string {
	return tablePrefix + "delivery_queue"
}

// NewQueueItems fans a publish action out to its recipients, one item per
// distinct address, keeping first-seen order.
func NewQueueItems(publishActionID string, recipients []string) []QueueItem {
	seen := make(map[string]struct{}, len(recipients))
	items := make([]QueueItem, 0, len(recipients))
	for _, r := range recipients {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		items = append(items, QueueItem{PublishActionID: publishActionID, RecipientAddress: r})
	}
	return items
}
