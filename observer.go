package courier

import (
	"context"
	"time"

	"github.com/coregx/courier/model"
)

// DeliveryObserver defines an optional interface for reacting to delivery worker
// events (metrics, alerts, audit logs).
//
// Callbacks run on the worker goroutine; keep them fast. An error returned by a
// callback is logged and otherwise ignored.
type DeliveryObserver interface {
	// Delivered is called after the transport accepted the issue for a recipient.
	Delivered(ctx context.Context, item model.QueueItem, elapsed time.Duration) error

	// DeliveryFailed is called when the transport rejected the issue. The item is
	// removed from the queue anyway.
	DeliveryFailed(ctx context.Context, item model.QueueItem, err error, elapsed time.Duration) error

	// InvalidRecipient is called when a queued address fails validation and is
	// skipped without a transport call.
	InvalidRecipient(ctx context.Context, item model.QueueItem, err error) error

	// Idle is called when an iteration found the queue empty.
	Idle(ctx context.Context) error

	// IterationFailed is called when an iteration was abandoned with an error.
	IterationFailed(ctx context.Context, err error) error
}

// NoOpObserver is a no-op implementation of DeliveryObserver.
type NoOpObserver struct{}

// Delivered does nothing.
func (n *NoOpObserver) Delivered(_ context.Context, _ model.QueueItem, _ time.Duration) error {
	return nil
}

// DeliveryFailed does nothing.
func (n *NoOpObserver) DeliveryFailed(_ context.Context, _ model.QueueItem, _ error, _ time.Duration) error {
	return nil
}

// InvalidRecipient does nothing.
func (n *NoOpObserver) InvalidRecipient(_ context.Context, _ model.QueueItem, _ error) error {
	return nil
}

// Idle does nothing.
func (n *NoOpObserver) Idle(_ context.Context) error {
	return nil
}

// IterationFailed does nothing.
func (n *NoOpObserver) IterationFailed(_ context.Context, _ error) error {
	return nil
}

// LoggingObserver logs delivery events at debug level.
type LoggingObserver struct {
	logger Logger
}

// NewLoggingObserver creates a new LoggingObserver.
func NewLoggingObserver(logger Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// Delivered logs a successful delivery.
func (o *LoggingObserver) Delivered(_ context.Context, item model.QueueItem, elapsed time.Duration) error {
	o.logger.Debugf("Delivered: publish_action_id=%s, recipient=%s, elapsed=%v",
		item.PublishActionID, item.RecipientAddress, elapsed)
	return nil
}

// DeliveryFailed logs a rejected delivery.
func (o *LoggingObserver) DeliveryFailed(_ context.Context, item model.QueueItem, err error, elapsed time.Duration) error {
	o.logger.Debugf("Delivery failed: publish_action_id=%s, recipient=%s, elapsed=%v, error=%v",
		item.PublishActionID, item.RecipientAddress, elapsed, err)
	return nil
}

// InvalidRecipient logs a skipped recipient.
func (o *LoggingObserver) InvalidRecipient(_ context.Context, item model.QueueItem, err error) error {
	o.logger.Debugf("Invalid recipient skipped: publish_action_id=%s, recipient=%q, error=%v",
		item.PublishActionID, item.RecipientAddress, err)
	return nil
}

// Idle logs an empty queue.
func (o *LoggingObserver) Idle(_ context.Context) error {
	o.logger.Debugf("Delivery queue empty")
	return nil
}

// IterationFailed logs an abandoned iteration.
func (o *LoggingObserver) IterationFailed(_ context.Context, err error) error {
	o.logger.Debugf("Worker iteration failed: %v", err)
	return nil
}
