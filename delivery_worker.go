package courier

import (
	"context"
	"time"

	"github.com/coregx/courier/model"
	"github.com/coregx/courier/retry"
)

// ExecutionOutcome is the result of one worker iteration.
type ExecutionOutcome int

const (
	// OutcomeTaskCompleted means one queue item was delivered, failed or skipped and removed.
	OutcomeTaskCompleted ExecutionOutcome = iota

	// OutcomeEmptyQueue means no unlocked item was available.
	OutcomeEmptyQueue
)

func (o ExecutionOutcome) String() string {
	if o == OutcomeEmptyQueue {
		return "empty_queue"
	}
	return "task_completed"
}

// DeliveryWorker drains the delivery queue, one recipient per transaction.
//
// Each queued recipient gets at most one delivery attempt. Invalid addresses and
// transport failures are logged and the item is removed all the same, so a single
// bad recipient never blocks the queue. Only storage failures leave an item in
// place: its transaction is rolled back and the item is picked up again.
//
// Run several workers (in one or many processes) against the same queue to
// deliver in parallel.
type DeliveryWorker struct {
	queue     *DeliveryQueue
	actions   PublishActionRepository
	transport Transport
	logger    Logger
	policy    retry.Policy
	observer  DeliveryObserver
	name      string
}

// NewDeliveryWorker creates a new delivery worker with the provided options.
//
// Required options:
//   - WithQueue: the delivery queue
//   - WithPublishActions: issue content repository
//   - WithTransport: email transport
//   - WithLogger: logger instance
//
// Optional options:
//   - WithPolicy: loop pauses (default: retry.DefaultPolicy())
//   - WithObserver: delivery events (default: NoOpObserver)
//   - WithName: worker name (default: "delivery-worker")
func NewDeliveryWorker(opts ...Option) (*DeliveryWorker, error) {
	w := &DeliveryWorker{
		policy:   retry.DefaultPolicy(),
		observer: &NoOpObserver{},
		name:     "delivery-worker",
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if w.queue == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryQueue is required (use WithQueue)")
	}
	if w.actions == nil {
		return nil, NewError(ErrCodeConfiguration, "PublishActionRepository is required (use WithPublishActions)")
	}
	if w.transport == nil {
		return nil, NewError(ErrCodeConfiguration, "Transport is required (use WithTransport)")
	}
	if w.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithLogger)")
	}

	return w, nil
}

// String returns the worker name.
func (w *DeliveryWorker) String() string {
	return w.name
}

// TryExecuteTask handles at most one queue item.
//
// The item is removed in the transaction that locked it, whether it was delivered,
// rejected by the transport or skipped as invalid. Any other error rolls the
// transaction back and is returned; the item then becomes available again. A
// transport that declines the send without attempting it (ErrTransportUnavailable)
// counts as such an error.
func (w *DeliveryWorker) TryExecuteTask(ctx context.Context) (ExecutionOutcome, error) {
	lease, err := w.queue.DequeueOne(ctx)
	if IsNoData(err) {
		return OutcomeEmptyQueue, nil
	}
	if err != nil {
		return OutcomeTaskCompleted, err
	}

	// The item is held; finish it even if ctx ends now.
	ctx = context.WithoutCancel(ctx)

	item := lease.Item()
	if err := w.deliver(ctx, item); err != nil {
		if abandonErr := lease.Abandon(); abandonErr != nil {
			w.logger.Errorf("Failed to release queue item (publish_action_id=%s): %v", item.PublishActionID, abandonErr)
		}
		return OutcomeTaskCompleted, err
	}

	if err := lease.Complete(ctx); err != nil {
		return OutcomeTaskCompleted, err
	}
	return OutcomeTaskCompleted, nil
}

// deliver attempts the item. A nil return means the item is done with, even if
// nobody received anything. An unattempted send is returned as an error.
func (w *DeliveryWorker) deliver(ctx context.Context, item model.QueueItem) error {
	recipient, err := model.ParseSubscriberEmail(item.RecipientAddress)
	if err != nil {
		logSkip(w.logger, true, err,
			"Skipping a confirmed subscriber, their stored contact details are invalid (publish_action_id=%s)",
			item.PublishActionID)
		w.notify(w.observer.InvalidRecipient(ctx, item, err))
		return nil
	}

	action, err := w.actions.Load(ctx, item.PublishActionID)
	if IsNoData(err) {
		return NewErrorWithCause(ErrCodeInvariantViolation, "queued item references a missing publish action", err)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	if err := w.transport.Send(ctx, recipient, action.Title, action.HTMLContent, action.TextContent); err != nil {
		if IsTransportUnavailable(err) {
			return err
		}
		elapsed := time.Since(start)
		deliveryErr := NewErrorWithCause(ErrCodeDelivery, "failed to deliver newsletter issue", err)
		logSkip(w.logger, false, deliveryErr,
			"Failed to deliver issue to a confirmed subscriber, skipping (publish_action_id=%s, recipient=%s)",
			item.PublishActionID, recipient)
		w.notify(w.observer.DeliveryFailed(ctx, item, deliveryErr, elapsed))
		return nil
	}

	w.notify(w.observer.Delivered(ctx, item, time.Since(start)))
	return nil
}

func (w *DeliveryWorker) notify(err error) {
	if err != nil {
		w.logger.Warnf("Delivery observer failed: %v", err)
	}
}

// Run drains the queue until ctx is canceled, then returns ctx.Err().
//
// After an empty queue the worker sleeps for the policy's idle wait, after a
// failed iteration for its error backoff; otherwise it loops immediately. Sleeps
// end early on cancellation, and so does a dequeue still waiting for a row. An
// iteration that already holds a queue item is not interrupted: it runs to
// completion on a context detached from ctx.
//
// This method blocks and should typically be run in a goroutine or a supervisor.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	w.logger.Infof("%s started (%s)", w.name, w.policy)

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Infof("%s stopped", w.name)
			return err
		}

		outcome, err := w.TryExecuteTask(ctx)

		var pause time.Duration
		switch {
		case err != nil && ctx.Err() != nil:
			w.logger.Infof("%s stopped", w.name)
			return ctx.Err()
		case err != nil:
			w.logger.Errorf("%s iteration failed: error.message=%q error.cause_chain=%q",
				w.name, err.Error(), formatCause(err))
			w.notify(w.observer.IterationFailed(ctx, err))
			pause = w.policy.ErrorBackoff
		case outcome == OutcomeEmptyQueue:
			w.notify(w.observer.Idle(ctx))
			pause = w.policy.IdleWait
		}

		if pause == 0 {
			continue
		}
		if err := retry.Sleep(ctx, pause); err != nil {
			w.logger.Infof("%s stopped", w.name)
			return err
		}
	}
}

// Serve runs the worker under a supervisor such as suture.
func (w *DeliveryWorker) Serve(ctx context.Context) error {
	return w.Run(ctx)
}

// Drain runs iterations until the queue is empty and returns the number of items
// handled. It stops at the first failed iteration.
func (w *DeliveryWorker) Drain(ctx context.Context) (int, error) {
	handled := 0
	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		outcome, err := w.TryExecuteTask(ctx)
		if err != nil {
			return handled, err
		}
		if outcome == OutcomeEmptyQueue {
			return handled, nil
		}
		handled++
	}
}
