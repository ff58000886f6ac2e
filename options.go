package courier

import (
	"fmt"

	"github.com/coregx/courier/retry"
)

// Option is a function that configures a DeliveryWorker.
//
// Example:
//
//	worker, err := courier.NewDeliveryWorker(
//	    courier.WithQueue(queue),
//	    courier.WithPublishActions(repos.PublishAction),
//	    courier.WithTransport(emailClient),
//	    courier.WithLogger(logger),
//	    courier.WithPolicy(retry.DefaultPolicy()), // optional
//	)
type Option func(*DeliveryWorker) error

// WithQueue sets the delivery queue the worker drains.
//
// This is a required option for NewDeliveryWorker.
func WithQueue(queue *DeliveryQueue) Option {
	return func(w *DeliveryWorker) error {
		if queue == nil {
			return fmt.Errorf("queue cannot be nil")
		}
		w.queue = queue
		return nil
	}
}

// WithPublishActions sets the repository issue content is loaded from.
//
// This is a required option for NewDeliveryWorker.
func WithPublishActions(actions PublishActionRepository) Option {
	return func(w *DeliveryWorker) error {
		if actions == nil {
			return fmt.Errorf("publish action repository cannot be nil")
		}
		w.actions = actions
		return nil
	}
}

// WithTransport sets the email transport.
//
// This is a required option for NewDeliveryWorker.
func WithTransport(transport Transport) Option {
	return func(w *DeliveryWorker) error {
		if transport == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		w.transport = transport
		return nil
	}
}

// WithLogger sets the logger instance for the worker.
// Logger is required and must not be nil.
//
// Use NoopLogger for silent operation or implement Logger interface
// to integrate with your logging system (zerolog, zap, etc.).
func WithLogger(logger Logger) Option {
	return func(w *DeliveryWorker) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		w.logger = logger
		return nil
	}
}

// WithPolicy sets the loop pauses. Optional, retry.DefaultPolicy() otherwise.
func WithPolicy(policy retry.Policy) Option {
	return func(w *DeliveryWorker) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		w.policy = policy
		return nil
	}
}

// WithObserver sets an optional delivery observer.
// If not provided, NoOpObserver is used.
//
// Use this to export metrics or feed alerting.
func WithObserver(observer DeliveryObserver) Option {
	return func(w *DeliveryWorker) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		w.observer = observer
		return nil
	}
}

// WithName sets the worker name used in logs and by supervisors.
func WithName(name string) Option {
	return func(w *DeliveryWorker) error {
		if name == "" {
			return fmt.Errorf("name cannot be empty")
		}
		w.name = name
		return nil
	}
}
