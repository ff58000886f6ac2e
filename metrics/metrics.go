// Package metrics exports courier delivery events as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coregx/courier/model"
)

// Outcome label values.
const (
	OutcomeDelivered        = "delivered"
	OutcomeFailed           = "failed"
	OutcomeInvalidRecipient = "invalid_recipient"
	OutcomeIdle             = "idle"
	OutcomeError            = "error"
)

// Observer implements courier.DeliveryObserver with Prometheus collectors.
type Observer struct {
	deliveries *prometheus.CounterVec
	iterations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewObserver registers the delivery collectors with reg.
// Registering twice with the same registry panics, like promauto.
func NewObserver(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)

	return &Observer{
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_deliveries_total",
				Help: "Queue items handled by delivery workers, by outcome",
			},
			[]string{"outcome"}, // "delivered", "failed", "invalid_recipient"
		),
		iterations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courier_worker_iterations_total",
				Help: "Delivery worker iterations that did not handle an item, by outcome",
			},
			[]string{"outcome"}, // "idle", "error"
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courier_delivery_duration_seconds",
				Help:    "Duration of transport sends in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"}, // "delivered", "failed"
		),
	}
}

// Delivered records a successful send.
func (o *Observer) Delivered(_ context.Context, _ model.QueueItem, elapsed time.Duration) error {
	o.deliveries.WithLabelValues(OutcomeDelivered).Inc()
	o.duration.WithLabelValues(OutcomeDelivered).Observe(elapsed.Seconds())
	return nil
}

// DeliveryFailed records a send the transport rejected.
func (o *Observer) DeliveryFailed(_ context.Context, _ model.QueueItem, _ error, elapsed time.Duration) error {
	o.deliveries.WithLabelValues(OutcomeFailed).Inc()
	o.duration.WithLabelValues(OutcomeFailed).Observe(elapsed.Seconds())
	return nil
}

// InvalidRecipient records a skipped recipient.
func (o *Observer) InvalidRecipient(_ context.Context, _ model.QueueItem, _ error) error {
	o.deliveries.WithLabelValues(OutcomeInvalidRecipient).Inc()
	return nil
}

// Idle records an empty queue.
func (o *Observer) Idle(_ context.Context) error {
	o.iterations.WithLabelValues(OutcomeIdle).Inc()
	return nil
}

// IterationFailed records an iteration rolled back on error.
func (o *Observer) IterationFailed(_ context.Context, _ error) error {
	o.iterations.WithLabelValues(OutcomeError).Inc()
	return nil
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
