package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

// ErrCircuitOpen is returned without calling the wrapped transport while the
// breaker is open, or half-open with its trial requests already in use.
// It wraps courier.ErrTransportUnavailable.
var ErrCircuitOpen = fmt.Errorf("%w: circuit breaker is open", courier.ErrTransportUnavailable)

// BreakerSettings returns breaker settings that open after consecutiveFailures
// failed sends in a row and allow one trial send after openFor.
func BreakerSettings(name string, consecutiveFailures uint32, openFor time.Duration) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
	}
}

type breakerTransport struct {
	next courier.Transport
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// WithCircuitBreaker guards next with a circuit breaker.
//
// Canceled or timed-out contexts do not count as provider failures. If
// settings.IsSuccessful is set it is consulted for every other error.
func WithCircuitBreaker(next courier.Transport, settings gobreaker.Settings) courier.Transport {
	isSuccessful := settings.IsSuccessful
	settings.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		if isSuccessful != nil {
			return isSuccessful(err)
		}
		return false
	}

	return &breakerTransport{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (b *breakerTransport) Send(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, recipient, subject, htmlBody, textBody)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w (%s: %v)", ErrCircuitOpen, b.cb.Name(), err)
	}
	return err
}
