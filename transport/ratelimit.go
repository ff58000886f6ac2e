package transport

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

type rateLimitedTransport struct {
	next    courier.Transport
	limiter *rate.Limiter
}

// WithRateLimit waits for limiter before every send through next.
// A send whose ctx ends while waiting is not attempted.
func WithRateLimit(next courier.Transport, limiter *rate.Limiter) courier.Transport {
	return &rateLimitedTransport{next: next, limiter: limiter}
}

func (r *rateLimitedTransport) Send(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Send(ctx, recipient, subject, htmlBody, textBody)
}
