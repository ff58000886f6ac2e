package courier

import (
	"context"

	"github.com/coregx/courier/model"
)

// Transport delivers one email. Implementations live in the transport package;
// any type with this method works, which keeps the library free of mail protocols.
//
// A returned error means this recipient did not get the message. Callers log it
// and move on; Transport implementations decide themselves whether to retry
// internally.
type Transport interface {
	Send(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error {
	return f(ctx, recipient, subject, htmlBody, textBody)
}
