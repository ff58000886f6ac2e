package courier

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/coregx/courier/model"
)

// SubscriptionManager handles the subscriber lifecycle: sign-up with a
// confirmation email, confirmation, and listing the recipients of an issue.
//
// Thread safety: Safe for concurrent use.
type SubscriptionManager struct {
	subscriberRepo SubscriberRepository
	transport      Transport
	baseURL        string
	logger         Logger
}

// SubscriptionManagerOption is a function that configures a SubscriptionManager.
type SubscriptionManagerOption func(*SubscriptionManager) error

// NewSubscriptionManager creates a new SubscriptionManager with the provided options.
//
// Required options:
//   - WithSubscriptionManagerRepository: subscriber repository
//   - WithConfirmationEmails: transport and public base URL for confirmation links
//   - WithSubscriptionManagerLogger: logger instance
func NewSubscriptionManager(opts ...SubscriptionManagerOption) (*SubscriptionManager, error) {
	sm := &SubscriptionManager{}

	for _, opt := range opts {
		if err := opt(sm); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply subscription manager option", err)
		}
	}

	if sm.subscriberRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriberRepository is required")
	}
	if sm.transport == nil {
		return nil, NewError(ErrCodeConfiguration, "Transport is required (use WithConfirmationEmails)")
	}
	if sm.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	return sm, nil
}

// WithSubscriptionManagerRepository sets the subscriber repository.
//
// This is a required option for NewSubscriptionManager.
func WithSubscriptionManagerRepository(subscriberRepo SubscriberRepository) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if subscriberRepo == nil {
			return fmt.Errorf("subscriberRepo cannot be nil")
		}
		sm.subscriberRepo = subscriberRepo
		return nil
	}
}

// WithConfirmationEmails sets the transport confirmation emails are sent through
// and the public base URL the confirmation link points to.
//
// This is a required option for NewSubscriptionManager.
func WithConfirmationEmails(transport Transport, baseURL string) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if transport == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		if _, err := url.ParseRequestURI(baseURL); err != nil {
			return fmt.Errorf("invalid base url %q: %w", baseURL, err)
		}
		sm.transport = transport
		sm.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithSubscriptionManagerLogger sets the logger instance.
//
// This is a required option for NewSubscriptionManager.
func WithSubscriptionManagerLogger(logger Logger) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		sm.logger = logger
		return nil
	}
}

// SubscribeRequest is the submitted sign-up form.
type SubscribeRequest struct {
	Email string
	Name  string
}

// Subscribe registers a pending subscriber and emails them a confirmation link.
//
// Signing up again with a pending address re-sends the link with the same token.
// Signing up again with a confirmed address changes nothing and sends nothing.
//
// Returns ErrCodeValidation for a malformed name or address.
func (sm *SubscriptionManager) Subscribe(ctx context.Context, req SubscribeRequest) (model.Subscriber, error) {
	name, err := model.ParseSubscriberName(req.Name)
	if err != nil {
		return model.Subscriber{}, NewErrorWithCause(ErrCodeValidation, "invalid subscriber name", err)
	}
	email, err := model.ParseSubscriberEmail(req.Email)
	if err != nil {
		return model.Subscriber{}, NewErrorWithCause(ErrCodeValidation, "invalid subscriber email", err)
	}

	subscriber, err := sm.subscriberRepo.FindByEmail(ctx, email.String())
	switch {
	case err == nil && subscriber.IsConfirmed():
		sm.logger.Infof("Subscriber %d is already confirmed", subscriber.ID)
		return subscriber, nil
	case err == nil:
		sm.logger.Infof("Re-sending confirmation to pending subscriber %d", subscriber.ID)
	case IsNoData(err):
		subscriber, err = sm.subscriberRepo.Save(ctx, model.NewSubscriber(email, name))
		if err != nil {
			return model.Subscriber{}, err
		}
		sm.logger.Infof("Subscriber created: id=%d", subscriber.ID)
	default:
		return model.Subscriber{}, err
	}

	if err := sm.sendConfirmation(ctx, email, subscriber.ConfirmationToken); err != nil {
		return model.Subscriber{}, err
	}
	return subscriber, nil
}

// ConfirmationLink returns the link a subscriber clicks to confirm.
func (sm *SubscriptionManager) ConfirmationLink(token string) string {
	return sm.baseURL + "/subscriptions/confirm?subscription_token=" + url.QueryEscape(token)
}

func (sm *SubscriptionManager) sendConfirmation(ctx context.Context, email model.SubscriberEmail, token string) error {
	link := sm.ConfirmationLink(token)
	html := fmt.Sprintf(`Welcome to our newsletter!<br />Click <a href="%s">here</a> to confirm your subscription.`, link)
	text := fmt.Sprintf("Welcome to our newsletter!\nVisit %s to confirm your subscription.", link)

	if err := sm.transport.Send(ctx, email, "Welcome!", html, text); err != nil {
		return NewErrorWithCause(ErrCodeDelivery, "failed to send confirmation email", err)
	}
	return nil
}

// Confirm marks the subscriber the token was issued to as confirmed.
// Confirming twice is a no-op. Returns ErrNoData for an unknown token.
func (sm *SubscriptionManager) Confirm(ctx context.Context, token string) error {
	if token == "" {
		return NewError(ErrCodeValidation, "confirmation token is required")
	}

	subscriber, err := sm.subscriberRepo.FindByConfirmationToken(ctx, token)
	if err != nil {
		return err
	}
	if subscriber.IsConfirmed() {
		return nil
	}

	subscriber.Confirm()
	if _, err := sm.subscriberRepo.Save(ctx, subscriber); err != nil {
		return err
	}

	sm.logger.Infof("Subscriber confirmed: id=%d", subscriber.ID)
	return nil
}

// ListConfirmedRecipients returns the stored addresses of confirmed subscribers.
// Each address must be parsed again before use; a stored address can be invalid.
func (sm *SubscriptionManager) ListConfirmedRecipients(ctx context.Context) ([]string, error) {
	return sm.subscriberRepo.ListConfirmedEmails(ctx)
}
