package courier

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/courier/model"
)

// DeliveryMode selects how a publish request reaches recipients.
type DeliveryMode string

const (
	// ModeQueued fans the issue out to the delivery queue inside the claim
	// transaction; workers deliver it afterwards. This is the default.
	ModeQueued DeliveryMode = "queued"

	// ModeDirect sends to every recipient synchronously before responding.
	ModeDirect DeliveryMode = "direct"
)

// DefaultRedirectLocation is where a successful publish redirects to.
const DefaultRedirectLocation = "/admin/newsletter"

// MaxTitleLength is the longest issue title, in characters. It matches the
// narrowest title column of the supported schemas.
const MaxTitleLength = 255

// Publisher publishes newsletter issues to confirmed subscribers, at most once
// per (caller, idempotency key).
type Publisher struct {
	coordinator *Coordinator
	actions     PublishActionRepository
	queue       *DeliveryQueue
	subscribers SubscriberRepository
	transport   Transport
	logger      Logger
	mode        DeliveryMode
	redirect    string
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher) error

// NewPublisher creates a new Publisher with the provided options.
//
// Required options:
//   - WithPublisherCoordinator: idempotency coordinator
//   - WithPublisherRepositories: publish action repository, delivery queue, subscriber repository
//   - WithPublisherLogger: logger instance
//   - WithPublisherTransport: only in ModeDirect
//
// Example:
//
//	publisher, err := courier.NewPublisher(
//	    courier.WithPublisherCoordinator(coordinator),
//	    courier.WithPublisherRepositories(repos.PublishAction, queue, repos.Subscriber),
//	    courier.WithPublisherLogger(logger),
//	)
func NewPublisher(opts ...PublisherOption) (*Publisher, error) {
	p := &Publisher{
		mode:     ModeQueued,
		redirect: DefaultRedirectLocation,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply publisher option", err)
		}
	}

	if p.coordinator == nil {
		return nil, NewError(ErrCodeConfiguration, "Coordinator is required (use WithPublisherCoordinator)")
	}
	if p.actions == nil {
		return nil, NewError(ErrCodeConfiguration, "PublishActionRepository is required (use WithPublisherRepositories)")
	}
	if p.subscribers == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriberRepository is required (use WithPublisherRepositories)")
	}
	if p.mode == ModeQueued && p.queue == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryQueue is required in queued mode (use WithPublisherRepositories)")
	}
	if p.mode == ModeDirect && p.transport == nil {
		return nil, NewError(ErrCodeConfiguration, "Transport is required in direct mode (use WithPublisherTransport)")
	}
	if p.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithPublisherLogger)")
	}

	return p, nil
}

// WithPublisherCoordinator sets the idempotency coordinator.
func WithPublisherCoordinator(coordinator *Coordinator) PublisherOption {
	return func(p *Publisher) error {
		if coordinator == nil {
			return fmt.Errorf("coordinator cannot be nil")
		}
		p.coordinator = coordinator
		return nil
	}
}

// WithPublisherRepositories sets the storage dependencies. queue may be nil in ModeDirect.
func WithPublisherRepositories(
	actions PublishActionRepository,
	queue *DeliveryQueue,
	subscribers SubscriberRepository,
) PublisherOption {
	return func(p *Publisher) error {
		if actions == nil {
			return fmt.Errorf("publish action repository cannot be nil")
		}
		if subscribers == nil {
			return fmt.Errorf("subscriber repository cannot be nil")
		}
		p.actions = actions
		p.queue = queue
		p.subscribers = subscribers
		return nil
	}
}

// WithPublisherTransport sets the transport used in ModeDirect.
func WithPublisherTransport(transport Transport) PublisherOption {
	return func(p *Publisher) error {
		if transport == nil {
			return fmt.Errorf("transport cannot be nil")
		}
		p.transport = transport
		return nil
	}
}

// WithPublisherLogger sets the logger instance.
func WithPublisherLogger(logger Logger) PublisherOption {
	return func(p *Publisher) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithDeliveryMode selects queued (default) or direct delivery.
func WithDeliveryMode(mode DeliveryMode) PublisherOption {
	return func(p *Publisher) error {
		switch mode {
		case ModeQueued, ModeDirect:
			p.mode = mode
			return nil
		default:
			return fmt.Errorf("unknown delivery mode %q", mode)
		}
	}
}

// WithRedirectLocation sets the Location of the 303 returned after publishing.
func WithRedirectLocation(location string) PublisherOption {
	return func(p *Publisher) error {
		if location == "" {
			return fmt.Errorf("redirect location cannot be empty")
		}
		p.redirect = location
		return nil
	}
}

// PublishRequest is the submitted newsletter form.
type PublishRequest struct {
	Title          string // Email subject
	TextContent    string // Plain-text body
	HTMLContent    string // Rich body
	IdempotencyKey string // Client token, see model.ParseIdempotencyKey
}

// Validate checks the content fields. The idempotency key is parsed separately.
func (r PublishRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&r.TextContent, validation.Required),
		validation.Field(&r.HTMLContent, validation.Required),
	)
}

// Publish publishes an issue to all confirmed subscribers and returns the response
// to send back: a 303 redirect for a fresh request, or the stored response of an
// earlier request with the same key, unchanged.
//
// The process:
//  1. Validate the form and parse the idempotency key
//  2. Claim (callerID, key); replay the saved response if it was already completed
//  3. Store the issue and fan it out (queued) or send it (direct), inside the claim
//  4. Store the response on the claim and commit
//
// Invalid recipient addresses and transport failures are logged and skipped; they
// never fail the request. Storage failures, and in direct mode a transport that
// declines to send (ErrTransportUnavailable), abandon the claim so the client can retry.
func (p *Publisher) Publish(ctx context.Context, callerID string, req PublishRequest) (model.ResponseSnapshot, error) {
	if err := req.Validate(); err != nil {
		return model.ResponseSnapshot{}, NewErrorWithCause(ErrCodeValidation, "invalid newsletter form", err)
	}
	key, err := model.ParseIdempotencyKey(req.IdempotencyKey)
	if err != nil {
		return model.ResponseSnapshot{}, NewErrorWithCause(ErrCodeValidation, "invalid idempotency key", err)
	}

	next, err := p.coordinator.TryStart(ctx, callerID, key)
	if err != nil {
		return model.ResponseSnapshot{}, err
	}
	if saved, ok := next.SavedResponse(); ok {
		p.logger.Infof("Duplicate publish request replayed (caller=%s, key=%s)", callerID, key)
		return saved, nil
	}
	work, _ := next.StartProcessing()

	action := model.NewPublishAction(req.Title, req.TextContent, req.HTMLContent)
	if err := p.publish(ctx, work, action); err != nil {
		if abandonErr := work.Abandon(); abandonErr != nil {
			p.logger.Errorf("Failed to abandon claim (caller=%s, key=%s): %v", callerID, key, abandonErr)
		}
		return model.ResponseSnapshot{}, err
	}

	snapshot := model.SeeOther(p.redirect)
	if err := work.CommitWith(ctx, snapshot); err != nil {
		return model.ResponseSnapshot{}, err
	}

	p.logger.Infof("The newsletter issue has been published! (publish_action_id=%s, caller=%s, key=%s, mode=%s)",
		action.ID, callerID, key, p.mode)
	return snapshot, nil
}

func (p *Publisher) publish(ctx context.Context, work *UnitOfWork, action model.PublishAction) error {
	if err := p.actions.Insert(ctx, work.Exec(), action); err != nil {
		return err
	}

	recipients, err := p.subscribers.ListConfirmedEmails(ctx)
	if err != nil {
		return err
	}

	if p.mode == ModeDirect {
		return p.sendAll(ctx, action, recipients)
	}

	if err := p.queue.Enqueue(ctx, work.Exec(), action.ID, recipients); err != nil {
		return err
	}
	p.logger.Debugf("Queued publish action %s for %d recipients", action.ID, len(recipients))
	return nil
}

// sendAll delivers synchronously. Every recipient is attempted once. It stops
// with an error when the transport declines to attempt a send.
func (p *Publisher) sendAll(ctx context.Context, action model.PublishAction, recipients []string) error {
	sent := 0
	for _, raw := range recipients {
		recipient, err := model.ParseSubscriberEmail(raw)
		if err != nil {
			logSkip(p.logger, true, err,
				"Skipping a confirmed subscriber, their stored contact details are invalid (publish_action_id=%s)",
				action.ID)
			continue
		}
		if err := p.transport.Send(ctx, recipient, action.Title, action.HTMLContent, action.TextContent); err != nil {
			if IsTransportUnavailable(err) {
				p.logger.Warnf("Transport unavailable, stopping direct send of publish action %s after %d of %d recipients",
					action.ID, sent, len(recipients))
				return err
			}
			logSkip(p.logger, false, NewErrorWithCause(ErrCodeDelivery, "failed to deliver newsletter issue", err),
				"Failed to send newsletter issue to %s", recipient)
			continue
		}
		sent++
	}
	p.logger.Infof("Sent publish action %s directly to %d of %d recipients", action.ID, sent, len(recipients))
	return nil
}
