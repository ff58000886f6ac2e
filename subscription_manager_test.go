package courier_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

func newSubscriptionManager(t *testing.T, s *stack) *courier.SubscriptionManager {
	t.Helper()
	sm, err := courier.NewSubscriptionManager(
		courier.WithSubscriptionManagerRepository(s.repos.Subscriber),
		courier.WithConfirmationEmails(s.transport, "https://news.example.com/"),
		courier.WithSubscriptionManagerLogger(s.logger),
	)
	require.NoError(t, err)
	return sm
}

// tokenFromLink extracts the confirmation token from the last email sent.
func tokenFromLink(t *testing.T, email sentEmail) string {
	t.Helper()
	start := strings.Index(email.TextBody, "https://")
	require.GreaterOrEqual(t, start, 0)
	rest := email.TextBody[start:]
	link := rest[:strings.IndexAny(rest, " \n")]
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/subscriptions/confirm", u.Path)
	return u.Query().Get("subscription_token")
}

func TestNewSubscriptionManager_Validation(t *testing.T) {
	s := newStack(t)

	_, err := courier.NewSubscriptionManager(
		courier.WithConfirmationEmails(s.transport, "https://news.example.com"),
		courier.WithSubscriptionManagerLogger(s.logger),
	)
	assert.True(t, courier.HasCode(err, courier.ErrCodeConfiguration))

	_, err = courier.NewSubscriptionManager(
		courier.WithSubscriptionManagerRepository(s.repos.Subscriber),
		courier.WithConfirmationEmails(s.transport, "not a url"),
		courier.WithSubscriptionManagerLogger(s.logger),
	)
	assert.True(t, courier.HasCode(err, courier.ErrCodeConfiguration))
}

func TestSubscriptionManager_SubscribeAndConfirm(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	sm := newSubscriptionManager(t, s)

	subscriber, err := sm.Subscribe(ctx, courier.SubscribeRequest{Email: " ursula@example.com ", Name: "Ursula"})
	require.NoError(t, err)
	assert.Equal(t, model.SubscriberPending, subscriber.Status)
	assert.Equal(t, "ursula@example.com", subscriber.Email)

	sent := s.transport.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Welcome!", sent[0].Subject)
	assert.Equal(t, "ursula@example.com", sent[0].Recipient)
	token := tokenFromLink(t, sent[0])
	assert.Equal(t, subscriber.ConfirmationToken, token)

	recipients, err := sm.ListConfirmedRecipients(ctx)
	require.NoError(t, err)
	assert.Empty(t, recipients, "pending subscribers receive no issues")

	require.NoError(t, sm.Confirm(ctx, token))
	require.NoError(t, sm.Confirm(ctx, token), "confirming twice is a no-op")

	recipients, err = sm.ListConfirmedRecipients(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ursula@example.com"}, recipients)
}

func TestSubscriptionManager_ResubscribePending(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	sm := newSubscriptionManager(t, s)

	first, err := sm.Subscribe(ctx, courier.SubscribeRequest{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)
	second, err := sm.Subscribe(ctx, courier.SubscribeRequest{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	sent := s.transport.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, tokenFromLink(t, sent[0]), tokenFromLink(t, sent[1]))
}

func TestSubscriptionManager_ResubscribeConfirmed(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	sm := newSubscriptionManager(t, s)

	subscriber, err := sm.Subscribe(ctx, courier.SubscribeRequest{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)
	require.NoError(t, sm.Confirm(ctx, subscriber.ConfirmationToken))

	again, err := sm.Subscribe(ctx, courier.SubscribeRequest{Email: "a@example.com", Name: "A"})
	require.NoError(t, err)
	assert.True(t, again.IsConfirmed())
	assert.Len(t, s.transport.Sent(), 1)
}

func TestSubscriptionManager_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	sm := newSubscriptionManager(t, s)

	tests := []struct {
		name string
		req  courier.SubscribeRequest
	}{
		{name: "Empty name", req: courier.SubscribeRequest{Email: "a@example.com", Name: " "}},
		{name: "Forbidden name chars", req: courier.SubscribeRequest{Email: "a@example.com", Name: "<script>"}},
		{name: "Missing at sign", req: courier.SubscribeRequest{Email: "ursuladomain.com", Name: "Ursula"}},
		{name: "Missing subject", req: courier.SubscribeRequest{Email: "@domain.com", Name: "Ursula"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sm.Subscribe(ctx, tt.req)
			assert.True(t, courier.IsValidation(err), "got %v", err)
		})
	}
	assert.Empty(t, s.transport.Sent())
}

func TestSubscriptionManager_SendFailure(t *testing.T) {
	s := newStack(t)
	sm := newSubscriptionManager(t, s)
	s.transport.failFor["a@example.com"] = errors.New("smtp: 421 service not available")

	_, err := sm.Subscribe(context.Background(), courier.SubscribeRequest{Email: "a@example.com", Name: "A"})
	assert.True(t, courier.HasCode(err, courier.ErrCodeDelivery))
}

func TestSubscriptionManager_ConfirmUnknownToken(t *testing.T) {
	s := newStack(t)
	sm := newSubscriptionManager(t, s)

	assert.True(t, courier.IsValidation(sm.Confirm(context.Background(), "")))
	assert.True(t, courier.IsNoData(sm.Confirm(context.Background(), "unknown")))
}

func TestSubscriptionManager_ConfirmationLinkEscapesToken(t *testing.T) {
	s := newStack(t)
	sm := newSubscriptionManager(t, s)

	assert.Equal(t,
		"https://news.example.com/subscriptions/confirm?subscription_token=a+b%26c",
		sm.ConfirmationLink("a b&c"))
}
