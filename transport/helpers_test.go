package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coregx/courier/model"
)

func mustEmail(t *testing.T, raw string) model.SubscriberEmail {
	t.Helper()
	email, err := model.ParseSubscriberEmail(raw)
	require.NoError(t, err)
	return email
}

// stubTransport returns the queued errors in order, then nil.
type stubTransport struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (s *stubTransport) Send(context.Context, model.SubscriberEmail, string, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *stubTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
