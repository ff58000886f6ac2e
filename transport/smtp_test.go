package transport

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSMTP_Validation(t *testing.T) {
	sender := mustEmail(t, "news@example.com")

	tests := []struct {
		name string
		cfg  SMTPConfig
	}{
		{"Missing host", SMTPConfig{Port: 25, Sender: sender}},
		{"Invalid port", SMTPConfig{Host: "localhost", Port: 0, Sender: sender}},
		{"Missing sender", SMTPConfig{Host: "localhost", Port: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTP(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSMTP_SendBuildsMultipartMessage(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "mail.example.com", Port: 587, Username: "u", Password: "p", Sender: mustEmail(t, "news@example.com")})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.NotNil(t, a)
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	err = s.Send(context.Background(), mustEmail(t, "ursula@example.com"), "Héllo", "<p>Hi</p>", "Hi")
	require.NoError(t, err)

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "news@example.com", gotFrom)
	assert.Equal(t, []string{"ursula@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: ursula@example.com\r\n")
	assert.Contains(t, gotMsg, "Subject: =?utf-8?q?H=C3=A9llo?=\r\n")
	assert.Contains(t, gotMsg, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	assert.Contains(t, gotMsg, "Content-Type: multipart/alternative; boundary=")

	text := strings.Index(gotMsg, "text/plain")
	html := strings.Index(gotMsg, "text/html")
	require.Positive(t, text)
	assert.Greater(t, html, text, "plain text part comes first")
	assert.Contains(t, gotMsg, "<p>Hi</p>")
}

func TestSMTP_SendWrapsRelayError(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 25, Sender: mustEmail(t, "news@example.com")})
	require.NoError(t, err)
	relayErr := errors.New("550 mailbox unavailable")
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return relayErr }

	err = s.Send(context.Background(), mustEmail(t, "ursula@example.com"), "s", "h", "t")
	assert.ErrorIs(t, err, relayErr)
}

func TestSMTP_SendHonorsCanceledContext(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "localhost", Port: 25, Sender: mustEmail(t, "news@example.com")})
	require.NoError(t, err)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not dial")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, mustEmail(t, "ursula@example.com"), "s", "h", "t"), context.Canceled)
}
