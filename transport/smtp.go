package transport

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/coregx/courier/model"
)

// SMTPConfig configures an SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // Empty disables authentication
	Password string
	Sender   model.SubscriberEmail
}

// SMTP sends email through an SMTP relay as multipart/alternative messages
// with a plain-text part followed by an HTML part.
//
// net/smtp does not take a context: a canceled ctx is only observed before dialing.
type SMTP struct {
	addr     string
	auth     smtp.Auth
	sender   model.SubscriberEmail
	now      func() time.Time
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTP transport. PLAIN authentication is used when a
// username is configured; net/smtp only sends it over TLS or to localhost.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", cfg.Port)
	}
	if cfg.Sender.String() == "" {
		return nil, fmt.Errorf("sender is required")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTP{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:     auth,
		sender:   cfg.Sender,
		now:      time.Now,
		sendMail: smtp.SendMail,
	}, nil
}

// Send delivers one message.
func (s *SMTP) Send(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.buildMessage(recipient, subject, htmlBody, textBody)
	if err != nil {
		return err
	}
	if err := s.sendMail(s.addr, s.auth, s.sender.String(), []string{recipient.String()}, msg); err != nil {
		return fmt.Errorf("smtp send to %s failed: %w", s.addr, err)
	}
	return nil
}

func (s *SMTP) buildMessage(recipient model.SubscriberEmail, subject, htmlBody, textBody string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", textBody},
		{"text/html; charset=UTF-8", htmlBody},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create message part: %w", err)
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("failed to encode message part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode message part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().UTC().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
