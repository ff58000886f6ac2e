package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/coregx/courier/model"
)

// ServerTokenHeader carries the API token on every request.
const ServerTokenHeader = "X-Postmark-Server-Token"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// APIClient sends email through an HTTP email API.
//
// Each email is one POST to {baseURL}/email. Any non-2xx status is an error that
// includes the status and the start of the response body.
type APIClient struct {
	endpoint   string
	sender     model.SubscriberEmail
	token      string
	httpClient *http.Client
}

type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// NewAPIClient creates a client for the API at baseURL.
//
// Parameters:
//   - baseURL: API root (e.g., https://api.postmarkapp.com)
//   - sender: From address of every email
//   - token: server token sent in ServerTokenHeader
//   - timeout: limit for one request, including reading the response
func NewAPIClient(baseURL string, sender model.SubscriberEmail, token string, timeout time.Duration) (*APIClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid email api base url %q: %w", baseURL, err)
	}
	if sender.String() == "" {
		return nil, fmt.Errorf("sender is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}

	return &APIClient{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/email",
		sender:   sender,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Send posts one email.
func (c *APIClient) Send(ctx context.Context, recipient model.SubscriberEmail, subject, htmlBody, textBody string) error {
	payload, err := json.Marshal(sendEmailRequest{
		From:     c.sender.String(),
		To:       recipient.String(),
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ServerTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email api request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return fmt.Errorf("email api returned status %d (failed to read body)", resp.StatusCode)
		}
		return fmt.Errorf("email api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
