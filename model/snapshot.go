package model

import (
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// HeaderPair is one response header. Value holds the raw bytes as produced,
// without assuming it is valid text.
type HeaderPair struct {
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// ResponseSnapshot is the persisted, replayable form of a response:
// status code, ordered header list and fully buffered body.
type ResponseSnapshot struct {
	StatusCode int
	Headers    []HeaderPair
	Body       []byte
}

// SeeOther builds a body-less 303 redirect to location.
func SeeOther(location string) ResponseSnapshot {
	return ResponseSnapshot{
		StatusCode: http.StatusSeeOther,
		Headers:    []HeaderPair{{Name: "Location", Value: []byte(location)}},
		Body:       []byte{},
	}
}

// Header returns the first value of the named header and whether it was present.
// Names are compared case-insensitively.
func (s ResponseSnapshot) Header(name string) ([]byte, bool) {
	canonical := http.CanonicalHeaderKey(name)
	for _, h := range s.Headers {
		if http.CanonicalHeaderKey(h.Name) == canonical {
			return h.Value, true
		}
	}
	return nil, false
}

// Render writes the snapshot to w: headers in stored order, then the status, then the body.
func (s ResponseSnapshot) Render(w http.ResponseWriter) error {
	header := w.Header()
	for _, h := range s.Headers {
		header.Add(h.Name, string(h.Value))
	}
	w.WriteHeader(s.StatusCode)
	if len(s.Body) == 0 {
		return nil
	}
	if _, err := w.Write(s.Body); err != nil {
		return fmt.Errorf("write snapshot body: %w", err)
	}
	return nil
}

// Validate checks the snapshot can be stored and replayed.
func (s ResponseSnapshot) Validate() error {
	if s.StatusCode < 100 || s.StatusCode > 999 {
		return fmt.Errorf("invalid status code %d", s.StatusCode)
	}
	for i, h := range s.Headers {
		if h.Name == "" {
			return fmt.Errorf("header %d has an empty name", i)
		}
	}
	return nil
}

// EncodeHeaders serializes the header list. The result is never empty:
// an empty list encodes as "[]" so a stored list is distinguishable from NULL.
func EncodeHeaders(headers []HeaderPair) ([]byte, error) {
	if headers == nil {
		headers = []HeaderPair{}
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("encode response headers: %w", err)
	}
	return data, nil
}

// DecodeHeaders restores a header list produced by EncodeHeaders.
func DecodeHeaders(data []byte) ([]HeaderPair, error) {
	var headers []HeaderPair
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("decode response headers: %w", err)
	}
	if headers == nil {
		headers = []HeaderPair{}
	}
	return headers, nil
}
