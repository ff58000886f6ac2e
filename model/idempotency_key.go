package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxIdempotencyKeyLength is the longest idempotency key accepted from clients.
const MaxIdempotencyKeyLength = 50

var idempotencyKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// IdempotencyKey is a validated, client-supplied token that scopes one logical
// operation across retried requests. The zero value is not a valid key.
type IdempotencyKey struct {
	value string
}

// ParseIdempotencyKey validates raw and wraps it as an IdempotencyKey.
//
// A key must be non-empty, at most MaxIdempotencyKeyLength characters long and
// made only of ASCII letters, digits and the characters "._:-". UUIDs satisfy it.
func ParseIdempotencyKey(raw string) (IdempotencyKey, error) {
	err := validation.Validate(raw,
		validation.Required,
		validation.RuneLength(1, MaxIdempotencyKeyLength),
		validation.Match(idempotencyKeyPattern).Error("must contain only letters, digits and ._:-"),
	)
	if err != nil {
		return IdempotencyKey{}, newValidationError("idempotency key", raw, err)
	}
	return IdempotencyKey{value: raw}, nil
}

// String returns the key as supplied by the client.
func (k IdempotencyKey) String() string {
	return k.value
}

// IsZero reports whether k was never parsed.
func (k IdempotencyKey) IsZero() bool {
	return k.value == ""
}
