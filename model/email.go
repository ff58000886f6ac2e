package model

import (
	"errors"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxEmailLength is the longest address accepted (RFC 5321 path limit).
const MaxEmailLength = 254

// MaxSubscriberNameLength is the longest subscriber name, in runes.
const MaxSubscriberNameLength = 256

const forbiddenNameChars = `/()"<>\{}`

// SubscriberEmail is a recipient address that passed format validation.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates raw as an email address.
// Surrounding whitespace is trimmed; no DNS lookups are made.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	candidate := strings.TrimSpace(raw)
	err := validation.Validate(candidate,
		validation.Required,
		validation.RuneLength(3, MaxEmailLength),
		is.EmailFormat,
	)
	if err != nil {
		return SubscriberEmail{}, newValidationError("subscriber email", raw, err)
	}
	return SubscriberEmail{value: candidate}, nil
}

func (e SubscriberEmail) String() string {
	return e.value
}

// SubscriberName is a display name that passed validation.
type SubscriberName struct {
	value string
}

// ParseSubscriberName rejects blank names, names longer than
// MaxSubscriberNameLength runes and names containing any of /()"<>\{}.
func ParseSubscriberName(raw string) (SubscriberName, error) {
	err := validation.Validate(strings.TrimSpace(raw),
		validation.Required,
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if utf8.RuneCountInString(s) > MaxSubscriberNameLength {
				return errors.New("is too long")
			}
			if strings.ContainsAny(s, forbiddenNameChars) {
				return errors.New("contains forbidden characters")
			}
			return nil
		}),
	)
	if err != nil {
		return SubscriberName{}, newValidationError("subscriber name", raw, err)
	}
	return SubscriberName{value: raw}, nil
}

func (n SubscriberName) String() string {
	return n.value
}
