package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "whisper/pkg/domain-errors"
)

// MaxRecipientIDLength bounds recipient identifiers accepted at trust boundaries.
const MaxRecipientIDLength = 128

// RecipientID identifies a registered user's inbox. It is opaque and not a
// secret: it is embedded verbatim in the share link.
//
// Invariant: 1..128 characters drawn from [A-Za-z0-9_-].
type RecipientID string

// MessageID is assigned by the message store on append.
type MessageID uuid.UUID

func (r RecipientID) String() string { return string(r) }

func (r RecipientID) IsZero() bool { return r == "" }

func (m MessageID) String() string { return uuid.UUID(m).String() }

func (m MessageID) IsNil() bool { return uuid.UUID(m) == uuid.Nil }

func (m MessageID) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MessageID) UnmarshalText(data []byte) error {
	parsed, err := ParseMessageID(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// NewMessageID returns a fresh random message id.
func NewMessageID() MessageID {
	return MessageID(uuid.New())
}

// ParseRecipientID validates an identifier taken from a path or token.
func ParseRecipientID(s string) (RecipientID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "recipient id is required")
	}
	if len(s) > MaxRecipientIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "recipient id is too long")
	}
	if strings.IndexFunc(s, invalidRecipientRune) != -1 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "recipient id contains invalid characters")
	}
	return RecipientID(s), nil
}

func invalidRecipientRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case r == '-' || r == '_':
		return false
	}
	return true
}

// ParseMessageID parses a non-nil UUID message id.
func ParseMessageID(s string) (MessageID, error) {
	if s == "" {
		return MessageID{}, dErrors.New(dErrors.CodeInvalidInput, "message id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return MessageID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid message id")
	}
	if parsed == uuid.Nil {
		return MessageID{}, dErrors.New(dErrors.CodeInvalidInput, "message id cannot be nil")
	}
	return MessageID(parsed), nil
}
