// Package models holds the message types shared by the relay, the inbox and
// the report.
package models

import (
	"cmp"
	"slices"
	"strings"
	"time"

	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
)

// Unknown marks a provenance field that could not be determined.
const Unknown = "unknown"

// Provenance is best-effort sender metadata. It is advisory, never proof of
// identity.
type Provenance struct {
	IP     string `json:"ip"`
	Client string `json:"client"`
}

// UnknownProvenance is recorded when no lookup succeeds.
func UnknownProvenance() Provenance {
	return Provenance{IP: Unknown, Client: Unknown}
}

// Normalized fills empty fields with Unknown.
func (p Provenance) Normalized() Provenance {
	if strings.TrimSpace(p.IP) == "" {
		p.IP = Unknown
	}
	if strings.TrimSpace(p.Client) == "" {
		p.Client = Unknown
	}
	return p
}

// Message is immutable once appended. ID, CreatedAt and Seq are assigned by
// the store; Seq is the store's arrival order.
type Message struct {
	ID          id.MessageID   `json:"id"`
	RecipientID id.RecipientID `json:"recipient_id"`
	Text        string         `json:"text"`
	Provenance  Provenance     `json:"provenance"`
	CreatedAt   time.Time      `json:"created_at"`
	Seq         uint64         `json:"seq"`
}

// Clone returns a copy callers may hold without aliasing store state.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}

// Draft is what the relay hands to the store.
type Draft struct {
	RecipientID id.RecipientID
	Text        string
	Provenance  Provenance
}

// Validate enforces the invariants every stored message must satisfy.
func (d Draft) Validate() error {
	if d.RecipientID.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "draft recipient is required")
	}
	if strings.TrimSpace(d.Text) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "draft text must not be empty")
	}
	return nil
}

// Receipt confirms a stored message to the sender.
type Receipt struct {
	MessageID   id.MessageID
	RecipientID id.RecipientID
	CreatedAt   time.Time
}

// NewestFirst orders by CreatedAt descending; equal timestamps keep store
// arrival order.
func NewestFirst(a, b *Message) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

// SortNewestFirst returns a sorted copy of msgs.
func SortNewestFirst(msgs []*Message) []*Message {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, NewestFirst)
	return out
}
