// Package models holds the rows of the message/recipient audit join.
package models

import (
	"cmp"
	"time"

	idmodels "whisper/internal/identity/models"
	msgmodels "whisper/internal/message/models"
	id "whisper/pkg/domain"
)

// Placeholders for a message whose recipient is not in the directory.
const (
	UnknownDisplayName = "Unknown"
	UnknownEmail       = "N/A"
)

// JoinedRow is one stored message with its recipient's directory entry.
type JoinedRow struct {
	MessageID   id.MessageID
	RecipientID id.RecipientID
	Text        string
	Provenance  msgmodels.Provenance
	CreatedAt   time.Time
	DisplayName string
	Email       string
	AvatarURL   string
	// Orphaned is set when no user with RecipientID exists.
	Orphaned bool

	seq uint64
}

// NewJoinedRow builds a row from a message and its recipient. A nil user
// yields an orphaned row with placeholder fields.
func NewJoinedRow(msg *msgmodels.Message, user *idmodels.User) *JoinedRow {
	row := &JoinedRow{
		MessageID:   msg.ID,
		RecipientID: msg.RecipientID,
		Text:        msg.Text,
		Provenance:  msg.Provenance.Normalized(),
		CreatedAt:   msg.CreatedAt,
		seq:         msg.Seq,
	}
	if user == nil {
		row.DisplayName = UnknownDisplayName
		row.Email = UnknownEmail
		row.Orphaned = true
		return row
	}
	row.DisplayName = user.DisplayName
	row.Email = user.Email
	row.AvatarURL = user.AvatarURL
	return row
}

// NewestFirst orders rows by CreatedAt descending; ties keep store order.
func NewestFirst(a, b *JoinedRow) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}
