// Package store persists messages. Every backend assigns ID, CreatedAt and
// Seq on Append, returns snapshots in arrival order, and never updates or
// deletes.
package store

import (
	"fmt"
	"time"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
)

// Clock is injectable for tests.
type Clock func() time.Time

// monotonic hands out non-decreasing timestamps from a wall clock that may
// stall or step back. Callers serialize access.
type monotonic struct {
	now  Clock
	last time.Time
}

func (m *monotonic) next() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	m.last = t
	return t
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}

func newMessage(draft models.Draft, seq uint64, createdAt time.Time) *models.Message {
	return &models.Message{
		ID:          id.NewMessageID(),
		RecipientID: draft.RecipientID,
		Text:        draft.Text,
		Provenance:  draft.Provenance.Normalized(),
		CreatedAt:   createdAt,
		Seq:         seq,
	}
}
