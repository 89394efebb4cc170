package store

import (
	"context"
	"sync"
	"time"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
)

// InMemory keeps messages in arrival order with a per-recipient index.
type InMemory struct {
	mu          sync.RWMutex
	messages    []*models.Message
	byRecipient map[id.RecipientID][]int
	clock       monotonic
}

type MemoryOption func(*InMemory)

// WithMemoryClock overrides the timestamp source.
func WithMemoryClock(clock Clock) MemoryOption {
	return func(s *InMemory) {
		if clock != nil {
			s.clock.now = clock
		}
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		byRecipient: make(map[id.RecipientID][]int),
		clock:       monotonic{now: time.Now},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Append(_ context.Context, draft models.Draft) (*models.Message, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := newMessage(draft, uint64(len(s.messages))+1, s.clock.next())
	s.messages = append(s.messages, msg)
	s.byRecipient[msg.RecipientID] = append(s.byRecipient[msg.RecipientID], len(s.messages)-1)
	return msg.Clone(), nil
}

func (s *InMemory) ListByRecipient(_ context.Context, recipient id.RecipientID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byRecipient[recipient]
	out := make([]*models.Message, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.messages[i].Clone())
	}
	return out, nil
}

func (s *InMemory) ListAll(_ context.Context) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Clone())
	}
	return out, nil
}
