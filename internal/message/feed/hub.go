// Package feed fans newly stored messages out to live inbox subscriptions.
// A subscription channel is closed when its context ends or when the feed
// can no longer guarantee delivery (slow consumer, dropped connection); the
// subscriber is expected to resubscribe and resnapshot.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
)

const defaultBuffer = 32

type subscriber struct {
	ch   chan *models.Message
	stop func() bool
}

// Hub is the in-process feed. Publish never blocks: a subscriber whose buffer
// is full is evicted.
type Hub struct {
	mu     sync.Mutex
	subs   map[id.RecipientID]map[*subscriber]struct{}
	buffer int
	closed bool
	logger *slog.Logger
}

type HubOption func(*Hub)

func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[id.RecipientID]map[*subscriber]struct{}),
		buffer: defaultBuffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Subscribe(ctx context.Context, recipient id.RecipientID) (<-chan *models.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, sentinel.ErrClosed
	}

	sub := &subscriber{ch: make(chan *models.Message, h.buffer)}
	set, ok := h.subs[recipient]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[recipient] = set
	}
	set[sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.removeLocked(recipient, sub)
	})
	return sub.ch, nil
}

func (h *Hub) Publish(_ context.Context, msg *models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return sentinel.ErrClosed
	}

	for sub := range h.subs[msg.RecipientID] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("evicting slow inbox subscriber",
				"recipient_id", msg.RecipientID,
			)
			h.removeLocked(msg.RecipientID, sub)
		}
	}
	return nil
}

// Subscribers reports the live subscription count for recipient.
func (h *Hub) Subscribers(recipient id.RecipientID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[recipient])
}

// DropAll closes every subscription without shutting the hub down. Used when
// the upstream source may have missed messages.
func (h *Hub) DropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropAllLocked()
}

// Close closes every subscription and rejects further use.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.dropAllLocked()
	return nil
}

func (h *Hub) dropAllLocked() {
	for recipient, set := range h.subs {
		for sub := range set {
			h.removeLocked(recipient, sub)
		}
	}
}

func (h *Hub) removeLocked(recipient id.RecipientID, sub *subscriber) {
	set, ok := h.subs[recipient]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, recipient)
	}
	if sub.stop != nil {
		sub.stop()
	}
	close(sub.ch)
}
