package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. Emission is best effort: in
// async mode events are buffered and handed to a Worker; a full buffer drops
// the event with a warning.
type Publisher struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	buffer  int
	events  chan Event
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAsyncBuffer decouples Emit from the store through a buffered worker.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.buffer = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer > 0 {
		p.events = make(chan Event, p.buffer)
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		worker := NewWorker(store, p.events, p.logger)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			worker.Run(ctx)
		}()
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if p.events == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.events <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
	return nil
}

// Close drains buffered events and stops the worker.
func (p *Publisher) Close() {
	p.closeMu.Do(func() {
		if p.events == nil {
			return
		}
		close(p.events)
		p.wg.Wait()
		p.cancel()
	})
}
