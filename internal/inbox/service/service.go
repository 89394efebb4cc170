package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"whisper/internal/inbox/metrics"
	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/sentinel"
)

const (
	defaultResyncInterval = 30 * time.Second
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 10 * time.Second
)

type MessageReader interface {
	ListByRecipient(ctx context.Context, recipient id.RecipientID) ([]*models.Message, error)
}

type Feed interface {
	Subscribe(ctx context.Context, recipient id.RecipientID) (<-chan *models.Message, error)
}

// Service builds live, newest-first inbox views from the store snapshot and
// the feed.
type Service struct {
	messages       MessageReader
	feed           Feed
	resyncInterval time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithResyncInterval sets how often a live view is reconciled with the store.
func WithResyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.resyncInterval = d
		}
	}
}

// WithBackoff bounds the delay between feed resubscription attempts.
func WithBackoff(initial, max time.Duration) Option {
	return func(s *Service) {
		if initial > 0 {
			s.initialBackoff = initial
		}
		if max > 0 {
			s.maxBackoff = max
		}
	}
}

func New(messages MessageReader, feed Feed, opts ...Option) (*Service, error) {
	if messages == nil {
		return nil, errors.New("message reader is required")
	}
	if feed == nil {
		return nil, errors.New("feed is required")
	}
	s := &Service{
		messages:       messages,
		feed:           feed,
		resyncInterval: defaultResyncInterval,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		logger:         slog.Default(),
		tracer:         otel.Tracer("whisper/inbox"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBackoff < s.initialBackoff {
		s.maxBackoff = s.initialBackoff
	}
	return s, nil
}

// Snapshot returns the recipient's messages newest first.
func (s *Service) Snapshot(ctx context.Context, recipient id.RecipientID) ([]*models.Message, error) {
	msgs, err := s.messages.ListByRecipient(ctx, recipient)
	if err != nil {
		return nil, unavailable(err)
	}
	return models.SortNewestFirst(msgs), nil
}

// Watch opens a live view for recipient. The feed is subscribed before the
// snapshot is read so no message stored in between is missed; duplicates are
// merged by id. The subscription ends on Cancel or when ctx is done.
func (s *Service) Watch(ctx context.Context, recipient id.RecipientID) (*Subscription, error) {
	ctx, span := s.tracer.Start(ctx, "inbox.Watch",
		trace.WithAttributes(attribute.String("whisper.recipient_id", string(recipient))))
	defer span.End()

	subCtx, cancel := context.WithCancel(ctx)

	live, err := s.feed.Subscribe(subCtx, recipient)
	if err != nil {
		cancel()
		return nil, unavailable(err)
	}
	snapshot, err := s.messages.ListByRecipient(subCtx, recipient)
	if err != nil {
		cancel()
		return nil, unavailable(err)
	}

	sub := &Subscription{
		updates: make(chan []*models.Message, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	v := newView()
	v.merge(snapshot...)
	sub.offer(v.render())

	if s.metrics != nil {
		s.metrics.SubscriptionOpened()
		s.metrics.IncrementViews()
	}
	s.logger.DebugContext(ctx, "inbox watch started",
		"recipient_id", recipient,
		"snapshot_size", v.len(),
	)

	go s.run(subCtx, sub, recipient, live, v)
	return sub, nil
}

func (s *Service) run(ctx context.Context, sub *Subscription, recipient id.RecipientID, live <-chan *models.Message, v *view) {
	defer func() {
		if s.metrics != nil {
			s.metrics.SubscriptionClosed()
		}
		close(sub.updates)
		close(sub.done)
	}()

	resync := time.NewTicker(s.resyncInterval)
	defer resync.Stop()

	// release ends the subscription opened by the latest resume; the one
	// opened by Watch lives on ctx.
	release := context.CancelFunc(func() {})
	defer func() { release() }()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-live:
			if !ok {
				next, stop, resumed := s.resume(ctx, sub, recipient, v)
				if !resumed {
					return
				}
				release()
				live, release = next, stop
				continue
			}
			if v.merge(msg) {
				s.emit(sub, v)
			}
		case <-resync.C:
			msgs, err := s.messages.ListByRecipient(ctx, recipient)
			if err != nil {
				s.logger.WarnContext(ctx, "inbox resync failed",
					"recipient_id", recipient,
					"error", err,
				)
				continue
			}
			if v.merge(msgs...) {
				if s.metrics != nil {
					s.metrics.IncrementResyncs()
				}
				s.emit(sub, v)
			}
		}
	}
}

// resume resubscribes after the feed dropped the live channel and merges a
// fresh snapshot. It retries with capped exponential backoff until ctx ends.
// Each attempt subscribes under its own context, cancelled when the attempt
// fails; on success the caller owns the returned cancel func.
func (s *Service) resume(ctx context.Context, sub *Subscription, recipient id.RecipientID, v *view) (<-chan *models.Message, context.CancelFunc, bool) {
	delay := s.initialBackoff
	for attempt := 1; ; attempt++ {
		live, stop, msgs, err := s.resubscribe(ctx, recipient)
		if err == nil {
			if s.metrics != nil {
				s.metrics.IncrementResumes()
			}
			s.logger.InfoContext(ctx, "inbox feed resumed",
				"recipient_id", recipient,
				"attempt", attempt,
			)
			if v.merge(msgs...) {
				s.emit(sub, v)
			}
			return live, stop, true
		}
		if ctx.Err() != nil {
			return nil, nil, false
		}
		s.logger.WarnContext(ctx, "inbox feed resume failed",
			"recipient_id", recipient,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, false
		case <-timer.C:
		}
		delay = min(delay*2, s.maxBackoff)
	}
}

func (s *Service) resubscribe(ctx context.Context, recipient id.RecipientID) (<-chan *models.Message, context.CancelFunc, []*models.Message, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	live, err := s.feed.Subscribe(attemptCtx, recipient)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	msgs, err := s.messages.ListByRecipient(ctx, recipient)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return live, cancel, msgs, nil
}

func (s *Service) emit(sub *Subscription, v *view) {
	sub.offer(v.render())
	if s.metrics != nil {
		s.metrics.IncrementViews()
	}
}

func unavailable(err error) error {
	if !errors.Is(err, sentinel.ErrUnavailable) {
		err = fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "inbox is unavailable")
}

// Subscription is a live inbox view. Each value on Updates is the complete
// view, newest first. A reader that falls behind sees only the latest view.
type Subscription struct {
	updates chan []*models.Message
	done    chan struct{}
	cancel  func()
	once    sync.Once
}

// Updates is closed when the subscription ends.
func (s *Subscription) Updates() <-chan []*models.Message {
	return s.updates
}

// Done is closed once the subscription worker has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the subscription and waits for its worker to exit. Views not
// yet read are discarded. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		for range s.updates {
		}
	})
}

// offer replaces any unread view with v. Only the subscription's worker
// calls it, so the send never blocks.
func (s *Subscription) offer(v []*models.Message) {
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}
