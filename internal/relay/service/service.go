package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"whisper/internal/audit"
	"whisper/internal/message/models"
	"whisper/internal/provenance"
	"whisper/internal/relay/metrics"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/requestcontext"
)

type MessageStore interface {
	Append(ctx context.Context, draft models.Draft) (*models.Message, error)
}

type Feed interface {
	Publish(ctx context.Context, msg *models.Message) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service accepts anonymous submissions for a recipient. A message is either
// durably stored or the caller gets SendFailed; live delivery is best effort.
type Service struct {
	messages       MessageStore
	feed           Feed
	lookup         provenance.Lookup
	lookupTimeout  time.Duration
	maxLength      int
	auditPublisher AuditPublisher
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

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithProvenance sets the origin lookup and its time budget.
func WithProvenance(lookup provenance.Lookup, timeout time.Duration) Option {
	return func(s *Service) {
		s.lookup = lookup
		if timeout > 0 {
			s.lookupTimeout = timeout
		}
	}
}

// WithMaxLength caps message text in characters. Zero disables the cap.
func WithMaxLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(messages MessageStore, feed Feed, opts ...Option) (*Service, error) {
	if messages == nil {
		return nil, errors.New("message store is required")
	}
	if feed == nil {
		return nil, errors.New("feed is required")
	}
	s := &Service{
		messages:      messages,
		feed:          feed,
		lookup:        provenance.RequestLookup{},
		lookupTimeout: provenance.DefaultTimeout,
		logger:        slog.Default(),
		tracer:        otel.Tracer("whisper/relay"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit stores rawText for the recipient and pushes it to live inboxes.
// The recipient's existence is not checked; a message to an unknown id is
// stored and later reported as orphaned.
func (s *Service) Submit(ctx context.Context, rawRecipient string, rawText string) (*models.Receipt, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "relay.Submit")
	defer span.End()
	defer s.observeSubmit(start)

	recipient, err := id.ParseRecipientID(rawRecipient)
	if err != nil {
		s.incrementFailure(metrics.ReasonValidation)
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid recipient id")
	}
	span.SetAttributes(attribute.String("whisper.recipient_id", string(recipient)))

	text := strings.TrimSpace(rawText)
	if text == "" {
		s.incrementFailure(metrics.ReasonEmpty)
		return nil, dErrors.New(dErrors.CodeEmptyMessage, "message text is required")
	}
	if s.maxLength > 0 && utf8.RuneCountInString(text) > s.maxLength {
		s.incrementFailure(metrics.ReasonValidation)
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("message exceeds %d characters", s.maxLength))
	}

	origin, resolved := provenance.Resolve(ctx, s.lookup, s.lookupTimeout, s.logger)
	if !resolved && s.metrics != nil {
		s.metrics.IncrementProvenanceFallback()
	}

	msg, err := s.messages.Append(ctx, models.Draft{
		RecipientID: recipient,
		Text:        text,
		Provenance:  origin,
	})
	if err != nil {
		s.incrementFailure(metrics.ReasonStore)
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.logger.ErrorContext(ctx, "failed to store message",
			"request_id", requestcontext.RequestID(ctx),
			"recipient_id", recipient,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeSendFailed, "failed to send message")
	}
	span.SetAttributes(attribute.String("whisper.message_id", msg.ID.String()))

	if err := s.feed.Publish(ctx, msg); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementPublishFailure()
		}
		s.logger.WarnContext(ctx, "stored message not published to live feed",
			"request_id", requestcontext.RequestID(ctx),
			"message_id", msg.ID,
			"error", err,
		)
	}

	s.emitAudit(ctx, msg)
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.logger.InfoContext(ctx, "message submitted",
		"request_id", requestcontext.RequestID(ctx),
		"recipient_id", recipient,
		"message_id", msg.ID,
		"provenance_resolved", resolved,
	)

	return &models.Receipt{
		MessageID:   msg.ID,
		RecipientID: msg.RecipientID,
		CreatedAt:   msg.CreatedAt,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, msg *models.Message) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(audit.ActionMessageSubmitted),
		Subject:   string(msg.RecipientID),
		RequestID: requestcontext.RequestID(ctx),
		Detail:    msg.ID.String(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", audit.ActionMessageSubmitted,
			"error", err,
		)
	}
}

func (s *Service) incrementFailure(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementFailure(reason)
	}
}

func (s *Service) observeSubmit(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveSubmit(start)
	}
}
