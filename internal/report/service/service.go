package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"whisper/internal/audit"
	idmodels "whisper/internal/identity/models"
	msgmodels "whisper/internal/message/models"
	"whisper/internal/report/metrics"
	"whisper/internal/report/models"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/requestcontext"
)

type UserReader interface {
	ListAll(ctx context.Context) ([]*idmodels.User, error)
}

type MessageReader interface {
	ListAll(ctx context.Context) ([]*msgmodels.Message, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service joins every stored message with its recipient.
type Service struct {
	users          UserReader
	messages       MessageReader
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

func New(users UserReader, messages MessageReader, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user reader is required")
	}
	if messages == nil {
		return nil, errors.New("message reader is required")
	}
	s := &Service{
		users:    users,
		messages: messages,
		logger:   slog.Default(),
		tracer:   otel.Tracer("whisper/report"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BuildReport reads both snapshots concurrently and returns one row per
// message, newest first. Messages whose recipient is not registered get
// placeholder fields and are flagged Orphaned. Either read failing fails the
// whole report.
func (s *Service) BuildReport(ctx context.Context) ([]*models.JoinedRow, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "report.BuildReport")
	defer span.End()

	var (
		users    []*idmodels.User
		messages []*msgmodels.Message
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		messages, err = s.messages.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementFailures()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot read failed")
		s.logger.ErrorContext(ctx, "failed to build report",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeReportFailed, "failed to build report")
	}

	byID := lo.SliceToMap(users, func(u *idmodels.User) (id.RecipientID, *idmodels.User) {
		return u.ID, u
	})
	rows := lo.Map(messages, func(m *msgmodels.Message, _ int) *models.JoinedRow {
		return models.NewJoinedRow(m, byID[m.RecipientID])
	})
	slices.SortStableFunc(rows, models.NewestFirst)

	orphaned := lo.CountBy(rows, func(r *models.JoinedRow) bool { return r.Orphaned })
	span.SetAttributes(
		attribute.Int("whisper.report.rows", len(rows)),
		attribute.Int("whisper.report.orphaned", orphaned),
	)
	if s.metrics != nil {
		s.metrics.ObserveReport(start, len(rows), orphaned)
	}
	s.emitAudit(ctx, len(rows), orphaned)
	s.logger.InfoContext(ctx, "report generated",
		"request_id", requestcontext.RequestID(ctx),
		"operator_id", requestcontext.OperatorID(ctx),
		"rows", len(rows),
		"orphaned", orphaned,
	)
	return rows, nil
}

func (s *Service) emitAudit(ctx context.Context, rows, orphaned int) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(audit.ActionReportGenerated),
		Subject:   "report",
		ActorID:   requestcontext.OperatorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Detail:    "rows=" + strconv.Itoa(rows) + " orphaned=" + strconv.Itoa(orphaned),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", audit.ActionReportGenerated,
			"error", err,
		)
	}
}
