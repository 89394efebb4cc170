package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks MessageStore,Feed,AuditPublisher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"whisper/internal/audit"
	"whisper/internal/message/models"
	"whisper/internal/provenance"
	"whisper/internal/relay/metrics"
	"whisper/internal/relay/service/mocks"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/sentinel"
	"whisper/pkg/requestcontext"
)

type RelayServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	messages *mocks.MockMessageStore
	feed     *mocks.MockFeed
	auditor  *mocks.MockAuditPublisher
	metrics  *metrics.Metrics
	origin   models.Provenance
	service  *Service
}

func TestRelayServiceSuite(t *testing.T) {
	suite.Run(t, new(RelayServiceSuite))
}

func (s *RelayServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.messages = mocks.NewMockMessageStore(s.ctrl)
	s.feed = mocks.NewMockFeed(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.origin = models.Provenance{IP: "203.0.113.7", Client: "Firefox on Linux"}
	s.service = s.newService()
}

func (s *RelayServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *RelayServiceSuite) newService(opts ...Option) *Service {
	lookup := provenance.LookupFunc(func(context.Context) (models.Provenance, error) {
		return s.origin, nil
	})
	base := []Option{
		WithAuditPublisher(s.auditor),
		WithMetrics(s.metrics),
		WithProvenance(lookup, time.Second),
	}
	svc, err := New(s.messages, s.feed, append(base, opts...)...)
	s.Require().NoError(err)
	return svc
}

func stored(draft models.Draft) *models.Message {
	return &models.Message{
		ID:          id.NewMessageID(),
		RecipientID: draft.RecipientID,
		Text:        draft.Text,
		Provenance:  draft.Provenance,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Seq:         1,
	}
}

func (s *RelayServiceSuite) TestNew() {
	_, err := New(nil, s.feed)
	s.ErrorContains(err, "message store is required")
	_, err = New(s.messages, nil)
	s.ErrorContains(err, "feed is required")
}

func (s *RelayServiceSuite) TestSubmit() {
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")

	s.Run("stores trimmed text with provenance and publishes", func() {
		var msg *models.Message
		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				s.Equal(id.RecipientID("alice"), draft.RecipientID)
				s.Equal("hi there", draft.Text)
				s.Equal(s.origin, draft.Provenance)
				msg = stored(draft)
				return msg, nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, published *models.Message) error {
				s.Same(msg, published)
				return nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event audit.Event) error {
				s.Equal(string(audit.ActionMessageSubmitted), event.Action)
				s.Equal("alice", event.Subject)
				s.Equal("req-1", event.RequestID)
				s.Empty(event.ActorID)
				return nil
			})

		receipt, err := s.service.Submit(ctx, "alice", "  hi there \n")
		s.Require().NoError(err)
		s.Equal(msg.ID, receipt.MessageID)
		s.Equal(id.RecipientID("alice"), receipt.RecipientID)
		s.Equal(msg.CreatedAt, receipt.CreatedAt)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.MessagesSubmitted))
	})

	s.Run("whitespace only text is empty", func() {
		_, err := s.service.Submit(ctx, "alice", " \t\n ")
		s.True(dErrors.HasCode(err, dErrors.CodeEmptyMessage))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SubmitFailures.WithLabelValues(metrics.ReasonEmpty)))
	})

	s.Run("literal empty text is empty and never reaches the store", func() {
		_, err := s.service.Submit(ctx, "alice", "")
		s.True(dErrors.HasCode(err, dErrors.CodeEmptyMessage))
		s.Equal(2.0, promtest.ToFloat64(s.metrics.SubmitFailures.WithLabelValues(metrics.ReasonEmpty)))
	})

	s.Run("invalid recipient is a validation error", func() {
		_, err := s.service.Submit(ctx, "not/valid", "hello")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown recipient is still accepted", func() {
		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				return stored(draft), nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		receipt, err := s.service.Submit(ctx, "nobody-registered", "hello")
		s.Require().NoError(err)
		s.Equal(id.RecipientID("nobody-registered"), receipt.RecipientID)
	})

	s.Run("store failure is send failed and nothing is published", func() {
		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrUnavailable)

		_, err := s.service.Submit(ctx, "alice", "hello")
		s.True(dErrors.HasCode(err, dErrors.CodeSendFailed))
		s.ErrorIs(err, sentinel.ErrUnavailable)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.SubmitFailures.WithLabelValues(metrics.ReasonStore)))
	})

	s.Run("feed failure does not fail a stored message", func() {
		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				return stored(draft), nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := s.service.Submit(ctx, "alice", "hello")
		s.NoError(err)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.FeedPublishFailures))
	})

	s.Run("audit failure does not fail a stored message", func() {
		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				return stored(draft), nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))

		_, err := s.service.Submit(ctx, "alice", "hello")
		s.NoError(err)
	})
}

func (s *RelayServiceSuite) TestSubmitProvenanceFallback() {
	ctx := requestcontext.WithClientMetadata(context.Background(), "", "curl/8.5.0")

	s.Run("failed lookup records unknown ip", func() {
		failing := provenance.LookupFunc(func(context.Context) (models.Provenance, error) {
			return models.Provenance{}, provenance.ErrLookupFailed
		})
		svc := s.newService(WithProvenance(failing, time.Second))

		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				s.Equal(models.Unknown, draft.Provenance.IP)
				s.NotEmpty(draft.Provenance.Client)
				return stored(draft), nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := svc.Submit(ctx, "alice", "hello")
		s.Require().NoError(err)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.ProvenanceFallbacks))
	})

	s.Run("slow lookup does not hold the send", func() {
		slow := provenance.LookupFunc(func(ctx context.Context) (models.Provenance, error) {
			<-ctx.Done()
			return models.Provenance{}, ctx.Err()
		})
		svc := s.newService(WithProvenance(slow, 20*time.Millisecond))

		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				s.Equal(models.Unknown, draft.Provenance.IP)
				return stored(draft), nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		start := time.Now()
		_, err := svc.Submit(ctx, "alice", "hello")
		s.Require().NoError(err)
		s.Less(time.Since(start), time.Second)
	})
}

func (s *RelayServiceSuite) TestSubmitLengthCap() {
	svc := s.newService(WithMaxLength(5))

	s.Run("over the cap is rejected", func() {
		_, err := svc.Submit(context.Background(), "alice", "toolong")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.MessageOf(err), "5 characters")
	})

	s.Run("cap counts characters not bytes", func() {
		s.messages.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, draft models.Draft) (*models.Message, error) {
				return stored(draft), nil
			})
		s.feed.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		_, err := svc.Submit(context.Background(), "alice", strings.Repeat("é", 5))
		s.NoError(err)
	})
}
