package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserReader,MessageReader,AuditPublisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"whisper/internal/audit"
	idmodels "whisper/internal/identity/models"
	msgmodels "whisper/internal/message/models"
	"whisper/internal/report/metrics"
	"whisper/internal/report/models"
	"whisper/internal/report/service/mocks"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/sentinel"
	"whisper/pkg/requestcontext"
)

type ReportServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	users    *mocks.MockUserReader
	messages *mocks.MockMessageReader
	auditor  *mocks.MockAuditPublisher
	metrics  *metrics.Metrics
	service  *Service
	base     time.Time
}

func TestReportServiceSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceSuite))
}

func (s *ReportServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserReader(s.ctrl)
	s.messages = mocks.NewMockMessageReader(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	svc, err := New(s.users, s.messages, WithAuditPublisher(s.auditor), WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.service = svc
	s.base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ReportServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ReportServiceSuite) message(recipient id.RecipientID, text string, offset time.Duration, seq uint64) *msgmodels.Message {
	return &msgmodels.Message{
		ID:          id.NewMessageID(),
		RecipientID: recipient,
		Text:        text,
		Provenance:  msgmodels.Provenance{IP: "192.0.2.1", Client: "Chrome on Windows"},
		CreatedAt:   s.base.Add(offset),
		Seq:         seq,
	}
}

func (s *ReportServiceSuite) TestNew() {
	_, err := New(nil, s.messages)
	s.ErrorContains(err, "user reader is required")
	_, err = New(s.users, nil)
	s.ErrorContains(err, "message reader is required")
}

func (s *ReportServiceSuite) TestBuildReport() {
	ctx := requestcontext.WithOperatorID(context.Background(), "operator-1")

	s.Run("joins every message newest first with orphans flagged", func() {
		s.users.EXPECT().ListAll(gomock.Any()).Return([]*idmodels.User{
			{ID: "alice", DisplayName: "Alice", Email: "alice@example.com", AvatarURL: "https://img.example/a.png"},
			{ID: "bob", DisplayName: "Bob", Email: "bob@example.com"},
		}, nil)
		s.messages.EXPECT().ListAll(gomock.Any()).Return([]*msgmodels.Message{
			s.message("alice", "oldest", 0, 1),
			s.message("ghost", "to nobody", time.Minute, 2),
			s.message("bob", "newest", 2*time.Minute, 3),
		}, nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, event audit.Event) error {
				s.Equal(string(audit.ActionReportGenerated), event.Action)
				s.Equal("operator-1", event.ActorID)
				s.Equal("rows=3 orphaned=1", event.Detail)
				return nil
			})

		rows, err := s.service.BuildReport(ctx)
		s.Require().NoError(err)
		s.Require().Len(rows, 3)

		s.Equal("newest", rows[0].Text)
		s.Equal("Bob", rows[0].DisplayName)
		s.False(rows[0].Orphaned)

		s.Equal("to nobody", rows[1].Text)
		s.Equal(models.UnknownDisplayName, rows[1].DisplayName)
		s.Equal(models.UnknownEmail, rows[1].Email)
		s.Empty(rows[1].AvatarURL)
		s.True(rows[1].Orphaned)

		s.Equal("oldest", rows[2].Text)
		s.Equal("alice@example.com", rows[2].Email)
		s.Equal("https://img.example/a.png", rows[2].AvatarURL)
		s.Equal("192.0.2.1", rows[2].Provenance.IP)

		s.Equal(1.0, promtest.ToFloat64(s.metrics.OrphanedRows))
		s.Equal(3.0, promtest.ToFloat64(s.metrics.RowsReported))
	})

	s.Run("equal timestamps keep store order", func() {
		s.users.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
		s.messages.EXPECT().ListAll(gomock.Any()).Return([]*msgmodels.Message{
			s.message("alice", "first stored", 0, 1),
			s.message("alice", "second stored", 0, 2),
		}, nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		rows, err := s.service.BuildReport(ctx)
		s.Require().NoError(err)
		s.Equal("first stored", rows[0].Text)
		s.Equal("second stored", rows[1].Text)
	})

	s.Run("empty store yields an empty report", func() {
		s.users.EXPECT().ListAll(gomock.Any()).Return([]*idmodels.User{{ID: "alice"}}, nil)
		s.messages.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		rows, err := s.service.BuildReport(ctx)
		s.Require().NoError(err)
		s.Empty(rows)
	})

	s.Run("audit failure does not fail the report", func() {
		s.users.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
		s.messages.EXPECT().ListAll(gomock.Any()).Return(nil, nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))

		_, err := s.service.BuildReport(ctx)
		s.NoError(err)
	})
}

func (s *ReportServiceSuite) TestBuildReportDirectoryFailure() {
	s.users.EXPECT().ListAll(gomock.Any()).Return(nil, sentinel.ErrUnavailable)
	s.messages.EXPECT().ListAll(gomock.Any()).Return(nil, nil).AnyTimes()

	rows, err := s.service.BuildReport(context.Background())
	s.Nil(rows)
	s.True(dErrors.HasCode(err, dErrors.CodeReportFailed))
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.ReportFailures))
}

func (s *ReportServiceSuite) TestBuildReportMessageStoreFailure() {
	s.users.EXPECT().ListAll(gomock.Any()).Return(nil, nil).AnyTimes()
	s.messages.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("scan aborted"))

	rows, err := s.service.BuildReport(context.Background())
	s.Nil(rows)
	s.True(dErrors.HasCode(err, dErrors.CodeReportFailed))
}
