package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"whisper/internal/identity/models"
	"whisper/internal/identity/service/mocks"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/sentinel"
)

type IdentityServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	users   *mocks.MockUserStore
	service *Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserStore(s.ctrl)
	svc, err := New(s.users, "https://whisper.example/")
	s.Require().NoError(err)
	s.service = svc
}

func (s *IdentityServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *IdentityServiceSuite) TestNew() {
	s.Run("nil store", func() {
		_, err := New(nil, "https://whisper.example")
		s.ErrorContains(err, "user store is required")
	})
	s.Run("relative origin", func() {
		_, err := New(s.users, "whisper.example")
		s.ErrorContains(err, "absolute URL")
	})
}

func (s *IdentityServiceSuite) TestGetProfile() {
	ctx := context.Background()

	s.Run("returns public fields only", func() {
		s.users.EXPECT().FindByID(gomock.Any(), id.RecipientID("alice")).Return(&models.User{
			ID: "alice", DisplayName: "Alice", AvatarURL: "https://img.example/a.png", Email: "alice@example.com",
		}, nil)

		profile, err := s.service.GetProfile(ctx, "alice")
		s.Require().NoError(err)
		s.Equal("Alice", profile.DisplayName)
		s.Equal("https://img.example/a.png", profile.AvatarURL)
	})

	s.Run("invalid id is a validation error without a lookup", func() {
		_, err := s.service.GetProfile(ctx, "../etc/passwd")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown id is not found", func() {
		s.users.EXPECT().FindByID(gomock.Any(), id.RecipientID("ghost")).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.GetProfile(ctx, "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failure is internal", func() {
		s.users.EXPECT().FindByID(gomock.Any(), id.RecipientID("alice")).Return(nil, errors.New("boom"))
		_, err := s.service.GetProfile(ctx, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *IdentityServiceSuite) TestShareLink() {
	s.Equal("https://whisper.example/u/alice_01", s.service.ShareLink("alice_01"))
}
