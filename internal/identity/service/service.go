package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"whisper/internal/identity/models"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/sentinel"
)

// UserStore is the read side of the identity directory.
type UserStore interface {
	FindByID(ctx context.Context, userID id.RecipientID) (*models.User, error)
	ListAll(ctx context.Context) ([]*models.User, error)
}

// Service answers directory questions for the public profile page and the
// owner's share link.
type Service struct {
	users  UserStore
	origin string
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New requires the public origin share links are built from.
func New(users UserStore, origin string, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if _, err := url.ParseRequestURI(origin); err != nil {
		return nil, errors.New("public origin must be an absolute URL")
	}
	s := &Service{users: users, origin: strings.TrimRight(origin, "/"), logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetProfile returns the public profile behind a share link.
func (s *Service) GetProfile(ctx context.Context, rawID string) (*models.Profile, error) {
	userID, err := id.ParseRecipientID(rawID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid recipient id")
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "recipient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recipient")
	}
	return u.Profile(), nil
}

// ShareLink builds <origin>/u/<recipientID>.
func (s *Service) ShareLink(userID id.RecipientID) string {
	return s.origin + "/u/" + url.PathEscape(string(userID))
}

// ListUsers returns the full directory snapshot.
func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.ListAll(ctx)
}
