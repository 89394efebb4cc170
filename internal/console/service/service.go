// Package service exchanges the operator secret for a short-lived console
// capability. The secret is only ever compared server-side against its
// bcrypt hash.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"whisper/internal/audit"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/middleware/admin"
	"whisper/pkg/requestcontext"
)

// DefaultOperator is the capability subject when the caller names no operator.
const DefaultOperator = "console"

const defaultTTL = 15 * time.Minute

type CapabilityIssuer interface {
	// GenerateCapability returns the signed token and the expiry it carries.
	GenerateCapability(operatorID string, scopes []string, expiresIn time.Duration) (string, time.Time, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Capability is a signed bearer token for the console.
type Capability struct {
	Token     string
	Operator  string
	Scopes    []string
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

type Service struct {
	issuer         CapabilityIssuer
	secretHash     []byte
	ttl            time.Duration
	auditPublisher AuditPublisher
	logger         *slog.Logger
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

// WithTTL sets the capability lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New creates the issuer. An empty secretHash disables the console: every
// exchange is refused.
func New(issuer CapabilityIssuer, secretHash string, opts ...Option) (*Service, error) {
	if issuer == nil {
		return nil, errors.New("capability issuer is required")
	}
	if secretHash != "" {
		if _, err := bcrypt.Cost([]byte(secretHash)); err != nil {
			return nil, fmt.Errorf("operator secret hash: %w", err)
		}
	}
	s := &Service{
		issuer:     issuer,
		secretHash: []byte(secretHash),
		ttl:        defaultTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enabled reports whether an operator secret is configured.
func (s *Service) Enabled() bool {
	return len(s.secretHash) > 0
}

// Issue verifies secret and returns a report capability for operator.
func (s *Service) Issue(ctx context.Context, operator, secret string) (*Capability, error) {
	if operator == "" {
		operator = DefaultOperator
	}
	if !s.Enabled() {
		s.emit(ctx, audit.ActionCapabilityDenied, operator, "console disabled")
		return nil, dErrors.New(dErrors.CodeForbidden, "console is disabled")
	}
	if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)); err != nil {
		s.logger.WarnContext(ctx, "operator secret rejected",
			"request_id", requestcontext.RequestID(ctx),
			"operator_id", operator,
			"client_ip", requestcontext.ClientIP(ctx),
		)
		s.emit(ctx, audit.ActionCapabilityDenied, operator, "invalid secret")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid operator secret")
	}

	scopes := []string{admin.ScopeReportRead}
	token, expiresAt, err := s.issuer.GenerateCapability(operator, scopes, s.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue capability")
	}

	s.emit(ctx, audit.ActionCapabilityIssued, operator, admin.ScopeReportRead)
	s.logger.InfoContext(ctx, "console capability issued",
		"request_id", requestcontext.RequestID(ctx),
		"operator_id", operator,
		"expires_at", expiresAt,
	)
	return &Capability{
		Token:     token,
		Operator:  operator,
		Scopes:    scopes,
		ExpiresIn: s.ttl,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) emit(ctx context.Context, action audit.Action, operator, detail string) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(action),
		Subject:   "console",
		ActorID:   operator,
		RequestID: requestcontext.RequestID(ctx),
		Detail:    detail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"error", err,
		)
	}
}
