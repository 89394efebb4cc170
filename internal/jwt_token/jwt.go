package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "whisper/pkg/domain-errors"
	authmw "whisper/pkg/platform/middleware/auth"
	platformstrings "whisper/pkg/platform/strings"
)

// Claims represents the JWT claims for user tokens and console capabilities.
type Claims struct {
	Kind   string   `json:"kind"`
	Scopes []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 tokens for one issuer and audience.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

// GenerateUserToken signs a token naming the inbox owner as subject. In
// production user tokens come from the identity provider sharing the key;
// this path serves local development and tests.
func (s *JWTService) GenerateUserToken(userID string, expiresIn time.Duration) (string, error) {
	token, _, err := s.sign(authmw.KindUser, userID, nil, expiresIn)
	return token, err
}

// GenerateCapability signs a short-lived console capability for operatorID
// carrying the given scopes. The returned time is the token's exp claim.
func (s *JWTService) GenerateCapability(operatorID string, scopes []string, expiresIn time.Duration) (string, time.Time, error) {
	return s.sign(authmw.KindCapability, operatorID, scopes, expiresIn)
}

func (s *JWTService) sign(kind, subject string, scopes []string, ttl time.Duration) (string, time.Time, error) {
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)
	claims := Claims{Kind: kind, Scopes: platformstrings.Tokens(scopes)}
	claims.Subject = subject
	claims.Issuer = s.issuer
	claims.Audience = jwt.ClaimStrings{s.audience}
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (s *JWTService) key(token *jwt.Token) (any, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, jwt.ErrTokenUnverifiable
	}
	return s.signingKey, nil
}

// ValidateToken checks signature, issuer, audience and expiry. Every failure
// is reported as CodeUnauthorized.
func (s *JWTService) ValidateToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.key,
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	case claims.Subject == "":
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
