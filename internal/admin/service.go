// Package admin authenticates the single administrator account and issues
// admin access tokens for the inspection endpoints.
package admin

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	jwttoken "ballot/internal/jwt_token"
	dErrors "ballot/pkg/domain-errors"
	"ballot/pkg/requestcontext"
)

var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")

// TokenIssuer signs admin access tokens.
type TokenIssuer interface {
	GenerateAdminToken(subject string, expiresIn time.Duration) (string, *jwttoken.AdminClaims, error)
}

// Token is a signed admin session.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type Service struct {
	username     string
	passwordHash string
	tokens       TokenIssuer
	ttl          time.Duration
	logger       *slog.Logger
}

// New builds the login service. An empty passwordHash disables login.
func New(username, passwordHash string, tokens TokenIssuer, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		username:     username,
		passwordHash: passwordHash,
		tokens:       tokens,
		ttl:          ttl,
		logger:       logger,
	}
}

// Login checks the credentials and returns an admin token. Unknown usernames
// and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	requestID := requestcontext.RequestID(ctx)
	if s.passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeForbidden, "admin login is not configured")
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// The hash is always compared so a wrong username costs the same as a wrong password.
	if err := verifyPassword(password, s.passwordHash); err != nil || !userOK {
		if err != nil && err != errInvalidCredentials {
			s.logger.ErrorContext(ctx, "admin password verification failed",
				"request_id", requestID,
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "login failed")
		}
		s.logger.WarnContext(ctx, "admin login rejected",
			"request_id", requestID,
			"client_ip", requestcontext.ClientIP(ctx),
		)
		return nil, errInvalidCredentials
	}

	token, claims, err := s.tokens.GenerateAdminToken(s.username, s.ttl)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue admin token")
	}
	s.logger.InfoContext(ctx, "admin logged in",
		"request_id", requestID,
		"admin", s.username,
	)
	return &Token{AccessToken: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
