package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/oauth"
	pw "github.com/inkwellhq/inkwell/internal/password"
	"github.com/inkwellhq/inkwell/internal/repository"
	"github.com/inkwellhq/inkwell/internal/token"
)

// Session is the result of a successful login or refresh: the resolved user
// plus a fresh token pair for cookie transport.
type Session struct {
	User         domain.User
	AccessToken  string
	RefreshToken string
}

// AuthService orchestrates login, refresh, and logout flows on top of the
// token service and the provider exchangers.
type AuthService struct {
	users  repository.UserRepository
	tokens *token.Service
	oauth  *oauth.Exchanger
	onetap *oauth.OneTapVerifier
	logger *zap.Logger
	tracer trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(users repository.UserRepository, tokens *token.Service, exchanger *oauth.Exchanger, onetap *oauth.OneTapVerifier, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		oauth:  exchanger,
		onetap: onetap,
		logger: logger,
		tracer: otel.Tracer("github.com/inkwellhq/inkwell/internal/service"),
	}
}

// LoginWithOAuthCallback completes a redirect-flow login: structural state
// check, code exchange, user upsert, session issuance.
func (s *AuthService) LoginWithOAuthCallback(ctx context.Context, providerName domain.Provider, code, state, userAgent string) (Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LoginWithOAuthCallback")
	defer span.End()

	if err := oauth.ValidateState(state); err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	var claims oauth.Claims
	var err error
	switch providerName {
	case domain.ProviderGoogle:
		claims, err = s.oauth.ExchangeGoogleCode(ctx, code)
	case domain.ProviderGitHub:
		claims, err = s.oauth.ExchangeGitHubCode(ctx, code)
	default:
		err = fmt.Errorf("%w: unsupported provider %q", domain.ErrExchangeFailed, providerName)
	}
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	user, err := s.oauth.UpsertUser(ctx, claims)
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	session, err := s.issueSession(ctx, user, userAgent)
	if err == nil {
		s.audit("oauth.login.success", "provider", string(providerName), "user_id", user.ID)
	} else {
		span.RecordError(err)
	}
	return session, err
}

// LoginWithOneTap verifies a Google One-Tap credential and opens a session
// for the matching user, creating the account on first sight.
func (s *AuthService) LoginWithOneTap(ctx context.Context, credential, userAgent string) (Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LoginWithOneTap")
	defer span.End()

	claims, err := s.onetap.Verify(ctx, credential)
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	user, err := s.oauth.UpsertUser(ctx, claims)
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	session, err := s.issueSession(ctx, user, userAgent)
	if err == nil {
		s.audit("onetap.login.success", "user_id", user.ID)
	} else {
		span.RecordError(err)
	}
	return session, err
}

// LoginWithPassword authenticates an email/password account. Unknown email
// and wrong password collapse into the same error.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password, userAgent string) (Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.LoginWithPassword")
	defer span.End()

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, domain.ErrInvalidLogin
		}
		span.RecordError(err)
		return Session{}, fmt.Errorf("login load user: %w", err)
	}
	if user.PasswordHash == "" {
		return Session{}, domain.ErrInvalidLogin
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return Session{}, domain.ErrInvalidLogin
	}

	session, err := s.issueSession(ctx, user, userAgent)
	if err == nil {
		s.audit("password.login.success", "user_id", user.ID)
	} else {
		span.RecordError(err)
	}
	return session, err
}

// RefreshSession rotates the refresh token and mints a new access token.
// The presented token is revoked atomically; a token losing the rotation
// race surfaces as ErrInvalidRefreshToken.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken, userAgent string) (Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.RefreshSession")
	defer span.End()

	userID, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, domain.ErrInvalidRefreshToken
		}
		span.RecordError(err)
		return Session{}, fmt.Errorf("refresh load user: %w", err)
	}

	nextRefresh, err := s.tokens.RotateRefreshToken(ctx, userID, refreshToken, userAgent)
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}
	access, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		span.RecordError(err)
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}

	s.audit("refresh_token.success", "user_id", user.ID)
	return Session{User: user, AccessToken: access, RefreshToken: nextRefresh}, nil
}

// Logout revokes the presented refresh token. Best effort: a missing,
// malformed, or already revoked token is not an error, the client's cookies
// get cleared either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	ctx, span := s.startSpan(ctx, "AuthService.Logout")
	defer span.End()

	if refreshToken == "" {
		return
	}
	userID, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return
	}
	if err := s.tokens.RevokeToken(ctx, refreshToken, userID); err != nil {
		s.log().Warn("logout revoke failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	s.audit("logout.success", "user_id", userID)
}

// LogoutEverywhere revokes every active refresh token the user holds.
func (s *AuthService) LogoutEverywhere(ctx context.Context, userID int64) error {
	ctx, span := s.startSpan(ctx, "AuthService.LogoutEverywhere")
	defer span.End()

	if err := s.tokens.RevokeAllUserTokens(ctx, userID); err != nil {
		span.RecordError(err)
		return err
	}
	s.audit("logout_all.success", "user_id", userID)
	return nil
}

// CurrentUser loads the account behind a verified access token.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// IssueSessionForUser opens a session for an already loaded user.
func (s *AuthService) IssueSessionForUser(ctx context.Context, user domain.User, userAgent string) (Session, error) {
	return s.issueSession(ctx, user, userAgent)
}

// IssueSessionForUserID loads the user and opens a session.
func (s *AuthService) IssueSessionForUserID(ctx context.Context, userID int64, userAgent string) (Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	return s.issueSession(ctx, user, userAgent)
}

func (s *AuthService) issueSession(ctx context.Context, user domain.User, userAgent string) (Session, error) {
	access, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(ctx, user.ID, userAgent)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
