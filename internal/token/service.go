package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/config"
	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/repository"
)

var allowedAlgorithms = []gojose.SignatureAlgorithm{gojose.HS256}

// Service mints, verifies, rotates, and revokes session tokens. Access and
// refresh tokens are signed with distinct secrets so one kind can never pass
// verification as the other.
type Service struct {
	records       repository.RefreshTokenRepository
	node          *snowflake.Node
	accessSigner  gojose.Signer
	refreshSigner gojose.Signer
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	secureCookies bool
	logger        *zap.Logger

	// now is swapped in tests to simulate clock movement.
	now func() time.Time
}

// NewService constructs the token service. Signer construction fails only on
// secret misconfiguration, which aborts process start.
func NewService(cfg config.Config, records repository.RefreshTokenRepository, node *snowflake.Node, logger *zap.Logger) (*Service, error) {
	accessSigner, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: cfg.AccessTokenSecret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("access token signer: %w", err)
	}
	refreshSigner, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: cfg.RefreshTokenSecret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("refresh token signer: %w", err)
	}

	return &Service{
		records:       records,
		node:          node,
		accessSigner:  accessSigner,
		refreshSigner: refreshSigner,
		accessSecret:  cfg.AccessTokenSecret,
		refreshSecret: cfg.RefreshTokenSecret,
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		secureCookies: !cfg.IsDevelopment(),
		logger:        logger,
		now:           time.Now,
	}, nil
}

// IssueAccessToken signs a short-lived stateless assertion of the user id.
func (s *Service) IssueAccessToken(userID int64) (string, error) {
	return s.sign(s.accessSigner, userID, s.accessTTL, "")
}

// IssueRefreshToken signs a refresh token and persists its hashed record.
// The raw signed token is returned for cookie transport; only the sha256
// hash ever reaches the store. A snowflake jti makes every issued token
// unique even within the same wall-clock second, so no two records can
// ever share a hash.
func (s *Service) IssueRefreshToken(ctx context.Context, userID int64, userAgent string) (string, error) {
	id := s.node.Generate()
	raw, err := s.sign(s.refreshSigner, userID, s.refreshTTL, id.String())
	if err != nil {
		return "", err
	}

	record := domain.RefreshTokenRecord{
		ID:        id.Int64(),
		TokenHash: HashToken(raw),
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if _, err := s.records.Create(ctx, record); err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}
	return raw, nil
}

// VerifyAccessToken checks signature and expiry only; no store lookup.
// Expired tokens surface gojwt.ErrExpired in the error chain so the HTTP
// boundary can distinguish expiry from malformation.
func (s *Service) VerifyAccessToken(token string) (int64, error) {
	userID, err := s.verify(token, s.accessSecret)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidAccessToken, err)
	}
	return userID, nil
}

// VerifyRefreshToken checks signature and expiry, then requires a live store
// record: same user, not revoked, not past expiry. Either failure yields
// ErrInvalidRefreshToken.
func (s *Service) VerifyRefreshToken(ctx context.Context, token string) (int64, error) {
	userID, err := s.verify(token, s.refreshSecret)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidRefreshToken, err)
	}

	record, err := s.records.GetByHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInvalidRefreshToken
		}
		return 0, fmt.Errorf("lookup refresh token: %w", err)
	}
	if record.UserID != userID || !record.Active(s.now()) {
		return 0, domain.ErrInvalidRefreshToken
	}
	return userID, nil
}

// RotateRefreshToken revokes the predecessor and issues a successor. The
// revoke is a single conditional update, so of two racing rotations on the
// same token exactly one succeeds; the other gets ErrInvalidRefreshToken.
// A successful rotation restarts the refresh window from now.
func (s *Service) RotateRefreshToken(ctx context.Context, userID int64, oldToken, userAgent string) (string, error) {
	revoked, err := s.records.RevokeByHash(ctx, HashToken(oldToken), userID, s.now())
	if err != nil {
		return "", fmt.Errorf("revoke predecessor: %w", err)
	}
	if !revoked {
		return "", domain.ErrInvalidRefreshToken
	}
	return s.IssueRefreshToken(ctx, userID, userAgent)
}

// RevokeToken marks the matching active record revoked. A missing or already
// revoked record is a no-op, not an error.
func (s *Service) RevokeToken(ctx context.Context, rawToken string, userID int64) error {
	if _, err := s.records.RevokeByHash(ctx, HashToken(rawToken), userID, s.now()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAllUserTokens revokes every active record for the user.
func (s *Service) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	count, err := s.records.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	s.log().Info("revoked all refresh tokens",
		zap.Int64("user_id", userID),
		zap.Int64("count", count),
	)
	return nil
}

func (s *Service) sign(signer gojose.Signer, userID int64, ttl time.Duration, jti string) (string, error) {
	now := s.now().UTC()
	claims := gojwt.Claims{
		ID:        jti,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := gojwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return token, nil
}

func (s *Service) verify(token string, secret []byte) (int64, error) {
	parsed, err := gojwt.ParseSigned(token, allowedAlgorithms)
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}
	var claims gojwt.Claims
	if err := parsed.Claims(secret, &claims); err != nil {
		return 0, fmt.Errorf("verify signature: %w", err)
	}
	if err := claims.ValidateWithLeeway(gojwt.Expected{Time: s.now()}, 0); err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid subject claim")
	}
	return userID, nil
}

func (s *Service) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// HashToken computes the one-way hash under which refresh tokens are stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
