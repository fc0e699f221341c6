package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/config"
	"github.com/inkwellhq/inkwell/internal/domain"
)

type memRecords struct {
	mu      sync.Mutex
	records map[string]domain.RefreshTokenRecord
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[string]domain.RefreshTokenRecord)}
}

func (r *memRecords) Create(ctx context.Context, record domain.RefreshTokenRecord) (domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.CreatedAt = time.Now()
	r.records[record.TokenHash] = record
	return record, nil
}

func (r *memRecords) GetByHash(ctx context.Context, tokenHash string) (domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[tokenHash]
	if !ok {
		return domain.RefreshTokenRecord{}, pgx.ErrNoRows
	}
	return record, nil
}

func (r *memRecords) RevokeByHash(ctx context.Context, tokenHash string, userID int64, revokedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[tokenHash]
	if !ok || record.UserID != userID || record.RevokedAt != nil || !revokedAt.Before(record.ExpiresAt) {
		return false, nil
	}
	record.RevokedAt = &revokedAt
	r.records[tokenHash] = record
	return true, nil
}

func (r *memRecords) RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for hash, record := range r.records {
		if record.UserID == userID && record.RevokedAt == nil {
			record.RevokedAt = &revokedAt
			r.records[hash] = record
			count++
		}
	}
	return count, nil
}

func newTestService(t *testing.T) (*Service, *memRecords) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Environment:        "test",
		AccessTokenSecret:  []byte("access-secret-0123456789-0123456789"),
		RefreshTokenSecret: []byte("refresh-secret-0123456789-012345678"),
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
	}
	records := newMemRecords()
	svc, err := NewService(cfg, records, node, zap.NewNop())
	require.NoError(t, err)
	return svc, records
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueAccessToken(42)
	require.NoError(t, err)

	userID, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestAccessTokenExpires(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueAccessToken(42)
	require.NoError(t, err)

	base := time.Now()
	svc.now = func() time.Time { return base.Add(16 * time.Minute) }

	_, err = svc.VerifyAccessToken(token)
	require.ErrorIs(t, err, domain.ErrInvalidAccessToken)
	require.ErrorIs(t, err, gojwt.ErrExpired)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	svc, _ := newTestService(t)

	refresh, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	// A refresh token outlives any access token, so it must never pass
	// access verification.
	_, err = svc.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, domain.ErrInvalidAccessToken)

	access, err := svc.IssueAccessToken(42)
	require.NoError(t, err)
	_, err = svc.VerifyRefreshToken(context.Background(), access)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	userID, err := svc.VerifyRefreshToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestRefreshTokenUnknownToStore(t *testing.T) {
	svc, records := newTestService(t)

	token, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	records.mu.Lock()
	delete(records.records, HashToken(token))
	records.mu.Unlock()

	_, err = svc.VerifyRefreshToken(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRefreshTokenExpiresWithStoreRecord(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	base := time.Now()
	svc.now = func() time.Time { return base.Add(8 * 24 * time.Hour) }

	_, err = svc.VerifyRefreshToken(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRotateRefreshToken(t *testing.T) {
	svc, _ := newTestService(t)

	old, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	next, err := svc.RotateRefreshToken(context.Background(), 42, old, "cli")
	require.NoError(t, err)
	require.NotEqual(t, old, next)

	_, err = svc.VerifyRefreshToken(context.Background(), old)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	userID, err := svc.VerifyRefreshToken(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestRefreshTokensDifferWithinSameInstant(t *testing.T) {
	svc, _ := newTestService(t)

	// Freeze the clock: signing is deterministic, so without a unique jti
	// two tokens minted at the same instant would be byte-identical and
	// collide on the hashed record.
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	first, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)
	second, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.NotEqual(t, HashToken(first), HashToken(second))

	next, err := svc.RotateRefreshToken(context.Background(), 42, first, "cli")
	require.NoError(t, err)
	require.NotEqual(t, first, next)

	_, err = svc.VerifyRefreshToken(context.Background(), first)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	userID, err := svc.VerifyRefreshToken(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestRotateRefreshTokenRace(t *testing.T) {
	svc, _ := newTestService(t)

	old, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for range attempts {
		go func() {
			start.Wait()
			_, err := svc.RotateRefreshToken(context.Background(), 42, old, "cli")
			results <- err
		}()
	}
	start.Done()

	var successes, invalid int
	for range attempts {
		err := <-results
		switch {
		case err == nil:
			successes++
		default:
			require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
			invalid++
		}
	}
	require.Equal(t, 1, successes, "exactly one racing rotation may win")
	require.Equal(t, attempts-1, invalid)
}

func TestRevokeTokenIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(context.Background(), token, 42))
	require.NoError(t, svc.RevokeToken(context.Background(), token, 42))
	require.NoError(t, svc.RevokeToken(context.Background(), "never-issued", 42))

	_, err = svc.VerifyRefreshToken(context.Background(), token)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
}

func TestRevokeTokenRequiresMatchingUser(t *testing.T) {
	svc, _ := newTestService(t)

	token, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)

	// Another user's revoke attempt leaves the record active.
	require.NoError(t, svc.RevokeToken(context.Background(), token, 43))

	_, err = svc.VerifyRefreshToken(context.Background(), token)
	require.NoError(t, err)
}

func TestRevokeAllUserTokens(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.IssueRefreshToken(context.Background(), 42, "cli")
	require.NoError(t, err)
	second, err := svc.IssueRefreshToken(context.Background(), 42, "browser")
	require.NoError(t, err)
	other, err := svc.IssueRefreshToken(context.Background(), 7, "cli")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllUserTokens(context.Background(), 42))

	_, err = svc.VerifyRefreshToken(context.Background(), first)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	_, err = svc.VerifyRefreshToken(context.Background(), second)
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)
	_, err = svc.VerifyRefreshToken(context.Background(), other)
	require.NoError(t, err)
}
