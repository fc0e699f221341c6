package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	gojose "github.com/go-jose/go-jose/v4"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/adapter/provider"
	"github.com/inkwellhq/inkwell/internal/config"
	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/oauth"
	pw "github.com/inkwellhq/inkwell/internal/password"
	"github.com/inkwellhq/inkwell/internal/token"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[int64]domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]domain.User)}
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *memUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r *memUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) UpsertByProviderIdentity(ctx context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.users {
		if existing.Provider == user.Provider && existing.ProviderAccountID == user.ProviderAccountID {
			existing.Email = user.Email
			existing.Name = user.Name
			existing.AvatarURL = user.AvatarURL
			r.users[id] = existing
			return existing, nil
		}
	}
	r.users[user.ID] = user
	return user, nil
}

type memTokenRepo struct {
	mu      sync.Mutex
	records map[string]domain.RefreshTokenRecord
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{records: make(map[string]domain.RefreshTokenRecord)}
}

func (r *memTokenRepo) Create(ctx context.Context, record domain.RefreshTokenRecord) (domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.CreatedAt = time.Now()
	r.records[record.TokenHash] = record
	return record, nil
}

func (r *memTokenRepo) GetByHash(ctx context.Context, tokenHash string) (domain.RefreshTokenRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[tokenHash]
	if !ok {
		return domain.RefreshTokenRecord{}, pgx.ErrNoRows
	}
	return record, nil
}

func (r *memTokenRepo) RevokeByHash(ctx context.Context, tokenHash string, userID int64, revokedAt time.Time) (bool, error) {
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

func (r *memTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
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

func (r *memTokenRepo) activeCount(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, record := range r.records {
		if record.UserID == userID && record.RevokedAt == nil {
			n++
		}
	}
	return n
}

type stubProviderClient struct {
	googleProfile provider.GoogleProfile
}

func (c *stubProviderClient) ExchangeGoogleCode(ctx context.Context, code string) (*provider.TokenResponse, error) {
	return &provider.TokenResponse{AccessToken: "upstream-token"}, nil
}

func (c *stubProviderClient) FetchGoogleUserInfo(ctx context.Context, accessToken string) (*provider.GoogleProfile, error) {
	profile := c.googleProfile
	return &profile, nil
}

func (c *stubProviderClient) ExchangeGitHubCode(ctx context.Context, code string) (*provider.TokenResponse, error) {
	return &provider.TokenResponse{AccessToken: "upstream-token"}, nil
}

func (c *stubProviderClient) FetchGitHubUser(ctx context.Context, accessToken string) (*provider.GitHubProfile, error) {
	return &provider.GitHubProfile{ID: 7, Login: "octocat", Email: "octo@example.com"}, nil
}

func (c *stubProviderClient) FetchGitHubEmails(ctx context.Context, accessToken string) ([]provider.GitHubEmail, error) {
	return nil, nil
}

type authFixture struct {
	svc    *AuthService
	users  *memUserRepo
	tokens *memTokenRepo
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := newMemUserRepo()
	tokens := newMemTokenRepo()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{
		Environment:        "test",
		AccessTokenSecret:  []byte("access-secret-0123456789-0123456789"),
		RefreshTokenSecret: []byte("refresh-secret-0123456789-012345678"),
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
	}
	tokenSvc, err := token.NewService(cfg, tokens, node, zap.NewNop())
	require.NoError(t, err)

	client := &stubProviderClient{googleProfile: provider.GoogleProfile{
		Sub:   "108123456789",
		Email: "reader@example.com",
		Name:  "Reader",
	}}
	exchanger := oauth.NewExchanger(client, users, node, zap.NewNop())
	onetap := oauth.NewOneTapVerifier(&staticKeySource{}, "client-id")

	return &authFixture{
		svc:    NewAuthService(users, tokenSvc, exchanger, onetap, zap.NewNop()),
		users:  users,
		tokens: tokens,
	}
}

type staticKeySource struct{}

func (s *staticKeySource) Keys(ctx context.Context) (*gojose.JSONWebKeySet, error) {
	return &gojose.JSONWebKeySet{}, nil
}

func (f *authFixture) seedPasswordUser(t *testing.T, email, password string) domain.User {
	t.Helper()
	hash, err := pw.Hash(password)
	require.NoError(t, err)
	user := domain.User{
		ID:           100,
		Email:        email,
		Name:         "Admin",
		Role:         domain.RoleAdmin,
		PasswordHash: hash,
	}
	_, err = f.users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestLoginWithPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	session, err := f.svc.LoginWithPassword(context.Background(), " Admin@Example.com ", "correct horse battery", "cli")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.Equal(t, int64(100), session.User.ID)
	require.Equal(t, 1, f.tokens.activeCount(100))
}

func TestLoginWithPasswordWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	_, err := f.svc.LoginWithPassword(context.Background(), "admin@example.com", "wrong", "cli")
	require.ErrorIs(t, err, domain.ErrInvalidLogin)
}

func TestLoginWithPasswordUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.LoginWithPassword(context.Background(), "nobody@example.com", "anything", "cli")
	require.ErrorIs(t, err, domain.ErrInvalidLogin)
}

func TestLoginWithOAuthCallback(t *testing.T) {
	f := newAuthFixture(t)

	session, err := f.svc.LoginWithOAuthCallback(context.Background(), domain.ProviderGoogle, "code123", "validstate99", "browser")
	require.NoError(t, err)
	require.Equal(t, "reader@example.com", session.User.Email)
	require.Equal(t, domain.RoleUser, session.User.Role)
	require.NotEmpty(t, session.RefreshToken)

	// The same provider identity logs in again and keeps the same account.
	again, err := f.svc.LoginWithOAuthCallback(context.Background(), domain.ProviderGoogle, "code456", "validstate99", "browser")
	require.NoError(t, err)
	require.Equal(t, session.User.ID, again.User.ID)
}

func TestLoginWithOAuthCallbackRejectsBadState(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.LoginWithOAuthCallback(context.Background(), domain.ProviderGoogle, "code123", "bad state!", "browser")
	require.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.svc.LoginWithOAuthCallback(context.Background(), domain.ProviderGoogle, "code123", "", "browser")
	require.ErrorIs(t, err, domain.ErrMissingState)
}

func TestRefreshSessionRotates(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	session, err := f.svc.LoginWithPassword(context.Background(), "admin@example.com", "correct horse battery", "cli")
	require.NoError(t, err)

	refreshed, err := f.svc.RefreshSession(context.Background(), session.RefreshToken, "cli")
	require.NoError(t, err)
	require.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)

	// The predecessor was revoked by rotation and cannot be replayed.
	_, err = f.svc.RefreshSession(context.Background(), session.RefreshToken, "cli")
	require.ErrorIs(t, err, domain.ErrInvalidRefreshToken)

	// The successor still works.
	_, err = f.svc.RefreshSession(context.Background(), refreshed.RefreshToken, "cli")
	require.NoError(t, err)
}

func TestIssueSessionForUser(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	session, err := f.svc.IssueSessionForUser(context.Background(), user, "cli")
	require.NoError(t, err)
	require.Equal(t, user.ID, session.User.ID)
	require.NotEmpty(t, session.AccessToken)
	require.NotEmpty(t, session.RefreshToken)
	require.Equal(t, 1, f.tokens.activeCount(user.ID))
}

func TestIssueSessionForUserID(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	session, err := f.svc.IssueSessionForUserID(context.Background(), user.ID, "cli")
	require.NoError(t, err)
	require.Equal(t, user.Email, session.User.Email)
	require.Equal(t, 1, f.tokens.activeCount(user.ID))

	_, err = f.svc.IssueSessionForUserID(context.Background(), 999, "cli")
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestLogoutIsBestEffort(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	session, err := f.svc.LoginWithPassword(context.Background(), "admin@example.com", "correct horse battery", "cli")
	require.NoError(t, err)

	// Garbage and empty tokens are silently ignored.
	f.svc.Logout(context.Background(), "not-a-token")
	f.svc.Logout(context.Background(), "")

	f.svc.Logout(context.Background(), session.RefreshToken)
	require.Zero(t, f.tokens.activeCount(100))

	// Logging out twice with the same token stays quiet.
	f.svc.Logout(context.Background(), session.RefreshToken)
}

func TestLogoutEverywhere(t *testing.T) {
	f := newAuthFixture(t)
	f.seedPasswordUser(t, "admin@example.com", "correct horse battery")

	for range 3 {
		_, err := f.svc.LoginWithPassword(context.Background(), "admin@example.com", "correct horse battery", "cli")
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.tokens.activeCount(100))

	require.NoError(t, f.svc.LogoutEverywhere(context.Background(), 100))
	require.Zero(t, f.tokens.activeCount(100))
}
