package repository

import (
	"context"
	"time"

	"github.com/inkwellhq/inkwell/internal/domain"
)

// UserRepository exposes persistence for accounts.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID int64) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// UpsertByProviderIdentity inserts the user or, when the
	// (provider, provider_account_id) pair already exists, refreshes
	// email/name/avatar in a single atomic statement.
	UpsertByProviderIdentity(ctx context.Context, user domain.User) (domain.User, error)
}

// RefreshTokenRepository handles refresh token record persistence.
// Records are append-only apart from setting revoked_at.
type RefreshTokenRepository interface {
	Create(ctx context.Context, record domain.RefreshTokenRecord) (domain.RefreshTokenRecord, error)
	GetByHash(ctx context.Context, tokenHash string) (domain.RefreshTokenRecord, error)
	// RevokeByHash atomically revokes the record matching hash and user if it
	// is still active. Returns true when a row transitioned to revoked.
	RevokeByHash(ctx context.Context, tokenHash string, userID int64, revokedAt time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error)
}

// PostRepository exposes persistence for articles.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) (domain.Post, error)
	Update(ctx context.Context, post domain.Post) (domain.Post, error)
	GetByID(ctx context.Context, postID int64) (domain.Post, error)
	GetBySlug(ctx context.Context, slug string) (domain.Post, error)
	List(ctx context.Context, onlyPublished bool, categoryID int64, limit, offset int) ([]domain.Post, error)
	SetStatus(ctx context.Context, postID int64, status domain.PostStatus, publishedAt *time.Time) error
	Delete(ctx context.Context, postID int64) error
}

// CategoryRepository exposes persistence for post categories.
type CategoryRepository interface {
	Create(ctx context.Context, category domain.Category) (domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (domain.Category, error)
	List(ctx context.Context) ([]domain.Category, error)
}
