package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkwellhq/inkwell/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
	_ PostRepository         = (*PostgresPostRepo)(nil)
	_ CategoryRepository     = (*PostgresCategoryRepo)(nil)
)

const userColumns = `id, email, name, avatar_url, role, password_hash, provider, provider_account_id, created_at, updated_at`

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, email, name, avatar_url, role, password_hash, provider, provider_account_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		string(user.Role),
		nullString(user.PasswordHash),
		nullString(string(user.Provider)),
		nullString(user.ProviderAccountID),
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

const upsertUserSQL = `INSERT INTO users (id, email, name, avatar_url, role, provider, provider_account_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (provider, provider_account_id) WHERE provider IS NOT NULL
DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, updated_at = now()
RETURNING ` + userColumns

func (r *PostgresUserRepo) UpsertByProviderIdentity(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, upsertUserSQL,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		string(user.Role),
		string(user.Provider),
		user.ProviderAccountID,
	)
	upserted, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return upserted, nil
}

// PostgresRefreshTokenRepo implements RefreshTokenRepository.
type PostgresRefreshTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresRefreshTokenRepo(pool *pgxpool.Pool) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: pool}
}

const insertRefreshTokenSQL = `INSERT INTO refresh_tokens (id, token_hash, user_id, user_agent, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, token_hash, user_id, user_agent, expires_at, revoked_at, created_at`

func (r *PostgresRefreshTokenRepo) Create(ctx context.Context, record domain.RefreshTokenRecord) (domain.RefreshTokenRecord, error) {
	row := r.db.QueryRow(ctx, insertRefreshTokenSQL,
		record.ID,
		record.TokenHash,
		record.UserID,
		record.UserAgent,
		record.ExpiresAt,
	)
	created, err := scanRefreshToken(row)
	if err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("create refresh token: %w", err)
	}
	return created, nil
}

func (r *PostgresRefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (domain.RefreshTokenRecord, error) {
	const query = `SELECT id, token_hash, user_id, user_agent, expires_at, revoked_at, created_at
FROM refresh_tokens WHERE token_hash = $1`
	record, err := scanRefreshToken(r.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		return domain.RefreshTokenRecord{}, fmt.Errorf("get refresh token: %w", err)
	}
	return record, nil
}

// RevokeByHash is a single conditional UPDATE so that two racing rotations of
// the same token cannot both succeed.
func (r *PostgresRefreshTokenRepo) RevokeByHash(ctx context.Context, tokenHash string, userID int64, revokedAt time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $3
WHERE token_hash = $1 AND user_id = $2 AND revoked_at IS NULL AND expires_at > $3`
	tag, err := r.db.Exec(ctx, query, tokenHash, userID, revokedAt)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2
WHERE user_id = $1 AND revoked_at IS NULL`
	tag, err := r.db.Exec(ctx, query, userID, revokedAt)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

const postColumns = `id, title, slug, excerpt, body, cover_image_url, category_id, author_id, status, published_at, created_at, updated_at`

// PostgresPostRepo implements PostRepository.
type PostgresPostRepo struct {
	db *pgxpool.Pool
}

func NewPostgresPostRepo(pool *pgxpool.Pool) *PostgresPostRepo {
	return &PostgresPostRepo{db: pool}
}

const insertPostSQL = `INSERT INTO posts (id, title, slug, excerpt, body, cover_image_url, category_id, author_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + postColumns

func (r *PostgresPostRepo) Create(ctx context.Context, post domain.Post) (domain.Post, error) {
	row := r.db.QueryRow(ctx, insertPostSQL,
		post.ID,
		post.Title,
		post.Slug,
		post.Excerpt,
		post.Body,
		post.CoverImageURL,
		post.CategoryID,
		post.AuthorID,
		string(post.Status),
	)
	created, err := scanPost(row)
	if err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	return created, nil
}

const updatePostSQL = `UPDATE posts
SET title = $2, slug = $3, excerpt = $4, body = $5, cover_image_url = $6, category_id = $7, updated_at = now()
WHERE id = $1
RETURNING ` + postColumns

func (r *PostgresPostRepo) Update(ctx context.Context, post domain.Post) (domain.Post, error) {
	row := r.db.QueryRow(ctx, updatePostSQL,
		post.ID,
		post.Title,
		post.Slug,
		post.Excerpt,
		post.Body,
		post.CoverImageURL,
		post.CategoryID,
	)
	updated, err := scanPost(row)
	if err != nil {
		return domain.Post{}, fmt.Errorf("update post: %w", err)
	}
	return updated, nil
}

func (r *PostgresPostRepo) GetByID(ctx context.Context, postID int64) (domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRow(ctx, query, postID))
	if err != nil {
		return domain.Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (r *PostgresPostRepo) GetBySlug(ctx context.Context, slug string) (domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE slug = $1`
	post, err := scanPost(r.db.QueryRow(ctx, query, slug))
	if err != nil {
		return domain.Post{}, fmt.Errorf("get post by slug: %w", err)
	}
	return post, nil
}

func (r *PostgresPostRepo) List(ctx context.Context, onlyPublished bool, categoryID int64, limit, offset int) ([]domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE ($1 = false OR status = 'PUBLISHED') AND ($2 = 0 OR category_id = $2)
ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := r.db.Query(ctx, query, onlyPublished, categoryID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("list posts: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *PostgresPostRepo) SetStatus(ctx context.Context, postID int64, status domain.PostStatus, publishedAt *time.Time) error {
	const query = `UPDATE posts SET status = $2, published_at = $3, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, postID, string(status), publishedAt); err != nil {
		return fmt.Errorf("set post status: %w", err)
	}
	return nil
}

func (r *PostgresPostRepo) Delete(ctx context.Context, postID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// PostgresCategoryRepo implements CategoryRepository.
type PostgresCategoryRepo struct {
	db *pgxpool.Pool
}

func NewPostgresCategoryRepo(pool *pgxpool.Pool) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: pool}
}

func (r *PostgresCategoryRepo) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	const query = `INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)
RETURNING id, name, slug, created_at`
	var created domain.Category
	if err := r.db.QueryRow(ctx, query, category.ID, category.Name, category.Slug).Scan(
		&created.ID, &created.Name, &created.Slug, &created.CreatedAt,
	); err != nil {
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (r *PostgresCategoryRepo) GetBySlug(ctx context.Context, slug string) (domain.Category, error) {
	const query = `SELECT id, name, slug, created_at FROM categories WHERE slug = $1`
	var category domain.Category
	if err := r.db.QueryRow(ctx, query, slug).Scan(
		&category.ID, &category.Name, &category.Slug, &category.CreatedAt,
	); err != nil {
		return domain.Category{}, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

func (r *PostgresCategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Slug, &category.CreatedAt); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		user              domain.User
		role              string
		passwordHash      sql.NullString
		provider          sql.NullString
		providerAccountID sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&role,
		&passwordHash,
		&provider,
		&providerAccountID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	user.PasswordHash = passwordHash.String
	user.Provider = domain.Provider(provider.String)
	user.ProviderAccountID = providerAccountID.String
	return user, nil
}

func scanRefreshToken(row rowScanner) (domain.RefreshTokenRecord, error) {
	var (
		record    domain.RefreshTokenRecord
		revokedAt sql.NullTime
	)
	if err := row.Scan(
		&record.ID,
		&record.TokenHash,
		&record.UserID,
		&record.UserAgent,
		&record.ExpiresAt,
		&revokedAt,
		&record.CreatedAt,
	); err != nil {
		return domain.RefreshTokenRecord{}, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		record.RevokedAt = &t
	}
	return record, nil
}

func scanPost(row rowScanner) (domain.Post, error) {
	var (
		post        domain.Post
		status      string
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Slug,
		&post.Excerpt,
		&post.Body,
		&post.CoverImageURL,
		&post.CategoryID,
		&post.AuthorID,
		&status,
		&publishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		return domain.Post{}, err
	}
	post.Status = domain.PostStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return post, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
