package domain

import "time"

// RefreshTokenRecord is the server-side handle for an issued refresh token.
// Only the sha256 hash of the signed token is stored, never the raw value.
// Records are never deleted; revocation sets RevokedAt.
type RefreshTokenRecord struct {
	ID        int64
	TokenHash string
	UserID    int64
	UserAgent string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Active reports whether the record still validates at the given instant.
func (r RefreshTokenRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}
