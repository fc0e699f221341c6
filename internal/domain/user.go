package domain

import "time"

// Role enumerates the access levels a user can hold.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Provider identifies the identity provider a user signed up with.
// Empty for password-only (admin) accounts.
type Provider string

const (
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

// User represents an authenticated account. The pair
// (Provider, ProviderAccountID) is unique when Provider is set; Email is
// always unique.
type User struct {
	ID                int64
	Email             string
	Name              string
	AvatarURL         string
	Role              Role
	PasswordHash      string
	Provider          Provider
	ProviderAccountID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
