package domain

import "errors"

// Authentication failure sentinels. HTTP handlers own the single exhaustive
// mapping from these to status codes or error redirects.
var (
	// ErrMissingState signals an OAuth callback without a state parameter.
	ErrMissingState = errors.New("auth: missing state")
	// ErrInvalidState signals a state parameter failing structural validation.
	ErrInvalidState = errors.New("auth: invalid state")
	// ErrExchangeFailed signals an upstream provider HTTP or network failure.
	ErrExchangeFailed = errors.New("auth: oauth exchange failed")
	// ErrMissingEmail signals a provider identity without a usable email.
	ErrMissingEmail = errors.New("auth: provider identity has no email")
	// ErrInvalidCredential signals a One-Tap credential failing signature or
	// audience verification.
	ErrInvalidCredential = errors.New("auth: invalid credential")
	// ErrInvalidRefreshToken covers not-found, revoked, expired, and hash
	// mismatch refresh tokens.
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	// ErrInvalidAccessToken signals access token signature or expiry failure.
	ErrInvalidAccessToken = errors.New("auth: invalid access token")
	// ErrMissingToken signals an absent token cookie.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidLogin signals a failed email/password login.
	ErrInvalidLogin = errors.New("auth: invalid email or password")
)
