package oauth

import (
	"context"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/inkwellhq/inkwell/internal/adapter/provider"
	"github.com/inkwellhq/inkwell/internal/domain"
)

// Google signs One-Tap credentials with RS256 keys published at its certs
// endpoint.
var oneTapAlgorithms = []gojose.SignatureAlgorithm{gojose.RS256}

var oneTapIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// OneTapVerifier verifies Google One-Tap ID tokens against Google's published
// signing keys and extracts the identity claims.
type OneTapVerifier struct {
	keys     provider.KeySource
	clientID string

	// now is swapped in tests to pin verification time.
	now func() time.Time
}

// NewOneTapVerifier constructs a verifier bound to the given OAuth client id.
func NewOneTapVerifier(keys provider.KeySource, clientID string) *OneTapVerifier {
	return &OneTapVerifier{keys: keys, clientID: clientID, now: time.Now}
}

type oneTapClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Verify checks the credential's signature, issuer, audience, and expiry,
// returning the normalized Google identity. Any verification failure maps to
// ErrInvalidCredential; a key fetch failure maps to ErrExchangeFailed.
func (v *OneTapVerifier) Verify(ctx context.Context, credential string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(credential, oneTapAlgorithms)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: parse credential: %w", domain.ErrInvalidCredential, err)
	}
	if len(parsed.Headers) == 0 || parsed.Headers[0].KeyID == "" {
		return Claims{}, fmt.Errorf("%w: credential has no key id", domain.ErrInvalidCredential)
	}

	keySet, err := v.keys.Keys(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrExchangeFailed, err)
	}
	matches := keySet.Key(parsed.Headers[0].KeyID)
	if len(matches) == 0 {
		return Claims{}, fmt.Errorf("%w: unknown signing key %q", domain.ErrInvalidCredential, parsed.Headers[0].KeyID)
	}

	var std gojwt.Claims
	var extra oneTapClaims
	if err := parsed.Claims(matches[0].Key, &std, &extra); err != nil {
		return Claims{}, fmt.Errorf("%w: verify signature: %w", domain.ErrInvalidCredential, err)
	}

	if !oneTapIssuers[std.Issuer] {
		return Claims{}, fmt.Errorf("%w: unexpected issuer %q", domain.ErrInvalidCredential, std.Issuer)
	}
	if err := std.ValidateWithLeeway(gojwt.Expected{
		AnyAudience: gojwt.Audience{v.clientID},
		Time:        v.now(),
	}, 0); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, err)
	}
	if extra.Email == "" {
		return Claims{}, domain.ErrMissingEmail
	}

	return Claims{
		Provider:          domain.ProviderGoogle,
		ProviderAccountID: std.Subject,
		Email:             extra.Email,
		Name:              extra.Name,
		AvatarURL:         extra.Picture,
	}, nil
}
