package oauth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/adapter/provider"
	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/repository"
)

// Claims is the normalized identity extracted from a provider, independent of
// which provider produced it.
type Claims struct {
	Provider          domain.Provider
	ProviderAccountID string
	Email             string
	Name              string
	AvatarURL         string
}

// Exchanger redeems authorization codes for provider identities and
// materializes the matching local user.
type Exchanger struct {
	client provider.Client
	users  repository.UserRepository
	node   *snowflake.Node
	logger *zap.Logger
}

// NewExchanger constructs an Exchanger.
func NewExchanger(client provider.Client, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *Exchanger {
	return &Exchanger{client: client, users: users, node: node, logger: logger}
}

// ExchangeGoogleCode redeems a Google authorization code and returns the
// normalized identity claims.
func (e *Exchanger) ExchangeGoogleCode(ctx context.Context, code string) (Claims, error) {
	token, err := e.client.ExchangeGoogleCode(ctx, code)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrExchangeFailed, err)
	}
	profile, err := e.client.FetchGoogleUserInfo(ctx, token.AccessToken)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrExchangeFailed, err)
	}
	if strings.TrimSpace(profile.Email) == "" {
		return Claims{}, domain.ErrMissingEmail
	}
	return Claims{
		Provider:          domain.ProviderGoogle,
		ProviderAccountID: profile.Sub,
		Email:             profile.Email,
		Name:              profile.Name,
		AvatarURL:         profile.Picture,
	}, nil
}

// ExchangeGitHubCode redeems a GitHub authorization code. GitHub profiles may
// hide the email field, in which case a single /user/emails call supplies the
// primary address; an account with no primary email is rejected.
func (e *Exchanger) ExchangeGitHubCode(ctx context.Context, code string) (Claims, error) {
	token, err := e.client.ExchangeGitHubCode(ctx, code)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrExchangeFailed, err)
	}
	profile, err := e.client.FetchGitHubUser(ctx, token.AccessToken)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", domain.ErrExchangeFailed, err)
	}

	email := strings.TrimSpace(profile.Email)
	if email == "" {
		emails, err := e.client.FetchGitHubEmails(ctx, token.AccessToken)
		if err != nil {
			return Claims{}, fmt.Errorf("%w: %w", domain.ErrExchangeFailed, err)
		}
		for _, entry := range emails {
			if entry.Primary {
				email = entry.Email
				break
			}
		}
	}
	if email == "" {
		return Claims{}, domain.ErrMissingEmail
	}

	name := profile.Name
	if strings.TrimSpace(name) == "" {
		name = profile.Login
	}
	return Claims{
		Provider:          domain.ProviderGitHub,
		ProviderAccountID: strconv.FormatInt(profile.ID, 10),
		Email:             email,
		Name:              name,
		AvatarURL:         profile.AvatarURL,
	}, nil
}

// UpsertUser finds or creates the user matching the provider identity. The
// lookup and the profile refresh happen in one statement, keyed on
// (provider, provider_account_id).
func (e *Exchanger) UpsertUser(ctx context.Context, claims Claims) (domain.User, error) {
	if strings.TrimSpace(claims.Email) == "" {
		return domain.User{}, domain.ErrMissingEmail
	}

	candidate := domain.User{
		ID:                e.node.Generate().Int64(),
		Email:             strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:              claims.Name,
		AvatarURL:         claims.AvatarURL,
		Role:              domain.RoleUser,
		Provider:          claims.Provider,
		ProviderAccountID: claims.ProviderAccountID,
	}
	user, err := e.users.UpsertByProviderIdentity(ctx, candidate)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}

	e.log().Info("provider identity resolved",
		zap.String("provider", string(claims.Provider)),
		zap.Int64("user_id", user.ID),
	)
	return user, nil
}

func (e *Exchanger) log() *zap.Logger {
	if e != nil && e.logger != nil {
		return e.logger
	}
	return zap.L()
}
