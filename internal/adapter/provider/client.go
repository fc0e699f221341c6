package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/inkwellhq/inkwell/internal/config"
)

// TokenResponse models the response from a provider token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	IDToken     string `json:"id_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GoogleProfile is the Google userinfo payload.
type GoogleProfile struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GitHubProfile is the GitHub /user payload.
type GitHubProfile struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// GitHubEmail is one entry of the GitHub /user/emails payload.
type GitHubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Client encapsulates outbound HTTP calls to the identity providers.
type Client interface {
	ExchangeGoogleCode(ctx context.Context, code string) (*TokenResponse, error)
	FetchGoogleUserInfo(ctx context.Context, accessToken string) (*GoogleProfile, error)
	ExchangeGitHubCode(ctx context.Context, code string) (*TokenResponse, error)
	FetchGitHubUser(ctx context.Context, accessToken string) (*GitHubProfile, error)
	FetchGitHubEmails(ctx context.Context, accessToken string) ([]GitHubEmail, error)
}

// KeySource yields the JSON Web Key Set used to verify Google-signed
// credentials.
type KeySource interface {
	Keys(ctx context.Context) (*jose.JSONWebKeySet, error)
}

// HTTPClient is the default HTTP implementation of Client and KeySource.
// Endpoint fields exist so tests can point at local servers.
type HTTPClient struct {
	httpClient *http.Client
	google     config.OAuthProvider
	github     config.OAuthProvider

	GoogleTokenURL    string
	GoogleUserInfoURL string
	GoogleCertsURL    string
	GitHubTokenURL    string
	GitHubUserURL     string
	GitHubEmailsURL   string
}

// NewHTTPClient constructs the default provider client. A nil http.Client
// gets a 10 second timeout so upstream stalls cannot hold requests open.
func NewHTTPClient(client *http.Client, google, github config.OAuthProvider) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		httpClient:        client,
		google:            google,
		github:            github,
		GoogleTokenURL:    "https://oauth2.googleapis.com/token",
		GoogleUserInfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		GoogleCertsURL:    "https://www.googleapis.com/oauth2/v3/certs",
		GitHubTokenURL:    "https://github.com/login/oauth/access_token",
		GitHubUserURL:     "https://api.github.com/user",
		GitHubEmailsURL:   "https://api.github.com/user/emails",
	}
}

var (
	_ Client    = (*HTTPClient)(nil)
	_ KeySource = (*HTTPClient)(nil)
)

// ExchangeGoogleCode redeems an authorization code at Google's token endpoint.
func (c *HTTPClient) ExchangeGoogleCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.google.ClientID)
	data.Set("client_secret", c.google.ClientSecret)
	data.Set("redirect_uri", c.google.RedirectURL)

	var token TokenResponse
	if err := c.postForm(ctx, c.GoogleTokenURL, data, &token); err != nil {
		return nil, fmt.Errorf("google token exchange: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("google token exchange: empty access token")
	}
	return &token, nil
}

// FetchGoogleUserInfo loads profile claims with the bearer token.
func (c *HTTPClient) FetchGoogleUserInfo(ctx context.Context, accessToken string) (*GoogleProfile, error) {
	var profile GoogleProfile
	if err := c.getJSON(ctx, c.GoogleUserInfoURL, accessToken, &profile); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	return &profile, nil
}

// ExchangeGitHubCode redeems an authorization code at GitHub's token endpoint.
func (c *HTTPClient) ExchangeGitHubCode(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.github.ClientID)
	data.Set("client_secret", c.github.ClientSecret)
	data.Set("redirect_uri", c.github.RedirectURL)

	var token TokenResponse
	if err := c.postForm(ctx, c.GitHubTokenURL, data, &token); err != nil {
		return nil, fmt.Errorf("github token exchange: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, fmt.Errorf("github token exchange: empty access token")
	}
	return &token, nil
}

// FetchGitHubUser loads the authenticated GitHub profile.
func (c *HTTPClient) FetchGitHubUser(ctx context.Context, accessToken string) (*GitHubProfile, error) {
	var profile GitHubProfile
	if err := c.getJSON(ctx, c.GitHubUserURL, accessToken, &profile); err != nil {
		return nil, fmt.Errorf("github user: %w", err)
	}
	return &profile, nil
}

// FetchGitHubEmails lists the account's email addresses. GitHub profiles may
// hide the email field, in which case this is the only way to obtain one.
func (c *HTTPClient) FetchGitHubEmails(ctx context.Context, accessToken string) ([]GitHubEmail, error) {
	var emails []GitHubEmail
	if err := c.getJSON(ctx, c.GitHubEmailsURL, accessToken, &emails); err != nil {
		return nil, fmt.Errorf("github emails: %w", err)
	}
	return emails, nil
}

// Keys fetches Google's current signing keys.
func (c *HTTPClient) Keys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GoogleCertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build certs request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("google certs: %w", err)
	}
	var keySet jose.JSONWebKeySet
	if err := json.Unmarshal(body, &keySet); err != nil {
		return nil, fmt.Errorf("decode certs: %w", err)
	}
	return &keySet, nil
}

func (c *HTTPClient) postForm(ctx context.Context, endpoint string, data url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}
	return body, nil
}
