package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/inkwellhq/inkwell/internal/config"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewHTTPClient(srv.Client(),
		config.OAuthProvider{ClientID: "google-id", ClientSecret: "google-secret", RedirectURL: "https://app.example.com/callback"},
		config.OAuthProvider{ClientID: "github-id", ClientSecret: "github-secret", RedirectURL: "https://app.example.com/callback"},
	)
	client.GoogleTokenURL = srv.URL + "/google/token"
	client.GoogleUserInfoURL = srv.URL + "/google/userinfo"
	client.GoogleCertsURL = srv.URL + "/google/certs"
	client.GitHubTokenURL = srv.URL + "/github/token"
	client.GitHubUserURL = srv.URL + "/github/user"
	client.GitHubEmailsURL = srv.URL + "/github/emails"
	return client
}

func TestExchangeGoogleCodeSendsCredentials(t *testing.T) {
	var form url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/google/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "ya29.token", TokenType: "Bearer"})
	})
	client := newTestClient(t, mux)

	token, err := client.ExchangeGoogleCode(context.Background(), "code123")
	require.NoError(t, err)
	require.Equal(t, "ya29.token", token.AccessToken)
	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "code123", form.Get("code"))
	require.Equal(t, "google-id", form.Get("client_id"))
	require.Equal(t, "google-secret", form.Get("client_secret"))
}

func TestExchangeGoogleCodeRejectsEmptyAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/google/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	})
	client := newTestClient(t, mux)

	_, err := client.ExchangeGoogleCode(context.Background(), "expired-code")
	require.Error(t, err)
}

func TestFetchGoogleUserInfoSendsBearer(t *testing.T) {
	var authHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/google/userinfo", func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(GoogleProfile{Sub: "108", Email: "reader@example.com"})
	})
	client := newTestClient(t, mux)

	profile, err := client.FetchGoogleUserInfo(context.Background(), "ya29.token")
	require.NoError(t, err)
	require.Equal(t, "108", profile.Sub)
	require.Equal(t, "Bearer ya29.token", authHeader)
}

func TestFetchGitHubEmails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/github/emails", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]GitHubEmail{
			{Email: "primary@example.com", Primary: true, Verified: true},
			{Email: "alt@example.com"},
		})
	})
	client := newTestClient(t, mux)

	emails, err := client.FetchGitHubEmails(context.Background(), "gho_token")
	require.NoError(t, err)
	require.Len(t, emails, 2)
	require.True(t, emails[0].Primary)
}

func TestUpstreamErrorStatusSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/github/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := newTestClient(t, mux)

	_, err := client.FetchGitHubUser(context.Background(), "gho_token")
	require.ErrorContains(t, err, "status=502")
}

func TestKeysDecodesJWKS(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/google/certs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{"kty":"RSA","kid":"abc","n":"sXchZvCEk-zdMiuNyYYvSagkeLVnGLnUSKPW3W1WvAJBHnxPc6BuvUDMta6TAbN3fUAP38Qy8yGD7EAKb7DoS8pyIoBYnHq_2_8okjEvpmtLkkEKsYiokVmeGSWwC3ZbTxsJoIq3NUmW_WVhFbIQxTqWGLEaBvd465f1C14E3dm-Fa7XSdSq1mBOgwnYHcVAWdNQjTGp4TnXue2ImQubYjN1IA1giBa_kkXMTDzVifmd-JNBGZMZ0bdxmGZzFoDWGMfFrsQSklEwXZy5utqfQ8mLlH_5TAiwXbcUwmnN0rIHVqDWz8dYzSpREW1qphaLTzJMYpDcXCd3TZbuW7NKCw","e":"AQAB"}]}`))
	})
	client := newTestClient(t, mux)

	keySet, err := client.Keys(context.Background())
	require.NoError(t, err)
	require.Len(t, keySet.Keys, 1)
	require.Equal(t, "abc", keySet.Keys[0].KeyID)
}
