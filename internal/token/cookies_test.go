package token

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetSessionCookies(t *testing.T) {
	svc, _ := newTestService(t)
	svc.secureCookies = true

	rec := httptest.NewRecorder()
	svc.SetSessionCookies(rec, "access-value", "refresh-value")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := make(map[string]*http.Cookie, 2)
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[AccessTokenCookie]
	require.NotNil(t, access)
	require.Equal(t, "access-value", access.Value)
	require.Equal(t, "/", access.Path)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	require.Equal(t, 15*60, access.MaxAge)

	refresh := byName[RefreshTokenCookie]
	require.NotNil(t, refresh)
	require.Equal(t, 7*24*60*60, refresh.MaxAge)
}

func TestClearSessionCookies(t *testing.T) {
	svc, _ := newTestService(t)

	rec := httptest.NewRecorder()
	svc.ClearSessionCookies(rec)

	for _, c := range rec.Result().Cookies() {
		require.Empty(t, c.Value)
		require.Equal(t, -1, c.MaxAge)
		require.True(t, c.HttpOnly)
	}
}
