package token

import "net/http"

// Cookie names consumed by the auth middleware and refresh handler.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// SetSessionCookies writes both session cookies. HttpOnly always; Secure
// outside development; SameSite=Lax; lifetimes match the token TTLs.
func (s *Service) SetSessionCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, s.sessionCookie(AccessTokenCookie, accessToken, int(s.accessTTL.Seconds())))
	http.SetCookie(w, s.sessionCookie(RefreshTokenCookie, refreshToken, int(s.refreshTTL.Seconds())))
}

// ClearSessionCookies expires both session cookies. Attributes must match
// the ones used when setting, or browsers will not delete them.
func (s *Service) ClearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.sessionCookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, s.sessionCookie(RefreshTokenCookie, "", -1))
}

func (s *Service) sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
