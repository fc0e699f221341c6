package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/inkwellhq/inkwell/internal/service"
	"github.com/inkwellhq/inkwell/internal/token"
)

const userIDKey = "authUserID"

// Session authenticates requests from the access token cookie.
type Session struct {
	Tokens *token.Service
	Auth   *service.AuthService
}

// RequireUser ensures the request carries a valid access token cookie and
// attaches the user id.
func (m *Session) RequireUser(c *gin.Context) {
	raw, err := c.Cookie(token.AccessTokenCookie)
	if err != nil || raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN", "error_description": "Authentication required."})
		return
	}

	userID, err := m.Tokens.VerifyAccessToken(raw)
	if err != nil {
		code := "INVALID_TOKEN"
		if errors.Is(err, gojwt.ErrExpired) {
			code = "TOKEN_EXPIRED"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": "Invalid access token."})
		return
	}

	c.Set(userIDKey, userID)
	c.Next()
}

// RequireAdmin ensures the authenticated user holds the admin role. It must
// run after RequireUser.
func (m *Session) RequireAdmin(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN", "error_description": "Authentication required."})
		return
	}

	user, err := m.Auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN", "error_description": "Account not found."})
		return
	}
	if !user.IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN", "error_description": "Admin role required."})
		return
	}
	c.Next()
}

// UserID returns the authenticated user id set by RequireUser.
func UserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}
