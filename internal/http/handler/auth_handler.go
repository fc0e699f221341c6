package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/config"
	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/http/middleware"
	"github.com/inkwellhq/inkwell/internal/service"
	"github.com/inkwellhq/inkwell/internal/token"
)

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Tokens *token.Service
	cfg    config.Config
	logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, tokens *token.Service, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Tokens: tokens, cfg: cfg, logger: logger}
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:        strconv.FormatInt(user.ID, 10),
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}

// OAuthCallback completes the provider redirect flow. Success and failure
// both end in a browser redirect to the client app; errors travel as a
// URL-encoded code in the query string.
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	providerName, ok := parseProvider(c.Param("provider"))
	if !ok {
		h.redirectWithError(c, "UNSUPPORTED_PROVIDER")
		return
	}

	session, err := h.Auth.LoginWithOAuthCallback(
		c.Request.Context(),
		providerName,
		c.Query("code"),
		c.Query("state"),
		c.Request.UserAgent(),
	)
	if err != nil {
		code, _ := authErrorCode(err)
		h.redirectWithError(c, code)
		return
	}

	h.Tokens.SetSessionCookies(c.Writer, session.AccessToken, session.RefreshToken)
	c.Redirect(http.StatusFound, h.cfg.ClientURL)
}

// OAuthExchange completes the same flow for SPA clients that receive the
// provider redirect themselves and post code and state as JSON.
func (h *AuthHandler) OAuthExchange(c *gin.Context) {
	providerName, ok := parseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "UNSUPPORTED_PROVIDER"})
		return
	}

	var req struct {
		Code  string `json:"code" binding:"required"`
		State string `json:"state"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "error_description": "code is required."})
		return
	}

	session, err := h.Auth.LoginWithOAuthCallback(c.Request.Context(), providerName, req.Code, req.State, c.Request.UserAgent())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.Tokens.SetSessionCookies(c.Writer, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(session.User)})
}

// OneTap verifies a Google One-Tap credential and opens a session.
func (h *AuthHandler) OneTap(c *gin.Context) {
	var req struct {
		Credential string `json:"credential" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "error_description": "credential is required."})
		return
	}

	session, err := h.Auth.LoginWithOneTap(c.Request.Context(), req.Credential, c.Request.UserAgent())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.Tokens.SetSessionCookies(c.Writer, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(session.User)})
}

// PasswordLogin authenticates an email/password account.
func (h *AuthHandler) PasswordLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "error_description": "email and password are required."})
		return
	}

	session, err := h.Auth.LoginWithPassword(c.Request.Context(), req.Email, req.Password, c.Request.UserAgent())
	if err != nil {
		respondAuthError(c, err)
		return
	}

	h.Tokens.SetSessionCookies(c.Writer, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(session.User)})
}

// Refresh rotates the refresh token cookie and mints a new access token. Any
// failure clears both cookies so the client falls back to a clean login.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, err := c.Cookie(token.RefreshTokenCookie)
	if err != nil || raw == "" {
		h.Tokens.ClearSessionCookies(c.Writer)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN"})
		return
	}

	session, err := h.Auth.RefreshSession(c.Request.Context(), raw, c.Request.UserAgent())
	if err != nil {
		h.Tokens.ClearSessionCookies(c.Writer)
		respondAuthError(c, err)
		return
	}

	h.Tokens.SetSessionCookies(c.Writer, session.AccessToken, session.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(session.User)})
}

// Logout revokes the refresh token if one is presented and clears the
// session cookies. It never fails from the client's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, err := c.Cookie(token.RefreshTokenCookie); err == nil && raw != "" {
		h.Auth.Logout(c.Request.Context(), raw)
	}
	h.Tokens.ClearSessionCookies(c.Writer)
	c.Status(http.StatusNoContent)
}

// LogoutAll revokes every refresh token of the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN"})
		return
	}
	if err := h.Auth.LogoutEverywhere(c.Request.Context(), userID); err != nil {
		respondAuthError(c, err)
		return
	}
	h.Tokens.ClearSessionCookies(c.Writer)
	c.Status(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "MISSING_TOKEN"})
		return
	}
	user, err := h.Auth.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_TOKEN"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func (h *AuthHandler) redirectWithError(c *gin.Context, code string) {
	target := h.cfg.ClientURL + "/login?error=" + url.QueryEscape(code)
	c.Redirect(http.StatusFound, target)
}

func parseProvider(raw string) (domain.Provider, bool) {
	switch raw {
	case "google":
		return domain.ProviderGoogle, true
	case "github":
		return domain.ProviderGitHub, true
	default:
		return "", false
	}
}
