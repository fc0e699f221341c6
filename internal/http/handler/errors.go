package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwellhq/inkwell/internal/domain"
	"github.com/inkwellhq/inkwell/internal/oauth"
	"github.com/inkwellhq/inkwell/internal/service"
)

// authErrorCode maps an auth flow failure to its machine-readable code and
// HTTP status. This is the single place sentinels become wire responses.
func authErrorCode(err error) (string, int) {
	var stateErr *oauth.StateError
	if errors.As(err, &stateErr) {
		return stateErr.Code, http.StatusBadRequest
	}

	switch {
	case errors.Is(err, domain.ErrMissingState):
		return oauth.CodeMissingState, http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		return oauth.CodeInvalidStateFormat, http.StatusBadRequest
	case errors.Is(err, domain.ErrMissingEmail):
		return "MISSING_EMAIL", http.StatusBadRequest
	case errors.Is(err, domain.ErrExchangeFailed):
		return "EXCHANGE_FAILED", http.StatusBadGateway
	case errors.Is(err, domain.ErrInvalidCredential):
		return "INVALID_CREDENTIAL", http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidLogin):
		return "INVALID_LOGIN", http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidRefreshToken):
		return "INVALID_REFRESH_TOKEN", http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidAccessToken):
		return "INVALID_TOKEN", http.StatusUnauthorized
	case errors.Is(err, domain.ErrMissingToken):
		return "MISSING_TOKEN", http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidInput):
		return "INVALID_REQUEST", http.StatusBadRequest
	default:
		return "SERVER_ERROR", http.StatusInternalServerError
	}
}

func respondAuthError(c *gin.Context, err error) {
	code, status := authErrorCode(err)
	body := gin.H{"error": code}
	if status == http.StatusInternalServerError {
		body["error_description"] = "Unexpected server error."
	}
	c.JSON(status, body)
}
