package oauth

import (
	"fmt"

	"github.com/inkwellhq/inkwell/internal/domain"
)

// State structural limits. Validation is structural only; there is no
// issued-state record to compare against.
const (
	minStateLength = 8
	maxStateLength = 128
)

// State error codes surfaced to clients.
const (
	CodeMissingState       = "MISSING_STATE"
	CodeInvalidStateLength = "INVALID_STATE_LENGTH"
	CodeInvalidStateFormat = "INVALID_STATE_FORMAT"
)

// StateError carries the machine-readable code for a rejected state value.
type StateError struct {
	Code   string
	reason error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("oauth state rejected: %s", e.Code)
}

// Unwrap maps the code onto the domain sentinels so callers can use errors.Is.
func (e *StateError) Unwrap() error {
	return e.reason
}

// ValidateState applies the structural rules to an OAuth state parameter.
// Rules are checked in order and the first violation wins: the value must be
// present, between 8 and 128 characters, and strictly alphanumeric.
func ValidateState(state string) error {
	if state == "" {
		return &StateError{Code: CodeMissingState, reason: domain.ErrMissingState}
	}
	if len(state) < minStateLength || len(state) > maxStateLength {
		return &StateError{Code: CodeInvalidStateLength, reason: domain.ErrInvalidState}
	}
	for _, r := range state {
		if !isAlphanumeric(r) {
			return &StateError{Code: CodeInvalidStateFormat, reason: domain.ErrInvalidState}
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
