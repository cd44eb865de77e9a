package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/ganot/rpstage/internal/domain/session"
	"github.com/ganot/rpstage/internal/hub"
)

// APIError is the error surfaced to tool callers.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps hub and domain errors to tool error codes. Unknown errors
// are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var api *APIError
	switch {
	case errors.As(err, &api):
		return api
	case errors.Is(err, hub.ErrStopped):
		return &APIError{Code: "UNAVAILABLE", Message: "game is shutting down", RecoveryHint: "Retry after the server restarts"}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &APIError{Code: "TIMEOUT", Message: "game did not answer in time"}
	case errors.Is(err, session.ErrCharacterNotFound):
		return &APIError{Code: "PLAYER_NOT_FOUND", Message: "player not found", RecoveryHint: "Call get_game_state for valid indexes"}
	case errors.Is(err, hub.ErrInvalidInput), errors.Is(err, session.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return err
	}
}

func invalid(format string, args ...any) *APIError {
	return &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf(format, args...)}
}
