package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a chat or message does not exist.
	ErrNotFound = fmt.Errorf("not found")
	// ErrForbidden is returned when the caller is not part of the chat's audience.
	ErrForbidden = fmt.Errorf("forbidden")
	// ErrStaleLock means the session's token no longer owns the chat.
	// It is internal control flow and is never surfaced to a caller.
	ErrStaleLock = fmt.Errorf("stale lock token")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("could not generate token")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)

// HTTPStatus maps a domain error to the status code exposed by the HTTP layer.
func HTTPStatus(err error) int {
	switch {
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
