package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/appcore/errors"
)

var (
	// ErrPoolTimeout is returned when no pooled connection frees up within
	// POOL_TIMEOUT.
	ErrPoolTimeout = errors.New("database: timed out waiting for a pooled connection")

	// ErrSessionClosed is returned by any use of a session after Close.
	ErrSessionClosed = errors.New("database: session is closed")

	// ErrManagerClosed is returned when opening a session on a disposed manager.
	ErrManagerClosed = errors.New("database: connection manager is closed")
)

// IsConnectionError checks if a database error is a connection error
// that might be resolved by retrying.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"connection closed",
		"connection lost",
		"driver: bad connection",
		"invalid connection",
		"no such host",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsRetryableError determines if a database error should trigger a retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPoolTimeout) || IsConnectionError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"deadlock",
		"lock timeout",
		"too many connections",
		"could not serialize access",
		"database is locked",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// FromDatabase converts a database error to an AppError for resource.
func FromDatabase(err error, resource string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(resource, "").WithCause(err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.AlreadyExists(resource).WithCause(err)
	case errors.Is(err, ErrPoolTimeout):
		return apperrors.ServiceUnavailable("database").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("database").WithCause(err)
	case IsConnectionError(err):
		return apperrors.ConnectionFailed("database").WithCause(err)
	case IsRetryableError(err):
		return apperrors.ServiceUnavailable("database").WithCause(err)
	}
	return apperrors.DatabaseError(err)
}
