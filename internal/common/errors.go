package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict") // e.g. duplicate solution or username
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation failed")
	ErrImageLimit     = errors.New("task image limit reached")
	ErrStorage        = errors.New("image storage unavailable")
	ErrLockFailed     = errors.New("failed to acquire task lock")
)

// PgUniqueViolation is the SQLSTATE postgres reports for unique constraint violations.
const PgUniqueViolation = "23505"

// PgInvalidTextRepresentation is what postgres reports for input it cannot parse, e.g. a malformed uuid.
const PgInvalidTextRepresentation = "22P02"

// IsUniqueViolation reports whether err carries a postgres unique violation.
func IsUniqueViolation(err error) bool {
	return hasPgCode(err, PgUniqueViolation)
}

// IsInvalidInput reports whether postgres rejected a parameter as malformed.
func IsInvalidInput(err error) bool {
	return hasPgCode(err, PgInvalidTextRepresentation)
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict), errors.Is(err, ErrImageLimit), errors.Is(err, ErrLockFailed):
		return http.StatusConflict
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	}

	if IsUniqueViolation(err) {
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
