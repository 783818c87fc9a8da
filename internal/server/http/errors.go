package httpserver

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/library-circulation/internal/errs"
)

// specific errors with their own wire code; checked before the kinds.
var codes = []struct {
	err  error
	code string
}{
	{errs.ErrDuplicateEmail, "DUPLICATE_EMAIL"},
	{errs.ErrBookUnavailable, "BOOK_UNAVAILABLE"},
	{errs.ErrNoExtensionsLeft, "NO_EXTENSIONS_LEFT"},
	{errs.ErrLoanClosed, "LOAN_CLOSED"},
	{errs.ErrInvalidTransition, "INVALID_TRANSITION"},
	{errs.ErrStillReferenced, "STILL_REFERENCED"},
	{errs.ErrInvalidCredentials, "INVALID_CREDENTIALS"},
	{errs.ErrInvalidOrExpiredToken, "INVALID_TOKEN"},
}

// mapError translates a core error into status, wire code and message.
func mapError(err error) (int, string, string) {
	status, code, msg := mapKind(err)
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return status, c.code, c.err.Error()
		}
	}
	return status, code, msg
}

func mapKind(err error) (int, string, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED", "invalid or missing credentials"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "insufficient privilege"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "too many failed attempts"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

// fail writes err to w. Unexpected errors are logged, never echoed.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", requestIDFromCtx(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, msg)
}
