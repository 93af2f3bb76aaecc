package helpers

import (
	"errors"
	"log/slog"
	"net/http"

	"quoteflow/internal/domain"
)

// WriteServiceError maps a service error onto the response envelope. Unknown errors are
// logged and reported as internal_error without leaking their text.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, ErrCodeNotFound, "offer not found")
	case errors.Is(err, domain.ErrForbidden):
		WriteJSONError(w, http.StatusForbidden, ErrCodeForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidInput):
		WriteJSONError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrQuotaExceeded):
		WriteJSONError(w, http.StatusPaymentRequired, ErrCodeQuotaExceeded, err.Error())
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		WriteJSONError(w, http.StatusConflict, ErrCodeCancellationWindowClosed, err.Error())
	case errors.Is(err, domain.ErrIllegalTransition):
		WriteJSONError(w, http.StatusConflict, ErrCodeIllegalTransition, err.Error())
	case errors.Is(err, domain.ErrTokenInvalid):
		WriteJSONError(w, http.StatusNotFound, ErrCodeTokenInvalid, err.Error())
	case errors.Is(err, domain.ErrTokenExpired):
		WriteJSONError(w, http.StatusGone, ErrCodeTokenExpired, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "path", RedactPath(r.URL.Path), "method", r.Method, "err", err)
		WriteJSONError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
	}
}
