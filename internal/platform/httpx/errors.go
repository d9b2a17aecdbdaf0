// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// RetryAfterSeconds is advertised on contention responses.
const RetryAfterSeconds = "1"

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	RespondErrorLogged(w, nil, err)
}

// RespondErrorLogged is RespondError that also logs server-side failures with a correlation id
// returned to the client as the problem instance.
func RespondErrorLogged(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validation shared.ValidationErrors
	switch {
	case errors.As(err, &validation):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: validation.Error(),
			Errors: validation,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateKey):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrContention):
		w.Header().Set("Retry-After", RetryAfterSeconds)
		Problem(w, http.StatusServiceUnavailable, "Contention", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Timeout", "request timed out")
	default:
		id := uuid.NewString()
		if logger != nil {
			logger.Error("request failed", slog.String("problem_id", id), slog.Any("error", err))
		}
		JSON(w, http.StatusInternalServerError, ProblemDetail{
			Title:    "Internal Error",
			Status:   http.StatusInternalServerError,
			Instance: "urn:uuid:" + id,
		})
	}
}
