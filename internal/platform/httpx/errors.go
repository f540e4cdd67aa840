// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/signhub/signhub/internal/shared"
)

// StatusFor returns the HTTP status RespondError would use for err.
func StatusFor(err error) int {
	var invalid *shared.InvalidInputError
	var config *shared.ConfigurationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &config):
		return http.StatusConflict
	case errors.Is(err, shared.ErrUnknownEntityKind):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

var statusTitles = map[int]string{
	http.StatusUnprocessableEntity: "Invalid Input",
	http.StatusConflict:            "Configuration",
	http.StatusBadRequest:          "Unknown Entity",
	http.StatusNotFound:            "Not Found",
	http.StatusForbidden:           "Forbidden",
	http.StatusUnauthorized:        "Unauthorized",
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	title, ok := statusTitles[status]
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	problem := ProblemDetail{Title: title, Status: status, Detail: shared.UserSafeMessage(err)}
	var invalid *shared.InvalidInputError
	if errors.As(err, &invalid) {
		problem.Field = invalid.Field
	}
	JSON(w, status, problem)
}
