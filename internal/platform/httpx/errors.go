package httpx

import (
	"errors"
	"net/http"

	"github.com/scholaris-sms/scholaris/internal/shared"
)

// RespondError maps domain errors to HTTP responses.
// Unexpected errors become a 500 with no detail leaked to the caller.
func RespondError(w http.ResponseWriter, err error) {
	var validationErr *shared.ValidationError
	switch {
	case errors.As(err, &validationErr):
		JSON(w, http.StatusBadRequest, ErrorBody{Error: validationErr.Error(), Fields: validationErr.Fields})
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrDuplicateEmail):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrUnknownRole):
		// Unknown references supplied in payloads are client mistakes, not missing routes.
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shared.ErrSystemRole), errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
