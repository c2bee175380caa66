package api

import (
	"errors"
	"net/http"

	"github.com/memoirly/memoir-backend/internal/api/respond"
	"github.com/memoirly/memoir-backend/internal/model"
)

// writeServiceError maps a service error onto an HTTP status. Conflict,
// validation and expiry failures all surface as 400 so clients see one
// rejection shape regardless of which guard fired first.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrUnauthorized):
		respond.WriteError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrExpired):
		respond.WriteBadRequest(w, err.Error())
	default:
		respond.WriteInternalError(w, "internal server error")
	}
}
