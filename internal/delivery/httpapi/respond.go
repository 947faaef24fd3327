package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NasaVasa/shopalerts/internal/usecase"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// errorStatus maps usecase errors onto an HTTP status and a stable error code.
// Unknown errors are internal and their text is not exposed.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, usecase.ErrUserNotFound),
		errors.Is(err, usecase.ErrProductNotFound),
		errors.Is(err, usecase.ErrAlertNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, usecase.ErrAlertExists):
		return http.StatusConflict, "alert_exists", err.Error()
	case errors.Is(err, usecase.ErrCycleInProgress):
		return http.StatusConflict, "cycle_in_progress", err.Error()
	case errors.Is(err, usecase.ErrReactivationNotAllowed):
		return http.StatusUnprocessableEntity, "reactivation_not_allowed", err.Error()
	case errors.Is(err, usecase.ErrInvalidKind),
		errors.Is(err, usecase.ErrInvalidTargetPrice),
		errors.Is(err, usecase.ErrInvalidThreshold),
		errors.Is(err, usecase.ErrInvalidPrice),
		errors.Is(err, usecase.ErrInvalidQuantity),
		errors.Is(err, usecase.ErrEmptyPatch),
		errors.Is(err, usecase.ErrInvalidEmail),
		errors.Is(err, usecase.ErrNoRecipient):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, usecase.ErrCatalogDisabled),
		errors.Is(err, usecase.ErrChannelDisabled),
		errors.Is(err, usecase.ErrSchedulerStopped):
		return http.StatusServiceUnavailable, "unavailable", err.Error()
	default:
		return http.StatusInternalServerError, "internal", "internal server error"
	}
}
