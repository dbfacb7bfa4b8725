package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/store"
)

// ErrorResponse is the error body of every route.
type ErrorResponse struct {
	Error   string        `json:"error"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail describes one invalid field.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// SuccessResponse acknowledges deletions and session ends.
type SuccessResponse struct {
	Success bool `json:"success"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// respondStoreError maps repository errors: ErrNotFound to 404 with
// notFoundMsg, ErrConflict to 409, anything else to a logged 500.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, r, http.StatusNotFound, notFoundMsg)
	case errors.Is(err, store.ErrConflict):
		respondError(w, r, http.StatusConflict, "Conflict")
	default:
		logger.FromContext(r.Context()).Error("store operation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		respondError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON decodes the body into v and validates it. On failure it has
// already written the 400 and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		logger.FromContext(r.Context()).Warn("invalid json payload", slog.String("error", err.Error()))
		respondError(w, r, http.StatusBadRequest, "Invalid JSON payload")
		return false
	}

	if details := validateStruct(v); len(details) > 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid input", Details: details})
		return false
	}
	return true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return v, nil
}

// invalidateSnapshot drops the app's sync snapshot after a mutation. A
// failure is logged; the snapshot TTL bounds the staleness.
func (a *API) invalidateSnapshot(ctx context.Context, appID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := a.snapshots.Invalidate(ctx, appID); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate sync snapshot",
			slog.String("app_id", appID),
			slog.String("error", err.Error()),
		)
	}
}
