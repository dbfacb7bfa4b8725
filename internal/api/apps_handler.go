package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/logger"
)

const msgAppNotFound = "App not found"

func (a *API) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := a.store.ListApps(r.Context())
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, apps)
}

func (a *API) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := a.store.GetApp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, app)
}

func (a *API) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app, err := a.store.CreateApp(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}

	logger.FromContext(r.Context()).Info("app created", slog.String("app_id", app.ID))
	respondJSON(w, r, http.StatusCreated, app)
}

func (a *API) handleUpdateApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateAppRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 1. Nothing to change: return the current state.
	if req.Name == nil {
		a.handleGetApp(w, r)
		return
	}

	// 2. Rename
	app, err := a.store.RenameApp(r.Context(), id, strings.TrimSpace(*req.Name))
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	a.apps.Del(id)
	respondJSON(w, r, http.StatusOK, app)
}

func (a *API) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := a.store.DeleteApp(r.Context(), id); err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	a.apps.Del(id)
	a.invalidateSnapshot(r.Context(), id)

	logger.FromContext(r.Context()).Info("app deleted", slog.String("app_id", id))
	respondJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// handleRegenerateKey rotates the SDK key. The cached app is evicted so the
// old key stops working on this instance at once.
func (a *API) handleRegenerateKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	app, err := a.store.RegenerateAPIKey(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	a.apps.Del(id)

	logger.FromContext(r.Context()).Info("app key regenerated", slog.String("app_id", id))
	respondJSON(w, r, http.StatusOK, app)
}
