package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/store"
)

const maxDAUDays = 365

// handleSessionEvent records a session start or end reported by the SDK.
// Both require the user to exist. Ending an unknown session still succeeds.
func (a *API) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app := appFromContext(ctx)

	var req SessionEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	at := a.now()
	if req.Timestamp != nil {
		at = *req.Timestamp
	}

	switch req.Type {
	case SessionStart:
		sess, err := a.store.StartSession(ctx, app.ID, req.UserID, at)
		if err != nil {
			respondStoreError(w, r, err, msgUserNotFound)
			return
		}
		respondJSON(w, r, http.StatusOK, SessionStartResponse{SessionID: sess.ID})

	case SessionEnd:
		if _, err := a.store.GetUser(ctx, app.ID, req.UserID); err != nil {
			respondStoreError(w, r, err, msgUserNotFound)
			return
		}
		found, err := a.store.EndSession(ctx, app.ID, req.SessionID, at)
		if err != nil {
			respondStoreError(w, r, err, msgUserNotFound)
			return
		}
		if !found {
			logger.FromContext(ctx).Debug("session end for unknown session", slog.String("session_id", req.SessionID))
		}
		respondJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
	}
}

func (a *API) handleOverview(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appId")

	if _, err := a.store.GetApp(r.Context(), appID); err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}

	overview, err := a.store.Overview(r.Context(), appID, a.now())
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, overview)
}

// handleDAU serves the distinct-active-users history for ?days= (default 30).
func (a *API) handleDAU(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "appId")

	days, err := queryInt(r, "days", store.DefaultDAUDays)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if days < 1 || days > maxDAUDays {
		respondError(w, r, http.StatusBadRequest, "parameter 'days' must be between 1 and 365")
		return
	}

	if _, err := a.store.GetApp(r.Context(), appID); err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}

	history, err := a.store.DAUHistory(r.Context(), appID, days, a.now())
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, DAUResponse{History: history})
}
