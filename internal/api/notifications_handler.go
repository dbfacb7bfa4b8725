package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/store"
)

const (
	msgNotificationNotFound = "Notification not found"
	msgSegmentNotFound      = "Segment not found"
)

// handleListNotifications serves GET /api/notifications, optionally
// filtered by ?appId=.
func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListNotifications(r.Context(), r.URL.Query().Get("appId"))
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, list)
}

func (a *API) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.GetNotification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, n)
}

// handleCreateNotification validates the payload, checks that the app and
// the optional segment exist, persists at version 1 and drops the app's
// sync snapshot.
func (a *API) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 1. Decode & validate
	var req CreateNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// 2. References
	if _, err := a.store.GetApp(ctx, req.AppID); err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	if !a.checkSegment(w, r, req.AppID, req.SegmentID) {
		return
	}

	// 3. Persist
	n, err := a.store.CreateNotification(ctx, req.toModel())
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	a.invalidateSnapshot(ctx, n.AppID)

	logger.FromContext(ctx).Info("notification created",
		slog.String("notification_id", n.ID),
		slog.String("app_id", n.AppID),
	)
	respondJSON(w, r, http.StatusCreated, n)
}

func (a *API) handleUpdateNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req UpdateNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	current, err := a.store.GetNotification(ctx, id)
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	if req.SegmentID != nil && !a.checkSegment(w, r, current.AppID, *req.SegmentID) {
		return
	}

	n, err := a.store.UpdateNotification(ctx, id, req.toPatch())
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	a.invalidateSnapshot(ctx, n.AppID)
	respondJSON(w, r, http.StatusOK, n)
}

func (a *API) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.DeleteNotification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	a.invalidateSnapshot(r.Context(), n.AppID)
	respondJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

func (a *API) handleToggleNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.ToggleNotification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	a.invalidateSnapshot(r.Context(), n.AppID)

	logger.FromContext(r.Context()).Info("notification toggled",
		slog.String("notification_id", n.ID),
		slog.Bool("enabled", n.Enabled),
	)
	respondJSON(w, r, http.StatusOK, n)
}

// handleDuplicateNotification creates a disabled copy. Disabled rows are not
// synced, so the snapshot is left alone.
func (a *API) handleDuplicateNotification(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.DuplicateNotification(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgNotificationNotFound)
		return
	}
	respondJSON(w, r, http.StatusCreated, n)
}

// checkSegment verifies that a non-empty segmentID names a segment of appID.
// It writes the 404 and returns false otherwise.
func (a *API) checkSegment(w http.ResponseWriter, r *http.Request, appID, segmentID string) bool {
	if segmentID == "" {
		return true
	}
	seg, err := a.store.GetSegment(r.Context(), segmentID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && seg.AppID != appID) {
		respondError(w, r, http.StatusNotFound, msgSegmentNotFound)
		return false
	}
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return false
	}
	return true
}
