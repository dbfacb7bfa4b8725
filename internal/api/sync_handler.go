package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/model"
)

// handleFullSync returns every enabled notification and every segment of the
// app. Version is the highest notification version, 0 when there is none.
func (a *API) handleFullSync(w http.ResponseWriter, r *http.Request) {
	a.serveSync(w, r, 0)
}

// handleDeltaSync returns the enabled notifications whose version is greater
// than ?since=. Disabled notifications are omitted, not tombstoned.
func (a *API) handleDeltaSync(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			respondError(w, r, http.StatusBadRequest, "parameter 'since' must be a non-negative integer")
			return
		}
		since = v
	}
	a.serveSync(w, r, since)
}

func (a *API) serveSync(w http.ResponseWriter, r *http.Request, since int64) {
	app := appFromContext(r.Context())

	snap, err := a.snapshot(r.Context(), app.ID)
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, snap.Response(since, a.now()))
}

// snapshot reads the app's sync snapshot from the cache, rebuilding it from
// Postgres on a miss. Cache failures degrade to a direct read. A rebuild is
// only cached when no mutation invalidated the app while it was being read.
func (a *API) snapshot(ctx context.Context, appID string) (*cache.Snapshot, error) {
	log := logger.FromContext(ctx)

	// 1. Cache
	snap, gen, found, err := a.snapshots.Get(ctx, appID)
	cacheUp := err == nil
	if !cacheUp {
		log.Warn("sync snapshot read failed, falling back to database", slog.String("error", err.Error()))
	}
	if found {
		return snap, nil
	}

	// 2. Database
	notifications, err := a.store.ListSyncNotifications(ctx, appID, 0)
	if err != nil {
		return nil, err
	}
	segments, err := a.store.ListSegments(ctx, appID)
	if err != nil {
		return nil, err
	}

	snap = &cache.Snapshot{
		Notifications: notifications,
		Segments:      make([]model.SegmentInfo, 0, len(segments)),
	}
	for _, seg := range segments {
		snap.Segments = append(snap.Segments, seg.Info())
	}

	// 3. Populate
	if !cacheUp {
		return snap, nil
	}
	stored, err := a.snapshots.Set(ctx, appID, gen, snap)
	switch {
	case err != nil:
		log.Warn("failed to store sync snapshot", slog.String("error", err.Error()))
	case !stored:
		log.Debug("sync snapshot superseded by an invalidation", slog.Int64("generation", gen))
	}
	return snap, nil
}
