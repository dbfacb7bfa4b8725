package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
)

func (a *API) handleListSegments(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListSegments(r.Context(), r.URL.Query().Get("appId"))
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, list)
}

func (a *API) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := a.store.GetSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, seg)
}

func (a *API) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := a.store.GetApp(ctx, req.AppID); err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}

	seg, err := a.store.CreateSegment(ctx, model.Segment{
		AppID:       req.AppID,
		Name:        req.Name,
		Description: req.Description,
		Rules:       req.Rules,
	})
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	a.invalidateSnapshot(ctx, seg.AppID)
	respondJSON(w, r, http.StatusCreated, seg)
}

func (a *API) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req UpdateSegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	seg, err := a.store.UpdateSegment(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	a.invalidateSnapshot(r.Context(), seg.AppID)
	respondJSON(w, r, http.StatusOK, seg)
}

// handleDeleteSegment removes the segment. Notifications still pointing at it
// become ineligible on devices.
func (a *API) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := a.store.DeleteSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	a.invalidateSnapshot(r.Context(), seg.AppID)
	respondJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// handleSegmentUsers pages through the users whose stored properties satisfy
// the segment rules, most recently seen first.
func (a *API) handleSegmentUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	seg, err := a.store.GetSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}

	page := UserPage{Users: []model.User{}, Limit: limit, Offset: offset}
	err = a.forEachMember(r.Context(), seg, func(u model.User) {
		if page.Total >= int64(offset) && len(page.Users) < limit {
			page.Users = append(page.Users, u)
		}
		page.Total++
	})
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, page)
}

func (a *API) handleSegmentCount(w http.ResponseWriter, r *http.Request) {
	seg, err := a.store.GetSegment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}

	var count int64
	if err := a.forEachMember(r.Context(), seg, func(model.User) { count++ }); err != nil {
		respondStoreError(w, r, err, msgSegmentNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, CountResponse{Count: count})
}

// forEachMember calls fn for every user of the segment's app matching its rules.
func (a *API) forEachMember(ctx context.Context, seg model.Segment, fn func(model.User)) error {
	return a.store.ForEachUser(ctx, seg.AppID, func(u model.User) error {
		if rules.Evaluate(seg.Rules, u.Properties) {
			fn(u)
		}
		return nil
	})
}
