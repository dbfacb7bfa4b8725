package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/store"
)

const (
	msgUserNotFound = "User not found"

	defaultPageSize = 50
	maxPageSize     = 500
)

// pagination reads ?limit= and ?offset=, clamping out-of-range values. A
// malformed value is a 400.
func pagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	offset, err = queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}

	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, true
}

// handleListUsers serves GET /api/users?appId=&search=&limit=&offset=.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	users, total, err := a.store.ListUsers(r.Context(), store.UserFilter{
		AppID:  q.Get("appId"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondStoreError(w, r, err, msgUserNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, UserPage{Users: users, Total: total, Limit: limit, Offset: offset})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.GetUser(r.Context(), chi.URLParam(r, "appId"), chi.URLParam(r, "externalId"))
	if err != nil {
		respondStoreError(w, r, err, msgUserNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, u)
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteUser(r.Context(), chi.URLParam(r, "appId"), chi.URLParam(r, "externalId")); err != nil {
		respondStoreError(w, r, err, msgUserNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, SuccessResponse{Success: true})
}

// handleUpsertUser is the SDK property push: it creates the user or replaces
// its properties and bumps lastSeen.
func (a *API) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	app := appFromContext(r.Context())

	var req UpsertUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := a.store.UpsertUser(r.Context(), app.ID, req.ExternalID, req.Properties)
	if err != nil {
		respondStoreError(w, r, err, msgAppNotFound)
		return
	}
	respondJSON(w, r, http.StatusOK, u)
}
