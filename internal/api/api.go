// Package api implements the Herald REST API: admin CRUD over apps,
// notifications, segments and users, plus the SDK-facing sync, user upsert
// and session routes.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/store"
)

// AppCache is the in-process app lookup cache consulted by SDK routes.
type AppCache interface {
	Get(id string) (model.App, bool)
	Set(app model.App)
	Del(id string)
}

// Config tunes an API instance.
type Config struct {
	// AdminKeyHash is the hex SHA-256 of the admin API key.
	AdminKeyHash string

	// SkipAuth disables admin authentication. Tests and local development only.
	SkipAuth bool

	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64

	Logger *slog.Logger

	// Now is the clock used for server time and session defaults.
	Now func() time.Time
}

// API holds the router and its dependencies.
type API struct {
	// Router is the chi multiplexer serving every route.
	Router *chi.Mux

	store     store.Store
	snapshots cache.SnapshotStore
	apps      AppCache

	adminKeyHash string
	skipAuth     bool
	maxBodyBytes int64
	logger       *slog.Logger
	now          func() time.Time
}

// NewAPI wires the routes. It panics if a dependency is nil or if
// authentication is enabled without an admin key hash.
func NewAPI(st store.Store, snapshots cache.SnapshotStore, apps AppCache, cfg Config) *API {
	if st == nil {
		panic("api: store cannot be nil")
	}
	if snapshots == nil {
		panic("api: snapshot store cannot be nil")
	}
	if apps == nil {
		panic("api: app cache cannot be nil")
	}
	if !cfg.SkipAuth && cfg.AdminKeyHash == "" {
		panic("api: admin key hash cannot be empty when authentication is enabled")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	a := &API{
		Router:       chi.NewRouter(),
		store:        st,
		snapshots:    snapshots,
		apps:         apps,
		adminKeyHash: cfg.AdminKeyHash,
		skipAuth:     cfg.SkipAuth,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}

	a.configureRoutes()
	return a
}

// ServeHTTP lets the API be used directly as an http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Router.ServeHTTP(w, r)
}

func (a *API) configureRoutes() {
	// 1. Global middleware
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger(a.logger))
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))
	a.Router.Use(a.limitBody)

	a.Router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "Not found")
	})
	a.Router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// 2. Public
	a.Router.Get("/health", a.handleHealth)

	a.Router.Route("/api", func(r chi.Router) {
		// 3. SDK routes: the app must exist and a supplied X-API-Key must match.
		r.Group(func(r chi.Router) {
			r.Use(a.resolveApp)

			r.Get("/sync/{appId}", a.handleFullSync)
			r.Get("/sync/{appId}/delta", a.handleDeltaSync)
			r.Post("/users/{appId}", a.handleUpsertUser)
			r.Post("/analytics/{appId}/session", a.handleSessionEvent)
		})

		// 4. Admin routes
		r.Group(func(r chi.Router) {
			r.Use(a.authenticateAdmin)

			r.Route("/apps", func(r chi.Router) {
				r.Get("/", a.handleListApps)
				r.Post("/", a.handleCreateApp)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.handleGetApp)
					r.Patch("/", a.handleUpdateApp)
					r.Delete("/", a.handleDeleteApp)
					r.Post("/regenerate-key", a.handleRegenerateKey)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", a.handleListNotifications)
				r.Post("/", a.handleCreateNotification)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.handleGetNotification)
					r.Patch("/", a.handleUpdateNotification)
					r.Delete("/", a.handleDeleteNotification)
					r.Post("/toggle", a.handleToggleNotification)
					r.Post("/duplicate", a.handleDuplicateNotification)
				})
			})

			r.Route("/segments", func(r chi.Router) {
				r.Get("/", a.handleListSegments)
				r.Post("/", a.handleCreateSegment)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.handleGetSegment)
					r.Patch("/", a.handleUpdateSegment)
					r.Delete("/", a.handleDeleteSegment)
					r.Get("/users", a.handleSegmentUsers)
					r.Get("/count", a.handleSegmentCount)
				})
			})

			r.Get("/users", a.handleListUsers)
			r.Get("/users/{appId}/{externalId}", a.handleGetUser)
			r.Delete("/users/{appId}/{externalId}", a.handleDeleteUser)

			r.Get("/analytics/{appId}/overview", a.handleOverview)
			r.Get("/analytics/{appId}/dau", a.handleDAU)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}
