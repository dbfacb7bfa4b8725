package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/store"
)

// RequestLogger stores a request-scoped logger carrying the request id in the
// context and logs every completed request.
// Info for success, Warn for 4xx, Error for 5xx.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := middleware.GetReqID(r.Context())
			log := base.With(slog.String("request_id", reqID))
			r = r.WithContext(logger.WithContext(r.Context(), log))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			status := ww.Status()
			if status >= 500 {
				level = slog.LevelError
			} else if status >= 400 {
				level = slog.LevelWarn
			}

			log.Log(r.Context(), level, "HTTP request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.String("duration", time.Since(start).String()),
				slog.String("remote_ip", r.RemoteAddr),
			)
		})
	}
}

// Metrics records request counts and latency labelled by route pattern, so
// ids in the path never become label values. Unmatched paths collapse to
// "not_found".
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "not_found"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		observability.APIReqDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		observability.APIReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

func (a *API) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// authenticateAdmin requires "Authorization: Bearer <key>" whose SHA-256
// matches the configured hash.
func (a *API) authenticateAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || key == "" {
			respondError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sum := sha256.Sum256([]byte(key))
		got := hex.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(a.adminKeyHash))) != 1 {
			logger.FromContext(r.Context()).Warn("admin authentication failed")
			respondError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

type appCtxKey struct{}

// appFromContext returns the app resolved by resolveApp.
func appFromContext(ctx context.Context) model.App {
	app, _ := ctx.Value(appCtxKey{}).(model.App)
	return app
}

// resolveApp loads the {appId} app for SDK routes. A missing app is 404. The
// X-API-Key header is optional, but when present it must match.
func (a *API) resolveApp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appID := chi.URLParam(r, "appId")

		app, err := a.lookupApp(r.Context(), appID)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "App not found")
			return
		}
		if err != nil {
			logger.FromContext(r.Context()).Error("failed to load app",
				slog.String("app_id", appID),
				slog.String("error", err.Error()),
			)
			respondError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		if key := r.Header.Get("X-API-Key"); key != "" {
			if subtle.ConstantTimeCompare([]byte(key), []byte(app.APIKey)) != 1 {
				respondError(w, r, http.StatusUnauthorized, "Invalid API key")
				return
			}
		}

		ctx := context.WithValue(r.Context(), appCtxKey{}, app)
		ctx = logger.With(ctx, slog.String("app_id", app.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookupApp reads through the app cache.
func (a *API) lookupApp(ctx context.Context, id string) (model.App, error) {
	if app, ok := a.apps.Get(id); ok {
		return app, nil
	}
	app, err := a.store.GetApp(ctx, id)
	if err != nil {
		return model.App{}, err
	}
	a.apps.Set(app)
	return app, nil
}
