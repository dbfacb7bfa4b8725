package sdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rafaeljc/herald/internal/model"
)

// fakeBackend serves the SDK-facing routes from in-memory state.
type fakeBackend struct {
	t *testing.T

	mu            sync.Mutex
	notifications []model.Notification
	segments      []model.SegmentInfo
	failSync      int // respond 500 to the next N sync requests
	requests      []string
	upserts       []map[string]any
	sessions      []map[string]any
	nextSession   int
	deltaGate     chan struct{} // when set, delta requests block until it is closed
	fullGate      chan struct{} // when set, full syncs read state then block until it is closed
	inFlight      int
	maxInFlight   int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()

	b := &fakeBackend{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sync/{appId}", b.fullSync)
	mux.HandleFunc("GET /api/sync/{appId}/delta", b.deltaSync)
	mux.HandleFunc("POST /api/users/{appId}", b.upsertUser)
	mux.HandleFunc("POST /api/analytics/{appId}/session", b.session)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) setNotifications(ns ...model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = ns
}

func (b *fakeBackend) setSegments(ss ...model.SegmentInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.segments = ss
}

func (b *fakeBackend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func (b *fakeBackend) Upserts() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.upserts...)
}

func (b *fakeBackend) Sessions() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.sessions...)
}

// MaxInFlight returns the highest number of sync requests served at once.
func (b *fakeBackend) MaxInFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight
}

func (b *fakeBackend) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight--
}

// record logs a sync request and counts it in flight until leave. It reports
// false when the request must fail.
func (b *fakeBackend) record(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight++
	b.maxInFlight = max(b.maxInFlight, b.inFlight)
	b.requests = append(b.requests, r.URL.RequestURI())
	if b.failSync > 0 {
		b.failSync--
		return false
	}
	return true
}

func (b *fakeBackend) fullSync(w http.ResponseWriter, r *http.Request) {
	defer b.leave()
	if !b.record(r) {
		reply(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		return
	}

	b.mu.Lock()
	resp := model.SyncResponse{ServerTime: time.Now().UTC(), Segments: b.segments}
	for _, n := range b.notifications {
		if n.Enabled {
			resp.Notifications = append(resp.Notifications, n)
			resp.Version = max(resp.Version, n.Version)
		}
	}
	gate := b.fullGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	reply(w, http.StatusOK, resp)
}

func (b *fakeBackend) deltaSync(w http.ResponseWriter, r *http.Request) {
	defer b.leave()
	if !b.record(r) {
		reply(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
		return
	}

	b.mu.Lock()
	gate := b.deltaGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)

	b.mu.Lock()
	resp := model.SyncResponse{ServerTime: time.Now().UTC(), Segments: b.segments, Version: since}
	for _, n := range b.notifications {
		if n.Enabled && n.Version > since {
			resp.Notifications = append(resp.Notifications, n)
			resp.Version = max(resp.Version, n.Version)
		}
	}
	b.mu.Unlock()

	reply(w, http.StatusOK, resp)
}

func (b *fakeBackend) upsertUser(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.upserts = append(b.upserts, body)
	b.mu.Unlock()

	reply(w, http.StatusOK, model.User{ID: "u", ExternalID: body["externalId"].(string)})
}

func (b *fakeBackend) session(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	b.sessions = append(b.sessions, body)
	b.nextSession++
	id := "sess-" + strconv.Itoa(b.nextSession)
	b.mu.Unlock()

	if body["type"] == "start" {
		reply(w, http.StatusOK, map[string]string{"sessionId": id})
		return
	}
	reply(w, http.StatusOK, map[string]bool{"success": true})
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
