package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/store"
)

// MemoryStore is an in-memory store.Store with the same observable
// semantics as the Postgres implementation. It is safe for concurrent use.
type MemoryStore struct {
	mu sync.Mutex

	// Now drives timestamps. Defaults to time.Now.
	Now func() time.Time

	// Err, when set, is returned by every call.
	Err error

	seq           int
	apps          map[string]model.App
	notifications map[string]model.Notification
	segments      map[string]model.Segment
	users         map[string]model.User // key: appID + "/" + externalID
	sessions      map[string]model.Session
	order         map[string]int
	versions      map[string]int64 // key: appID
}

var _ store.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Now:           time.Now,
		apps:          make(map[string]model.App),
		notifications: make(map[string]model.Notification),
		segments:      make(map[string]model.Segment),
		users:         make(map[string]model.User),
		sessions:      make(map[string]model.Session),
		order:         make(map[string]int),
		versions:      make(map[string]int64),
	}
}

// Sessions returns a snapshot of every recorded session.
func (m *MemoryStore) Sessions() []model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] < m.order[out[j].ID] })
	return out
}

func (m *MemoryStore) track(id string) {
	m.seq++
	m.order[id] = m.seq
}

// newestFirst sorts ids by insertion order, latest first.
func (m *MemoryStore) newestFirst(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return m.order[ids[i]] > m.order[ids[j]] })
}

// nextVersion advances the version counter of appID.
func (m *MemoryStore) nextVersion(appID string) int64 {
	m.versions[appID]++
	return m.versions[appID]
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, store.ErrNotFound)
}

// --- apps ---

func (m *MemoryStore) CreateApp(_ context.Context, name string) (model.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.App{}, m.Err
	}

	now := m.Now().UTC()
	a := model.App{ID: uuid.NewString(), Name: name, APIKey: store.NewAPIKey(), CreatedAt: now, UpdatedAt: now}
	m.apps[a.ID] = a
	m.track(a.ID)
	return a, nil
}

func (m *MemoryStore) GetApp(_ context.Context, id string) (model.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.App{}, m.Err
	}

	a, ok := m.apps[id]
	if !ok {
		return model.App{}, notFound("app", id)
	}
	return a, nil
}

func (m *MemoryStore) ListApps(_ context.Context) ([]model.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	ids := make([]string, 0, len(m.apps))
	for id := range m.apps {
		ids = append(ids, id)
	}
	m.newestFirst(ids)

	out := make([]model.App, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.apps[id])
	}
	return out, nil
}

func (m *MemoryStore) RenameApp(_ context.Context, id, name string) (model.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.App{}, m.Err
	}

	a, ok := m.apps[id]
	if !ok {
		return model.App{}, notFound("app", id)
	}
	a.Name = name
	a.UpdatedAt = m.Now().UTC()
	m.apps[id] = a
	return a, nil
}

func (m *MemoryStore) DeleteApp(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	if _, ok := m.apps[id]; !ok {
		return notFound("app", id)
	}
	delete(m.apps, id)
	delete(m.versions, id)
	for k, n := range m.notifications {
		if n.AppID == id {
			delete(m.notifications, k)
		}
	}
	for k, s := range m.segments {
		if s.AppID == id {
			delete(m.segments, k)
		}
	}
	for k, u := range m.users {
		if u.AppID == id {
			delete(m.users, k)
		}
	}
	for k, s := range m.sessions {
		if s.AppID == id {
			delete(m.sessions, k)
		}
	}
	return nil
}

func (m *MemoryStore) RegenerateAPIKey(_ context.Context, id string) (model.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.App{}, m.Err
	}

	a, ok := m.apps[id]
	if !ok {
		return model.App{}, notFound("app", id)
	}
	a.APIKey = store.NewAPIKey()
	a.UpdatedAt = m.Now().UTC()
	m.apps[id] = a
	return a, nil
}

// --- notifications ---

func (m *MemoryStore) CreateNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Notification{}, m.Err
	}

	if _, ok := m.apps[n.AppID]; !ok {
		return model.Notification{}, fmt.Errorf("failed to insert notification: %w", store.ErrConflict)
	}
	if n.Priority == "" {
		n.Priority = model.PriorityDefault
	}
	now := m.Now().UTC()
	n.ID = uuid.NewString()
	n.Version = m.nextVersion(n.AppID)
	n.CreatedAt, n.UpdatedAt = now, now
	m.notifications[n.ID] = n
	m.track(n.ID)
	return n, nil
}

func (m *MemoryStore) GetNotification(_ context.Context, id string) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Notification{}, m.Err
	}

	n, ok := m.notifications[id]
	if !ok {
		return model.Notification{}, notFound("notification", id)
	}
	return n, nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, appID string) ([]model.Notification, error) {
	return m.listNotifications(func(n model.Notification) bool {
		return appID == "" || n.AppID == appID
	})
}

func (m *MemoryStore) ListSyncNotifications(_ context.Context, appID string, since int64) ([]model.Notification, error) {
	return m.listNotifications(func(n model.Notification) bool {
		return n.AppID == appID && n.Enabled && n.Version > since
	})
}

func (m *MemoryStore) listNotifications(keep func(model.Notification) bool) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var ids []string
	for id, n := range m.notifications {
		if keep(n) {
			ids = append(ids, id)
		}
	}
	m.newestFirst(ids)

	out := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.notifications[id])
	}
	return out, nil
}

func (m *MemoryStore) UpdateNotification(_ context.Context, id string, patch store.NotificationPatch) (model.Notification, error) {
	return m.mutateNotification(id, func(n *model.Notification) { patch.Apply(n) })
}

func (m *MemoryStore) ToggleNotification(_ context.Context, id string) (model.Notification, error) {
	return m.mutateNotification(id, func(n *model.Notification) { n.Enabled = !n.Enabled })
}

func (m *MemoryStore) mutateNotification(id string, fn func(*model.Notification)) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Notification{}, m.Err
	}

	n, ok := m.notifications[id]
	if !ok {
		return model.Notification{}, notFound("notification", id)
	}
	fn(&n)
	n.Version = m.nextVersion(n.AppID)
	n.UpdatedAt = m.Now().UTC()
	m.notifications[id] = n
	return n, nil
}

func (m *MemoryStore) DuplicateNotification(_ context.Context, id string) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Notification{}, m.Err
	}

	src, ok := m.notifications[id]
	if !ok {
		return model.Notification{}, notFound("notification", id)
	}
	now := m.Now().UTC()
	dup := src
	dup.ID = uuid.NewString()
	dup.Name = src.Name + " (copy)"
	dup.Enabled = false
	dup.Version = m.nextVersion(src.AppID)
	dup.CreatedAt, dup.UpdatedAt = now, now
	m.notifications[dup.ID] = dup
	m.track(dup.ID)
	return dup, nil
}

func (m *MemoryStore) DeleteNotification(_ context.Context, id string) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Notification{}, m.Err
	}

	n, ok := m.notifications[id]
	if !ok {
		return model.Notification{}, notFound("notification", id)
	}
	delete(m.notifications, id)
	return n, nil
}

// --- segments ---

func (m *MemoryStore) CreateSegment(_ context.Context, seg model.Segment) (model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Segment{}, m.Err
	}

	if _, ok := m.apps[seg.AppID]; !ok {
		return model.Segment{}, fmt.Errorf("failed to insert segment: %w", store.ErrConflict)
	}
	if seg.Rules == nil {
		seg.Rules = []rules.Condition{}
	}
	now := m.Now().UTC()
	seg.ID = uuid.NewString()
	seg.CreatedAt, seg.UpdatedAt = now, now
	m.segments[seg.ID] = seg
	m.track(seg.ID)
	return seg, nil
}

func (m *MemoryStore) GetSegment(_ context.Context, id string) (model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Segment{}, m.Err
	}

	seg, ok := m.segments[id]
	if !ok {
		return model.Segment{}, notFound("segment", id)
	}
	return seg, nil
}

func (m *MemoryStore) ListSegments(_ context.Context, appID string) ([]model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var ids []string
	for id, seg := range m.segments {
		if appID == "" || seg.AppID == appID {
			ids = append(ids, id)
		}
	}
	m.newestFirst(ids)

	out := make([]model.Segment, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.segments[id])
	}
	return out, nil
}

func (m *MemoryStore) UpdateSegment(_ context.Context, id string, patch store.SegmentPatch) (model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Segment{}, m.Err
	}

	seg, ok := m.segments[id]
	if !ok {
		return model.Segment{}, notFound("segment", id)
	}
	if patch.Name != nil {
		seg.Name = *patch.Name
	}
	if patch.Description != nil {
		seg.Description = *patch.Description
	}
	if patch.Rules != nil {
		seg.Rules = *patch.Rules
		m.bumpSegmentNotifications(seg)
	}
	seg.UpdatedAt = m.Now().UTC()
	m.segments[id] = seg
	return seg, nil
}

func (m *MemoryStore) DeleteSegment(_ context.Context, id string) (model.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Segment{}, m.Err
	}

	seg, ok := m.segments[id]
	if !ok {
		return model.Segment{}, notFound("segment", id)
	}
	delete(m.segments, id)
	m.bumpSegmentNotifications(seg)
	return seg, nil
}

func (m *MemoryStore) bumpSegmentNotifications(seg model.Segment) {
	version := m.nextVersion(seg.AppID)
	for id, n := range m.notifications {
		if n.SegmentID == seg.ID {
			n.Version = version
			m.notifications[id] = n
		}
	}
}

// --- users ---

func userKey(appID, externalID string) string {
	return appID + "/" + externalID
}

func (m *MemoryStore) UpsertUser(_ context.Context, appID, externalID string, props rules.Properties) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.User{}, m.Err
	}

	if _, ok := m.apps[appID]; !ok {
		return model.User{}, fmt.Errorf("failed to upsert user: %w", store.ErrConflict)
	}
	if props == nil {
		props = rules.Properties{}
	}

	now := m.Now().UTC()
	key := userKey(appID, externalID)
	u, ok := m.users[key]
	if !ok {
		u = model.User{ID: uuid.NewString(), AppID: appID, ExternalID: externalID, FirstSeen: now, CreatedAt: now}
		m.track(u.ID)
	}
	u.Properties = props
	u.LastSeen = now
	u.UpdatedAt = now
	m.users[key] = u
	return u, nil
}

func (m *MemoryStore) GetUser(_ context.Context, appID, externalID string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.User{}, m.Err
	}

	u, ok := m.users[userKey(appID, externalID)]
	if !ok {
		return model.User{}, notFound("user", externalID)
	}
	return u, nil
}

// sortedUsers returns the users of appID (every app when empty), most
// recently seen first. The caller holds mu.
func (m *MemoryStore) sortedUsers(appID string) []model.User {
	var out []model.User
	for _, u := range m.users {
		if appID == "" || u.AppID == appID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryStore) ListUsers(_ context.Context, filter store.UserFilter) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, 0, m.Err
	}

	var matched []model.User
	for _, u := range m.sortedUsers(filter.AppID) {
		if filter.Search == "" || strings.Contains(u.ExternalID, filter.Search) {
			matched = append(matched, u)
		}
	}

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return append([]model.User{}, matched[start:end]...), total, nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, appID, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}

	key := userKey(appID, externalID)
	u, ok := m.users[key]
	if !ok {
		return notFound("user", externalID)
	}
	delete(m.users, key)
	for id, s := range m.sessions {
		if s.UserID == u.ID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *MemoryStore) ForEachUser(_ context.Context, appID string, fn func(model.User) error) error {
	m.mu.Lock()
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	users := m.sortedUsers(appID)
	m.mu.Unlock()

	for _, u := range users {
		if err := fn(u); err != nil {
			return err
		}
	}
	return nil
}

// --- sessions ---

func (m *MemoryStore) StartSession(_ context.Context, appID, externalID string, at time.Time) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.Session{}, m.Err
	}

	key := userKey(appID, externalID)
	u, ok := m.users[key]
	if !ok {
		return model.Session{}, notFound("user", externalID)
	}
	u.LastSeen = at.UTC()
	m.users[key] = u

	s := model.Session{
		ID:        uuid.NewString(),
		AppID:     appID,
		UserID:    u.ID,
		StartedAt: at.UTC(),
		Date:      model.SessionDate(at),
	}
	m.sessions[s.ID] = s
	m.track(s.ID)
	return s, nil
}

func (m *MemoryStore) EndSession(_ context.Context, appID, sessionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}

	s, ok := m.sessions[sessionID]
	if !ok || s.AppID != appID {
		return false, nil
	}
	ended := at.UTC()
	duration := max(0, int(ended.Sub(s.StartedAt)/time.Second))
	s.EndedAt = &ended
	s.Duration = &duration
	m.sessions[sessionID] = s
	return true, nil
}

// --- analytics ---

func (m *MemoryStore) Overview(ctx context.Context, appID string, now time.Time) (model.AnalyticsOverview, error) {
	history, err := m.DAUHistory(ctx, appID, store.DefaultDAUDays, now)
	if err != nil {
		return model.AnalyticsOverview{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out model.AnalyticsOverview
	for _, u := range m.users {
		if u.AppID == appID {
			out.TotalUsers++
		}
	}
	out.ActiveUsers.Daily = m.activeSince(appID, now, 0)
	out.ActiveUsers.Weekly = m.activeSince(appID, now, 7)
	out.ActiveUsers.Monthly = m.activeSince(appID, now, 30)
	out.DAUHistory = history
	return out, nil
}

// activeSince counts distinct users with a session dated within days of
// now's UTC day. The caller holds mu.
func (m *MemoryStore) activeSince(appID string, now time.Time, days int) int64 {
	from := model.SessionDate(now.UTC().AddDate(0, 0, -days))
	seen := make(map[string]struct{})
	for _, s := range m.sessions {
		if s.AppID == appID && s.Date >= from {
			seen[s.UserID] = struct{}{}
		}
	}
	return int64(len(seen))
}

func (m *MemoryStore) DAUHistory(_ context.Context, appID string, days int, now time.Time) ([]model.DAUPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	history := make([]model.DAUPoint, 0, max(days, 0))
	for i := days - 1; i >= 0; i-- {
		date := model.SessionDate(now.UTC().AddDate(0, 0, -i))
		seen := make(map[string]struct{})
		for _, s := range m.sessions {
			if s.AppID == appID && s.Date == date {
				seen[s.UserID] = struct{}{}
			}
		}
		history = append(history, model.DAUPoint{Date: date, Count: int64(len(seen))})
	}
	return history, nil
}
