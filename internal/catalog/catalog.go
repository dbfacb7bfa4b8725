// Package catalog holds the SDK's local, read-only copy of the notification
// and segment definitions together with the delta-sync watermark.
package catalog

import (
	"sync"
	"time"

	"github.com/rafaeljc/herald/internal/model"
)

// Catalog is safe for concurrent use. Readers always get copies.
//
// Notifications disabled on the server are omitted from delta responses rather
// than sent as tombstones, so the catalog can keep a stale enabled copy until the
// next full sync. StaleSince exposes when that last happened.
type Catalog struct {
	mu            sync.RWMutex
	notifications []model.Notification
	index         map[string]int
	segments      []model.SegmentInfo
	version       int64
	lastFullSync  time.Time
}

// New returns an empty catalog with watermark 0.
func New() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// ReplaceAll applies a full sync response: notifications and segments are
// replaced wholesale and the watermark is set to the response version.
func (c *Catalog) ReplaceAll(resp model.SyncResponse, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = make([]model.Notification, 0, len(resp.Notifications))
	c.index = make(map[string]int, len(resp.Notifications))
	for _, n := range resp.Notifications {
		c.upsert(n)
	}

	c.segments = append([]model.SegmentInfo(nil), resp.Segments...)
	c.version = max(resp.Version, 0)
	c.lastFullSync = at
}

// Merge applies a delta sync response: notifications are updated in place by
// id or appended, and the watermark only moves forward. The segment set is
// replaced only when the response carries segments.
func (c *Catalog) Merge(resp model.SyncResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, n := range resp.Notifications {
		c.upsert(n)
	}

	if len(resp.Segments) > 0 {
		c.segments = append([]model.SegmentInfo(nil), resp.Segments...)
	}

	c.version = max(c.version, resp.Version)
}

// upsert must be called with the write lock held.
func (c *Catalog) upsert(n model.Notification) {
	if i, ok := c.index[n.ID]; ok {
		c.notifications[i] = n
		return
	}
	c.index[n.ID] = len(c.notifications)
	c.notifications = append(c.notifications, n)
}

// Clear empties the catalog and resets the watermark.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notifications = nil
	c.index = make(map[string]int)
	c.segments = nil
	c.version = 0
	c.lastFullSync = time.Time{}
}

// Notifications returns a copy of the cached notifications in sync order.
func (c *Catalog) Notifications() []model.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]model.Notification(nil), c.notifications...)
}

// Segments returns a copy of the cached segments.
func (c *Catalog) Segments() []model.SegmentInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]model.SegmentInfo(nil), c.segments...)
}

// Get looks up a notification by id.
func (c *Catalog) Get(id string) (model.Notification, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return c.notifications[i], true
}

// Version returns the watermark used for the next delta sync.
func (c *Catalog) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.version
}

// StaleSince returns the time of the last full sync, zero if none happened.
func (c *Catalog) StaleSince() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastFullSync
}
