package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/herald/internal/cache"
	"github.com/rafaeljc/herald/internal/model"
)

func TestSnapshotKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "sync:app-1", cache.SnapshotKey("app-1"))
}

func TestSnapshot_Response(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	snap := &cache.Snapshot{
		Notifications: []model.Notification{
			{ID: "a", Version: 1},
			{ID: "b", Version: 4},
			{ID: "c", Version: 2},
		},
		Segments: []model.SegmentInfo{{ID: "seg-1", Name: "gold"}},
	}

	tests := []struct {
		name        string
		since       int64
		wantIDs     []string
		wantVersion int64
	}{
		{name: "Should return everything on a full sync", since: 0, wantIDs: []string{"a", "b", "c"}, wantVersion: 4},
		{name: "Should filter by version", since: 1, wantIDs: []string{"b", "c"}, wantVersion: 4},
		{name: "Should echo the watermark when nothing changed", since: 4, wantIDs: []string{}, wantVersion: 4},
		{name: "Should keep a watermark ahead of the data", since: 9, wantIDs: []string{}, wantVersion: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp := snap.Response(tt.since, now)

			ids := make([]string, 0, len(resp.Notifications))
			for _, n := range resp.Notifications {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantVersion, resp.Version)
			assert.Equal(t, snap.Segments, resp.Segments)
			assert.Equal(t, time.UTC, resp.ServerTime.Location())
		})
	}
}

func TestSnapshot_Response_EmptySegmentsAreNotNull(t *testing.T) {
	t.Parallel()

	resp := (&cache.Snapshot{}).Response(0, time.Now())

	assert.NotNil(t, resp.Notifications)
	assert.NotNil(t, resp.Segments)
	assert.Equal(t, int64(0), resp.Version)
}
