// Package cache holds the two cache tiers of herald-api: sync snapshots in
// Redis and an in-process app cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/internal/validation"
)

// KeyPrefix namespaces sync snapshots: "sync:{appId}".
const KeyPrefix = "sync"

// SnapshotKey returns the Redis key of appID's snapshot.
func SnapshotKey(appID string) string {
	return KeyPrefix + ":" + appID
}

// GenerationKey returns the Redis key of appID's invalidation counter.
func GenerationKey(appID string) string {
	return SnapshotKey(appID) + ":gen"
}

// Snapshot is the full sync state of one app: every enabled notification and
// every segment.
type Snapshot struct {
	Notifications []model.Notification `json:"notifications"`
	Segments      []model.SegmentInfo  `json:"segments"`
}

// Response projects the snapshot onto a sync response holding the
// notifications whose version is greater than since. Version is the highest
// version returned, or since when nothing qualifies.
func (s *Snapshot) Response(since int64, now time.Time) model.SyncResponse {
	resp := model.SyncResponse{
		Notifications: make([]model.Notification, 0, len(s.Notifications)),
		Segments:      s.Segments,
		ServerTime:    now.UTC(),
		Version:       since,
	}
	if resp.Segments == nil {
		resp.Segments = []model.SegmentInfo{}
	}
	for _, n := range s.Notifications {
		if n.Version <= since {
			continue
		}
		resp.Notifications = append(resp.Notifications, n)
		if n.Version > resp.Version {
			resp.Version = n.Version
		}
	}
	return resp
}

// SnapshotStore caches snapshots per app. Every Invalidate advances the
// app's generation, and Set only writes a snapshot built in the current one,
// so a rebuild that raced a mutation never lands in the cache.
type SnapshotStore interface {
	// Get reports false on a miss, with the generation observed by the read.
	// A corrupt entry counts as a miss.
	Get(ctx context.Context, appID string) (snap *Snapshot, gen int64, found bool, err error)
	// Set stores snap unless appID was invalidated after gen was observed.
	// It reports whether snap was stored.
	Set(ctx context.Context, appID string, gen int64, snap *Snapshot) (bool, error)
	Invalidate(ctx context.Context, appID string) error
}

// RedisSnapshots stores snapshots as JSON strings with a TTL.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ SnapshotStore = (*RedisSnapshots)(nil)

// NewRedisSnapshots returns a snapshot store on client. It panics if client is nil.
func NewRedisSnapshots(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisSnapshots {
	validation.AssertNotNil(client, "cache: redis client")
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSnapshots{client: client, ttl: ttl, logger: logger}
}

func (c *RedisSnapshots) Get(ctx context.Context, appID string) (*Snapshot, int64, bool, error) {
	key := SnapshotKey(appID)

	vals, err := c.client.MGet(ctx, key, GenerationKey(appID)).Result()
	if err != nil {
		observability.SnapshotCacheRequests.WithLabelValues("error").Inc()
		return nil, 0, false, fmt.Errorf("failed to read snapshot %q: %w", key, err)
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		observability.SnapshotCacheRequests.WithLabelValues("error").Inc()
		return nil, 0, false, fmt.Errorf("failed to read generation of %q: %w", key, err)
	}

	raw, ok := vals[0].(string)
	if !ok {
		observability.SnapshotCacheRequests.WithLabelValues("miss").Inc()
		return nil, gen, false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// Drop it so the next read repopulates from Postgres.
		c.logger.Warn("discarding corrupt sync snapshot",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
			c.logger.Warn("failed to delete corrupt snapshot", slog.String("key", key), slog.String("error", delErr.Error()))
		}
		observability.SnapshotCacheRequests.WithLabelValues("miss").Inc()
		return nil, gen, false, nil
	}

	observability.SnapshotCacheRequests.WithLabelValues("hit").Inc()
	return &snap, gen, true, nil
}

// setIfCurrent writes KEYS[1] only while the generation at KEYS[2] still
// equals ARGV[1]. A missing generation reads as 0.
var setIfCurrent = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *RedisSnapshots) Set(ctx context.Context, appID string, gen int64, snap *Snapshot) (bool, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot for app %s: %w", appID, err)
	}

	keys := []string{SnapshotKey(appID), GenerationKey(appID)}
	stored, err := setIfCurrent.Run(ctx, c.client, keys, gen, raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to write snapshot for app %s: %w", appID, err)
	}
	if stored == 0 {
		observability.SnapshotWrites.WithLabelValues("superseded").Inc()
		return false, nil
	}
	observability.SnapshotWrites.WithLabelValues("stored").Inc()
	return true, nil
}

// Invalidate drops the snapshot and advances the generation in one
// transaction.
func (c *RedisSnapshots) Invalidate(ctx context.Context, appID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey(appID))
		pipe.Del(ctx, SnapshotKey(appID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate snapshot for app %s: %w", appID, err)
	}
	observability.SnapshotInvalidations.Inc()
	return nil
}

func parseGeneration(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected generation type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

// NopSnapshots never caches. It is used when the snapshot tier is disabled.
type NopSnapshots struct{}

var _ SnapshotStore = NopSnapshots{}

func (NopSnapshots) Get(context.Context, string) (*Snapshot, int64, bool, error) {
	return nil, 0, false, nil
}

func (NopSnapshots) Set(context.Context, string, int64, *Snapshot) (bool, error) { return false, nil }
func (NopSnapshots) Invalidate(context.Context, string) error                     { return nil }
