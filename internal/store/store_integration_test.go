//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/store"
	"github.com/rafaeljc/herald/internal/testsupport"
	"github.com/rafaeljc/herald/internal/trigger"
)

func ptr[T any](v T) *T { return &v }

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	pg, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	s := store.NewPostgresStore(pg.DB)
	require.NoError(t, s.Ping(ctx))

	newApp := func(t *testing.T) model.App {
		t.Helper()
		app, err := s.CreateApp(ctx, "Shop")
		require.NoError(t, err)
		return app
	}

	t.Run("Apps", func(t *testing.T) {
		app := newApp(t)
		assert.Regexp(t, `^lnk_[0-9a-f]{32}$`, app.APIKey)

		renamed, err := s.RenameApp(ctx, app.ID, "Store")
		require.NoError(t, err)
		assert.Equal(t, "Store", renamed.Name)

		rotated, err := s.RegenerateAPIKey(ctx, app.ID)
		require.NoError(t, err)
		assert.NotEqual(t, app.APIKey, rotated.APIKey)

		require.NoError(t, s.DeleteApp(ctx, app.ID))
		_, err = s.GetApp(ctx, app.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.DeleteApp(ctx, app.ID), store.ErrNotFound)
	})

	t.Run("Notifications take the app's next version on every mutation", func(t *testing.T) {
		app := newApp(t)

		created, err := s.CreateNotification(ctx, model.Notification{
			AppID:      app.ID,
			Name:       "welcome",
			Title:      "Hi {{name}}",
			Body:       "Welcome",
			Trigger:    trigger.Trigger{Type: trigger.TypeRecurring, Recurrence: &trigger.Recurrence{Interval: trigger.IntervalDaily, Time: "09:00"}},
			Conditions: []rules.Condition{{Field: "plan", Operator: rules.OpEq, Value: "gold"}},
			Enabled:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)
		assert.Equal(t, model.PriorityDefault, created.Priority)
		assert.Empty(t, created.SegmentID)
		assert.Equal(t, "09:00", created.Trigger.Recurrence.Time)

		updated, err := s.UpdateNotification(ctx, created.ID, store.NotificationPatch{Title: ptr("Hello")})
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "Hello", updated.Title)
		assert.Equal(t, "Welcome", updated.Body)

		toggled, err := s.ToggleNotification(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, toggled.Enabled)
		assert.Equal(t, int64(3), toggled.Version)

		dup, err := s.DuplicateNotification(ctx, created.ID)
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, dup.ID)
		assert.Equal(t, "welcome (copy)", dup.Name)
		assert.False(t, dup.Enabled)
		assert.Equal(t, int64(4), dup.Version)

		_, err = s.UpdateNotification(ctx, "missing", store.NotificationPatch{})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Sync lists only enabled notifications past the watermark", func(t *testing.T) {
		app := newApp(t)
		mk := func(name string, enabled bool) model.Notification {
			n, err := s.CreateNotification(ctx, model.Notification{
				AppID: app.ID, Name: name, Title: name, Body: name,
				Trigger: trigger.Trigger{Type: trigger.TypeImmediate}, Enabled: enabled,
			})
			require.NoError(t, err)
			return n
		}
		a := mk("a", true)
		mk("b", false)
		_, err := s.UpdateNotification(ctx, a.ID, store.NotificationPatch{Body: ptr("changed")})
		require.NoError(t, err)
		mk("c", true)

		all, err := s.ListSyncNotifications(ctx, app.ID, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		// a: 1 then 3, b: 2, c: 4
		delta, err := s.ListSyncNotifications(ctx, app.ID, 3)
		require.NoError(t, err)
		require.Len(t, delta, 1)
		assert.Equal(t, "c", delta[0].Name)
	})

	t.Run("A notification created after many edits is past the watermark", func(t *testing.T) {
		app := newApp(t)
		mk := func(name string) model.Notification {
			n, err := s.CreateNotification(ctx, model.Notification{
				AppID: app.ID, Name: name, Title: name, Body: name,
				Trigger: trigger.Trigger{Type: trigger.TypeImmediate}, Enabled: true,
			})
			require.NoError(t, err)
			return n
		}

		a := mk("a")
		for i := 0; i < 4; i++ {
			_, err := s.UpdateNotification(ctx, a.ID, store.NotificationPatch{Body: ptr(fmt.Sprint("edit ", i))})
			require.NoError(t, err)
		}
		full, err := s.ListSyncNotifications(ctx, app.ID, 0)
		require.NoError(t, err)
		require.Len(t, full, 1)
		watermark := full[0].Version
		assert.Equal(t, int64(5), watermark)

		b := mk("b")
		assert.Greater(t, b.Version, watermark)

		delta, err := s.ListSyncNotifications(ctx, app.ID, watermark)
		require.NoError(t, err)
		require.Len(t, delta, 1)
		assert.Equal(t, b.ID, delta[0].ID)

		other := newApp(t)
		n, err := s.CreateNotification(ctx, model.Notification{
			AppID: other.ID, Name: "x", Title: "x", Body: "x",
			Trigger: trigger.Trigger{Type: trigger.TypeImmediate},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n.Version, "counters are per app")

		_, err = s.CreateNotification(ctx, model.Notification{AppID: "missing", Name: "x", Title: "x", Body: "x"})
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("Segment rule changes bump gated notifications", func(t *testing.T) {
		app := newApp(t)

		seg, err := s.CreateSegment(ctx, model.Segment{
			AppID: app.ID,
			Name:  "gold",
			Rules: []rules.Condition{{Field: "plan", Operator: rules.OpEq, Value: "gold"}},
		})
		require.NoError(t, err)

		n, err := s.CreateNotification(ctx, model.Notification{
			AppID: app.ID, Name: "n", Title: "t", Body: "b", SegmentID: seg.ID,
			Trigger: trigger.Trigger{Type: trigger.TypeImmediate}, Enabled: true,
		})
		require.NoError(t, err)

		_, err = s.UpdateSegment(ctx, seg.ID, store.SegmentPatch{Description: ptr("paying")})
		require.NoError(t, err)
		got, err := s.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version, "description changes do not affect eligibility")

		_, err = s.UpdateSegment(ctx, seg.ID, store.SegmentPatch{Rules: &[]rules.Condition{}})
		require.NoError(t, err)
		got, err = s.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)

		_, err = s.DeleteSegment(ctx, seg.ID)
		require.NoError(t, err)
		got, err = s.GetNotification(ctx, n.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Version)
		assert.Equal(t, seg.ID, got.SegmentID, "the dangling reference is kept")
	})

	t.Run("Users upsert and search", func(t *testing.T) {
		app := newApp(t)

		first, err := s.UpsertUser(ctx, app.ID, "user-42", rules.Properties{"plan": "gold"})
		require.NoError(t, err)
		assert.Equal(t, first.FirstSeen, first.LastSeen)

		second, err := s.UpsertUser(ctx, app.ID, "user-42", rules.Properties{"plan": "silver"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "silver", second.Properties["plan"])
		assert.True(t, second.LastSeen.After(first.LastSeen) || second.LastSeen.Equal(first.LastSeen))
		assert.Equal(t, first.FirstSeen, second.FirstSeen)

		_, err = s.UpsertUser(ctx, app.ID, "other", nil)
		require.NoError(t, err)

		users, total, err := s.ListUsers(ctx, store.UserFilter{AppID: app.ID, Search: "42", Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, users, 1)
		assert.Equal(t, "user-42", users[0].ExternalID)

		_, total, err = s.ListUsers(ctx, store.UserFilter{AppID: app.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		var seen []string
		require.NoError(t, s.ForEachUser(ctx, app.ID, func(u model.User) error {
			seen = append(seen, u.ExternalID)
			return nil
		}))
		assert.ElementsMatch(t, []string{"user-42", "other"}, seen)

		require.NoError(t, s.DeleteUser(ctx, app.ID, "other"))
		assert.ErrorIs(t, s.DeleteUser(ctx, app.ID, "other"), store.ErrNotFound)
	})

	t.Run("Sessions feed the analytics overview", func(t *testing.T) {
		app := newApp(t)
		now := time.Now().UTC()

		for _, id := range []string{"u1", "u2", "u3"} {
			_, err := s.UpsertUser(ctx, app.ID, id, nil)
			require.NoError(t, err)
		}

		_, err := s.StartSession(ctx, app.ID, "ghost", now)
		assert.ErrorIs(t, err, store.ErrNotFound)

		today, err := s.StartSession(ctx, app.ID, "u1", now.Add(-90*time.Second))
		require.NoError(t, err)
		assert.Equal(t, model.SessionDate(now.Add(-90*time.Second)), today.Date)

		_, err = s.StartSession(ctx, app.ID, "u1", now)
		require.NoError(t, err)
		_, err = s.StartSession(ctx, app.ID, "u2", now.AddDate(0, 0, -3))
		require.NoError(t, err)
		_, err = s.StartSession(ctx, app.ID, "u3", now.AddDate(0, 0, -20))
		require.NoError(t, err)

		found, err := s.EndSession(ctx, app.ID, today.ID, today.StartedAt.Add(90500*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, found)

		var duration int
		require.NoError(t, pg.DB.QueryRow(ctx, `SELECT duration FROM sessions WHERE id = $1`, today.ID).Scan(&duration))
		assert.Equal(t, 90, duration)

		found, err = s.EndSession(ctx, app.ID, "missing", now)
		require.NoError(t, err)
		assert.False(t, found)

		overview, err := s.Overview(ctx, app.ID, now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), overview.TotalUsers)
		assert.GreaterOrEqual(t, overview.ActiveUsers.Daily, int64(1))
		assert.Equal(t, int64(2), overview.ActiveUsers.Weekly)
		assert.Equal(t, int64(3), overview.ActiveUsers.Monthly)

		require.Len(t, overview.DAUHistory, store.DefaultDAUDays)
		last := overview.DAUHistory[len(overview.DAUHistory)-1]
		assert.Equal(t, model.SessionDate(now), last.Date)
		assert.Equal(t, int64(1), last.Count)

		week, err := s.DAUHistory(ctx, app.ID, 7, now)
		require.NoError(t, err)
		assert.Len(t, week, 7)
	})

	t.Run("Deleting an app cascades", func(t *testing.T) {
		app := newApp(t)
		_, err := s.UpsertUser(ctx, app.ID, "u", nil)
		require.NoError(t, err)

		require.NoError(t, s.DeleteApp(ctx, app.ID))

		_, err = s.GetUser(ctx, app.ID, "u")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
