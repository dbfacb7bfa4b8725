package reconciler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/herald/internal/content"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/testsupport"
	"github.com/rafaeljc/herald/internal/trigger"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestReconciler(t *testing.T) (*Reconciler, *testsupport.FakeScheduler, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sched := testsupport.NewFakeScheduler()
	return New(sched, logger, WithClock(fixedClock())), sched, &buf
}

func TestNew_PanicsWithoutScheduler(t *testing.T) {
	t.Parallel()

	assert.PanicsWithValue(t, "reconciler: scheduler cannot be nil", func() {
		New(nil, nil)
	})
}

func TestReconcile_GoldTierScenario(t *testing.T) {
	t.Parallel()

	r, sched, _ := newTestReconciler(t)
	ctx := context.Background()
	notifications := []model.Notification{{
		ID:         "n1",
		Enabled:    true,
		Title:      "Morning",
		Conditions: []rules.Condition{{Field: "tier", Operator: rules.OpEq, Value: "gold"}},
		Trigger:    daily9,
	}}

	// Act 1: gold user.
	res := r.Reconcile(ctx, notifications, nil, model.UserContext{Properties: rules.Properties{"tier": "gold"}})

	// Assert 1: exactly one repeat-daily(9,0).
	assert.Equal(t, Result{Scheduled: 1}, res)
	active := sched.Active()
	require.Len(t, active, 1)
	assert.True(t, trigger.RepeatDaily(9, 0).Equal(active[0].Instruction))
	assert.Equal(t, map[string]string{"n1": active[0].ID}, r.Scheduled())

	// Act 2: user drops to silver.
	res = r.Reconcile(ctx, notifications, nil, model.UserContext{Properties: rules.Properties{"tier": "silver"}})

	// Assert 2: cancelled, nothing scheduled.
	assert.Equal(t, Result{Cancelled: 1}, res)
	assert.Empty(t, sched.Active())
	assert.Equal(t, []string{active[0].ID}, sched.Cancels())
	assert.Empty(t, r.Scheduled())
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	r, sched, _ := newTestReconciler(t)
	ctx := context.Background()
	notifications := []model.Notification{
		{ID: "a", Enabled: true, Title: "A", Trigger: daily9},
		{ID: "b", Enabled: true, Title: "B {{userId}}", Trigger: trigger.Trigger{
			Type:       trigger.TypeRecurring,
			Recurrence: &trigger.Recurrence{Interval: trigger.IntervalWeekly, Time: "10:15", DaysOfWeek: []int{1}},
		}},
		{ID: "c", Enabled: true, Trigger: trigger.Trigger{Type: trigger.TypeScheduled, ScheduledAt: "2026-04-01T00:00:00Z"}},
	}
	uc := model.UserContext{UserID: "u1"}

	first := r.Reconcile(ctx, notifications, nil, uc)
	firstInstructions := r.Instructions()
	firstScheduled := r.Scheduled()

	second := r.Reconcile(ctx, notifications, nil, uc)

	assert.Equal(t, Result{Scheduled: 3}, first)
	assert.Equal(t, Result{Unchanged: 3}, second)
	assert.Equal(t, firstScheduled, r.Scheduled())
	require.Len(t, r.Instructions(), 3)
	for id, in := range firstInstructions {
		assert.True(t, in.Equal(r.Instructions()[id]), id)
	}
	assert.Len(t, sched.Active(), 3)
	assert.Empty(t, sched.Cancels())
}

func TestReconcile_ReschedulesChangedContent(t *testing.T) {
	t.Parallel()

	r, sched, _ := newTestReconciler(t)
	ctx := context.Background()
	notifications := []model.Notification{{ID: "a", Enabled: true, Title: "Hi {{name}}", Trigger: daily9}}

	r.Reconcile(ctx, notifications, nil, model.UserContext{Properties: rules.Properties{"name": "Ana"}})
	oldID := r.Scheduled()["a"]

	res := r.Reconcile(ctx, notifications, nil, model.UserContext{Properties: rules.Properties{"name": "Bia"}})

	assert.Equal(t, Result{Scheduled: 1, Cancelled: 1}, res)
	assert.Equal(t, []string{oldID}, sched.Cancels())
	active := sched.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Hi Bia", active[0].Content.Title)
}

func TestReconcile_ReschedulesUnencodableContent(t *testing.T) {
	t.Parallel()

	r, sched, _ := newTestReconciler(t)
	ctx := context.Background()
	notifications := []model.Notification{{
		ID: "a", Enabled: true, Title: "Hi", Trigger: daily9,
		Data: map[string]any{"callback": func() {}},
	}}

	r.Reconcile(ctx, notifications, nil, model.UserContext{})
	oldID := r.Scheduled()["a"]

	res := r.Reconcile(ctx, notifications, nil, model.UserContext{})

	assert.Equal(t, Result{Scheduled: 1, Cancelled: 1}, res, "an entry that cannot be fingerprinted is never unchanged")
	assert.Equal(t, []string{oldID}, sched.Cancels())
	assert.Len(t, sched.Active(), 1)
}

func TestReconcile_IsolatesFailures(t *testing.T) {
	t.Parallel()

	r, sched, logs := newTestReconciler(t)
	sched.FailSchedule = func(c content.Content) error {
		if c.Title == "bad" {
			return errors.New("device refused")
		}
		return nil
	}
	notifications := []model.Notification{
		{ID: "a", Enabled: true, Title: "good", Trigger: daily9},
		{ID: "b", Enabled: true, Title: "bad", Trigger: daily9},
		{ID: "c", Enabled: true, Title: "good too", Trigger: daily9},
	}

	res := r.Reconcile(context.Background(), notifications, nil, model.UserContext{})

	assert.Equal(t, Result{Scheduled: 2, Failed: 1}, res)
	assert.Contains(t, r.Scheduled(), "a")
	assert.Contains(t, r.Scheduled(), "c")
	assert.NotContains(t, r.Scheduled(), "b")
	assert.Contains(t, logs.String(), "failed to schedule notification")
	assert.Contains(t, logs.String(), "notification_id=b")

	// The failed entry is retried on the next pass.
	sched.FailSchedule = nil
	res = r.Reconcile(context.Background(), notifications, nil, model.UserContext{})
	assert.Equal(t, Result{Scheduled: 1, Unchanged: 2}, res)
}

func TestReconcile_CancelFailureIsLoggedAndForgotten(t *testing.T) {
	t.Parallel()

	r, sched, logs := newTestReconciler(t)
	ctx := context.Background()
	r.Reconcile(ctx, []model.Notification{{ID: "a", Enabled: true, Trigger: daily9}}, nil, model.UserContext{})
	sched.FailCancel = func(string) error { return errors.New("already gone") }

	res := r.Reconcile(ctx, nil, nil, model.UserContext{})

	assert.Equal(t, Result{Cancelled: 1}, res)
	assert.Empty(t, r.Scheduled())
	assert.Contains(t, logs.String(), "failed to cancel scheduled notification")
}

func TestReconcile_SegmentGate(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestReconciler(t)
	segments := []model.SegmentInfo{{ID: "s1", Rules: []rules.Condition{{Field: "country", Operator: rules.OpIn, Value: []any{"BR", "PT"}}}}}
	notifications := []model.Notification{{
		ID:         "n",
		Enabled:    true,
		SegmentID:  "s1",
		Conditions: []rules.Condition{{Field: "age", Operator: rules.OpGte, Value: 18}},
		Trigger:    daily9,
	}}

	tests := []struct {
		props rules.Properties
		want  int
	}{
		{props: rules.Properties{"country": "BR", "age": 20}, want: 1},
		{props: rules.Properties{"country": "US", "age": 20}, want: 0},
		{props: rules.Properties{"country": "PT", "age": 16}, want: 0},
	}

	for _, tt := range tests {
		r.Reconcile(context.Background(), notifications, segments, model.UserContext{Properties: tt.props})
		assert.Len(t, r.Scheduled(), tt.want, "%v", tt.props)
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	r, sched, _ := newTestReconciler(t)
	ctx := context.Background()
	r.Reconcile(ctx, []model.Notification{
		{ID: "a", Enabled: true, Trigger: daily9},
		{ID: "b", Enabled: true, Title: "b", Trigger: daily9},
	}, nil, model.UserContext{})

	n := r.CancelAll(ctx)

	assert.Equal(t, 2, n)
	assert.Empty(t, r.Scheduled())
	assert.Empty(t, sched.Active())
	assert.Len(t, sched.Cancels(), 2)
	assert.Zero(t, r.CancelAll(ctx))
}
