package reconciler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rafaeljc/herald/internal/content"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/trigger"
)

// Scheduler is the device capability the reconciler drives.
type Scheduler interface {
	// Schedule registers content to fire according to in and returns the device's schedule id.
	Schedule(ctx context.Context, c content.Content, in trigger.Instruction) (string, error)

	// Cancel removes a previously scheduled notification.
	Cancel(ctx context.Context, scheduleID string) error
}

// Result summarizes one reconciliation pass.
type Result struct {
	Scheduled int
	Cancelled int
	Unchanged int
	Failed    int
}

// fingerprint is a planned entry's Fingerprint. An entry that is not
// comparable is rescheduled on every pass.
type fingerprint struct {
	sum        uint64
	comparable bool
}

type scheduled struct {
	scheduleID  string
	fingerprint uint64
	instruction trigger.Instruction
}

// Reconciler is the only writer of this SDK's schedules on the device.
// The OS or the user may still cancel them behind its back, so its view is a
// best-effort mirror.
type Reconciler struct {
	scheduler Scheduler
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	scheduled map[string]scheduled // notification id -> device schedule
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source used to compile triggers.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// New creates a Reconciler.
// It panics if scheduler is nil. If logger is nil, it defaults to slog.Default().
func New(scheduler Scheduler, logger *slog.Logger, opts ...Option) *Reconciler {
	if scheduler == nil {
		panic("reconciler: scheduler cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reconciler{
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
		scheduled: make(map[string]scheduled),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile makes the device schedule match the eligible set for uc.
//
// The final state is the same as cancelling everything and scheduling the plan
// again, but entries whose content and instruction did not change are left
// alone. A failure on one notification is logged and does not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, notifications []model.Notification, segments []model.SegmentInfo, uc model.UserContext) Result {
	plan := Plan(notifications, segments, uc, r.now())

	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result

	desired := make(map[string]fingerprint, len(plan))
	for _, e := range plan {
		sum, ok := e.Fingerprint()
		desired[e.NotificationID] = fingerprint{sum: sum, comparable: ok}
	}

	// 1. Cancel what is no longer wanted, or wanted differently.
	for _, id := range r.sortedIDs() {
		current := r.scheduled[id]
		if fp, ok := desired[id]; ok && fp.comparable && fp.sum == current.fingerprint {
			res.Unchanged++
			continue
		}

		if err := r.scheduler.Cancel(ctx, current.scheduleID); err != nil {
			r.logger.Warn("failed to cancel scheduled notification",
				"notification_id", id,
				"schedule_id", current.scheduleID,
				"error", err,
			)
		}
		delete(r.scheduled, id)
		res.Cancelled++
	}

	// 2. Schedule new and changed entries.
	for _, e := range plan {
		if _, ok := r.scheduled[e.NotificationID]; ok {
			continue
		}

		scheduleID, err := r.scheduler.Schedule(ctx, e.Content, e.Instruction)
		if err != nil {
			r.logger.Error("failed to schedule notification",
				"notification_id", e.NotificationID,
				"instruction", e.Instruction.String(),
				"error", err,
			)
			res.Failed++
			continue
		}

		r.scheduled[e.NotificationID] = scheduled{
			scheduleID:  scheduleID,
			fingerprint: desired[e.NotificationID].sum,
			instruction: e.Instruction,
		}
		res.Scheduled++
	}

	r.logger.Debug("reconciliation completed",
		"eligible", len(plan),
		"scheduled", res.Scheduled,
		"cancelled", res.Cancelled,
		"unchanged", res.Unchanged,
		"failed", res.Failed,
	)

	return res
}

// CancelAll cancels every schedule this reconciler issued and forgets them.
// It returns how many were cancelled.
func (r *Reconciler) CancelAll(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, id := range r.sortedIDs() {
		s := r.scheduled[id]
		if err := r.scheduler.Cancel(ctx, s.scheduleID); err != nil {
			r.logger.Warn("failed to cancel scheduled notification",
				"notification_id", id,
				"schedule_id", s.scheduleID,
				"error", err,
			)
		}
		delete(r.scheduled, id)
		count++
	}
	return count
}

// Scheduled returns a copy of the notification id -> schedule id mapping.
func (r *Reconciler) Scheduled() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.scheduled))
	for id, s := range r.scheduled {
		out[id] = s.scheduleID
	}
	return out
}

// Instructions returns a copy of the notification id -> instruction mapping.
func (r *Reconciler) Instructions() map[string]trigger.Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]trigger.Instruction, len(r.scheduled))
	for id, s := range r.scheduled {
		out[id] = s.instruction
	}
	return out
}

// sortedIDs must be called with mu held.
func (r *Reconciler) sortedIDs() []string {
	ids := make([]string, 0, len(r.scheduled))
	for id := range r.scheduled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
