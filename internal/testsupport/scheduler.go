package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rafaeljc/herald/internal/content"
	"github.com/rafaeljc/herald/internal/trigger"
)

// ScheduleCall records one Schedule invocation on a FakeScheduler.
type ScheduleCall struct {
	ID          string
	Content     content.Content
	Instruction trigger.Instruction
}

// FakeScheduler is an in-memory device scheduler that records every call.
// It is safe for concurrent use.
type FakeScheduler struct {
	mu sync.Mutex

	// Granted is the answer to RequestPermission.
	Granted bool
	// PermissionErr, when set, is returned by RequestPermission.
	PermissionErr error
	// FailSchedule, when set, is consulted before each Schedule call.
	FailSchedule func(c content.Content) error
	// FailCancel, when set, is consulted before each Cancel call.
	FailCancel func(scheduleID string) error

	nextID      int
	active      map[string]ScheduleCall
	schedules   []ScheduleCall
	cancels     []string
	channels    []content.Channel
	permissions int
}

// NewFakeScheduler returns a scheduler that grants permission.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{Granted: true, active: make(map[string]ScheduleCall)}
}

func (f *FakeScheduler) RequestPermission(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.permissions++
	if f.PermissionErr != nil {
		return false, f.PermissionErr
	}
	return f.Granted, nil
}

func (f *FakeScheduler) ConfigureChannel(_ context.Context, ch content.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.channels = append(f.channels, ch)
	return nil
}

func (f *FakeScheduler) Schedule(_ context.Context, c content.Content, in trigger.Instruction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailSchedule != nil {
		if err := f.FailSchedule(c); err != nil {
			return "", err
		}
	}

	f.nextID++
	call := ScheduleCall{ID: fmt.Sprintf("sched-%03d", f.nextID), Content: c, Instruction: in}
	f.schedules = append(f.schedules, call)
	f.active[call.ID] = call
	return call.ID, nil
}

func (f *FakeScheduler) Cancel(_ context.Context, scheduleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCancel != nil {
		if err := f.FailCancel(scheduleID); err != nil {
			return err
		}
	}

	f.cancels = append(f.cancels, scheduleID)
	delete(f.active, scheduleID)
	return nil
}

// Active returns the schedules that were issued and not cancelled, ordered by id.
func (f *FakeScheduler) Active() []ScheduleCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]ScheduleCall, 0, len(f.active))
	for _, c := range f.active {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Schedules returns every Schedule call in order, including cancelled ones.
func (f *FakeScheduler) Schedules() []ScheduleCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]ScheduleCall(nil), f.schedules...)
}

// Cancels returns the schedule ids passed to Cancel, in order.
func (f *FakeScheduler) Cancels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.cancels...)
}

// Channels returns the configured channels.
func (f *FakeScheduler) Channels() []content.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]content.Channel(nil), f.channels...)
}

// PermissionRequests returns how many times permission was requested.
func (f *FakeScheduler) PermissionRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.permissions
}
