package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rafaeljc/herald/internal/observability"
	"github.com/rafaeljc/herald/sdk"
)

var errUnschedulable = errors.New("instruction has no future occurrence")

// Deliverer presents a fired notification.
type Deliverer func(scheduleID string, c sdk.Content)

// timerScheduler is a headless device scheduler: each schedule is a timer
// that delivers the content and re-arms itself for repeating instructions.
type timerScheduler struct {
	logger  *slog.Logger
	deliver Deliverer
	now     func() time.Time

	mu     sync.Mutex
	nextID int
	timers map[string]*time.Timer
	closed bool
}

func newTimerScheduler(logger *slog.Logger, deliver Deliverer, now func() time.Time) *timerScheduler {
	if deliver == nil {
		panic("agent: deliverer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &timerScheduler{
		logger:  logger,
		deliver: deliver,
		now:     now,
		timers:  make(map[string]*time.Timer),
	}
}

// RequestPermission always grants: there is no user to ask.
func (s *timerScheduler) RequestPermission(context.Context) (bool, error) {
	return true, nil
}

func (s *timerScheduler) ConfigureChannel(_ context.Context, ch sdk.Channel) error {
	s.logger.Info("notification channel configured",
		slog.String("channel_id", ch.ID),
		slog.String("importance", string(ch.Importance)),
	)
	return nil
}

func (s *timerScheduler) Schedule(_ context.Context, c sdk.Content, in sdk.Instruction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", errors.New("agent: scheduler closed")
	}

	at, ok := in.Next(s.now())
	if !ok {
		return "", errUnschedulable
	}

	s.nextID++
	id := "timer-" + strconv.Itoa(s.nextID)
	s.arm(id, c, in, at)

	s.logger.Debug("notification scheduled",
		slog.String("schedule_id", id),
		slog.String("instruction", in.String()),
		slog.Time("at", at),
	)
	return id, nil
}

// arm starts the timer for the occurrence at. The caller holds mu.
func (s *timerScheduler) arm(id string, c sdk.Content, in sdk.Instruction, at time.Time) {
	s.timers[id] = time.AfterFunc(max(at.Sub(s.now()), 0), func() {
		s.fire(id, c, in, at)
	})
}

func (s *timerScheduler) fire(id string, c sdk.Content, in sdk.Instruction, at time.Time) {
	s.mu.Lock()
	if _, live := s.timers[id]; !live || s.closed {
		s.mu.Unlock()
		return
	}
	if next, ok := in.Next(at); ok && in.Repeats() {
		s.arm(id, c, in, next)
	} else {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	observability.AgentDeliveries.WithLabelValues(in.Kind.String()).Inc()
	s.deliver(id, c)
}

func (s *timerScheduler) Cancel(_ context.Context, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[scheduleID]; ok {
		t.Stop()
		delete(s.timers, scheduleID)
	}
	return nil
}

// Pending returns the number of armed timers.
func (s *timerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close stops every timer. Later Schedule calls fail.
func (s *timerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
