package trigger

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTrigger is wrapped by every validation failure.
var ErrInvalidTrigger = errors.New("invalid trigger")

// Validate checks a trigger before it is persisted.
// The client compiler tolerates anything Validate rejects, but well-formed
// input is only guaranteed for triggers that went through here.
func Validate(t Trigger) error {
	switch t.Type {
	case TypeImmediate, TypeScheduled, TypeRecurring:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTrigger, t.Type)
	}

	if t.ScheduledAt != "" {
		if _, err := time.Parse(time.RFC3339, t.ScheduledAt); err != nil {
			return fmt.Errorf("%w: scheduledAt must be an RFC 3339 timestamp", ErrInvalidTrigger)
		}
	}

	if t.Type == TypeRecurring && t.Recurrence == nil {
		return fmt.Errorf("%w: recurrence is required for recurring triggers", ErrInvalidTrigger)
	}

	if t.Recurrence != nil {
		if err := validateRecurrence(*t.Recurrence); err != nil {
			return err
		}
	}

	return nil
}

func validateRecurrence(r Recurrence) error {
	switch r.Interval {
	case IntervalDaily, IntervalWeekly, IntervalMonthly:
	default:
		return fmt.Errorf("%w: unknown interval %q", ErrInvalidTrigger, r.Interval)
	}

	if !clockPattern.MatchString(r.Time) {
		return fmt.Errorf("%w: time must be HH:MM (24-hour), got %q", ErrInvalidTrigger, r.Time)
	}

	for _, wd := range r.DaysOfWeek {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: daysOfWeek entries must be between 0 and 6, got %d", ErrInvalidTrigger, wd)
		}
	}

	// Zero is indistinguishable from absent after decoding.
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return fmt.Errorf("%w: dayOfMonth must be between 1 and 31, got %d", ErrInvalidTrigger, r.DayOfMonth)
	}

	return nil
}
