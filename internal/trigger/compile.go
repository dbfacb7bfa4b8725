package trigger

import (
	"regexp"
	"strconv"
	"time"
)

// clockPattern is the accepted "HH:MM" 24-hour format.
var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// Compile maps a trigger to the instruction that should be scheduled at now.
// The boolean is false when there is nothing to schedule: a scheduled trigger
// whose instant is absent or not in the future, an incomplete or malformed
// recurrence, or an unknown type. Compile never panics on bad input.
func Compile(t Trigger, now time.Time) (Instruction, bool) {
	switch t.Type {
	case TypeImmediate:
		return FireNow(), true
	case TypeScheduled:
		return compileScheduled(t.ScheduledAt, now)
	case TypeRecurring:
		return compileRecurring(t.Recurrence)
	default:
		return Instruction{}, false
	}
}

func compileScheduled(scheduledAt string, now time.Time) (Instruction, bool) {
	if scheduledAt == "" {
		return Instruction{}, false
	}

	at, err := time.Parse(time.RFC3339, scheduledAt)
	if err != nil {
		return Instruction{}, false
	}

	// Past instants are dropped silently.
	if !at.After(now) {
		return Instruction{}, false
	}

	return FireAt(at), true
}

func compileRecurring(r *Recurrence) (Instruction, bool) {
	if r == nil {
		return Instruction{}, false
	}

	hour, minute, ok := ParseClock(r.Time)
	if !ok {
		return Instruction{}, false
	}

	switch r.Interval {
	case IntervalDaily:
		return RepeatDaily(hour, minute), true

	case IntervalWeekly:
		// One instruction per notification: only the first weekday is used.
		if len(r.DaysOfWeek) == 0 {
			return Instruction{}, false
		}
		wd := r.DaysOfWeek[0]
		if wd < 0 || wd > 6 {
			return Instruction{}, false
		}
		return RepeatWeekly(time.Weekday(wd), hour, minute), true

	case IntervalMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return Instruction{}, false
		}
		return RepeatMonthly(r.DayOfMonth, hour, minute), true

	default:
		return Instruction{}, false
	}
}

// ParseClock parses an "HH:MM" 24-hour time of day.
func ParseClock(s string) (hour, minute int, ok bool) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	// The pattern guarantees two digits on each side.
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, true
}
