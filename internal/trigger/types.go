// Package trigger compiles declarative notification triggers into concrete
// schedule instructions the device scheduler understands.
package trigger

import (
	"fmt"
	"time"
)

// Type discriminates the trigger variants.
type Type string

const (
	TypeImmediate Type = "immediate"
	TypeScheduled Type = "scheduled"
	TypeRecurring Type = "recurring"
)

// Interval is the period of a recurring trigger.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Trigger is the declarative schedule of a notification, as stored and synced.
type Trigger struct {
	Type Type `json:"type"`

	// ScheduledAt is an RFC 3339 instant, only meaningful for scheduled triggers.
	// It is kept as the wire string so a malformed value degrades to "no schedule"
	// instead of failing the decoding of the whole sync payload.
	ScheduledAt string `json:"scheduledAt,omitempty"`

	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// Recurrence describes a repeating trigger.
type Recurrence struct {
	Interval Interval `json:"interval"`

	// Time is the local time of day, "HH:MM" 24-hour.
	Time string `json:"time"`

	// DaysOfWeek holds weekday indices, 0 = Sunday. Only the first entry is honored.
	DaysOfWeek []int `json:"daysOfWeek,omitempty"`

	// DayOfMonth is 1-31. Zero means absent.
	DayOfMonth int `json:"dayOfMonth,omitempty"`
}

// Kind identifies the shape of an Instruction.
type Kind int

const (
	KindFireNow Kind = iota + 1
	KindFireAt
	KindDaily
	KindWeekly
	KindMonthly
)

func (k Kind) String() string {
	switch k {
	case KindFireNow:
		return "fire-now"
	case KindFireAt:
		return "fire-at"
	case KindDaily:
		return "repeat-daily"
	case KindWeekly:
		return "repeat-weekly"
	case KindMonthly:
		return "repeat-monthly"
	default:
		return "unknown"
	}
}

// Instruction is a concrete schedule request.
// Only the fields relevant to Kind are set.
type Instruction struct {
	Kind    Kind
	At      time.Time    // KindFireAt
	Weekday time.Weekday // KindWeekly
	Day     int          // KindMonthly
	Hour    int          // repeating kinds
	Minute  int          // repeating kinds
}

// FireNow returns an instruction that fires once, immediately.
func FireNow() Instruction {
	return Instruction{Kind: KindFireNow}
}

// FireAt returns an instruction that fires once at t.
func FireAt(t time.Time) Instruction {
	return Instruction{Kind: KindFireAt, At: t}
}

// RepeatDaily fires every day at hour:minute.
func RepeatDaily(hour, minute int) Instruction {
	return Instruction{Kind: KindDaily, Hour: hour, Minute: minute}
}

// RepeatWeekly fires every week on weekday at hour:minute.
func RepeatWeekly(weekday time.Weekday, hour, minute int) Instruction {
	return Instruction{Kind: KindWeekly, Weekday: weekday, Hour: hour, Minute: minute}
}

// RepeatMonthly fires every month on day at hour:minute.
func RepeatMonthly(day, hour, minute int) Instruction {
	return Instruction{Kind: KindMonthly, Day: day, Hour: hour, Minute: minute}
}

// Repeats reports whether the instruction has more than one occurrence.
func (i Instruction) Repeats() bool {
	return i.Kind == KindDaily || i.Kind == KindWeekly || i.Kind == KindMonthly
}

// Equal reports whether two instructions describe the same schedule.
func (i Instruction) Equal(o Instruction) bool {
	return i.Kind == o.Kind &&
		i.At.Equal(o.At) &&
		i.Weekday == o.Weekday &&
		i.Day == o.Day &&
		i.Hour == o.Hour &&
		i.Minute == o.Minute
}

// String renders a stable, human-readable form. It doubles as the identity of
// the schedule when fingerprinting.
func (i Instruction) String() string {
	switch i.Kind {
	case KindFireNow:
		return i.Kind.String()
	case KindFireAt:
		return fmt.Sprintf("%s %s", i.Kind, i.At.UTC().Format(time.RFC3339Nano))
	case KindDaily:
		return fmt.Sprintf("%s %02d:%02d", i.Kind, i.Hour, i.Minute)
	case KindWeekly:
		return fmt.Sprintf("%s %s %02d:%02d", i.Kind, i.Weekday, i.Hour, i.Minute)
	case KindMonthly:
		return fmt.Sprintf("%s day=%d %02d:%02d", i.Kind, i.Day, i.Hour, i.Minute)
	default:
		return i.Kind.String()
	}
}
