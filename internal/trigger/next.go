package trigger

import "time"

// Next returns the first occurrence of the instruction strictly after after,
// computed in after's location. The boolean is false when no such occurrence
// exists (a one-shot instant already passed).
func (i Instruction) Next(after time.Time) (time.Time, bool) {
	loc := after.Location()
	y, m, d := after.Date()

	switch i.Kind {
	case KindFireNow:
		return after, true

	case KindFireAt:
		if i.At.After(after) {
			return i.At, true
		}
		return time.Time{}, false

	case KindDaily:
		next := time.Date(y, m, d, i.Hour, i.Minute, 0, 0, loc)
		if !next.After(after) {
			next = time.Date(y, m, d+1, i.Hour, i.Minute, 0, 0, loc)
		}
		return next, true

	case KindWeekly:
		days := (int(i.Weekday) - int(after.Weekday()) + 7) % 7
		next := time.Date(y, m, d+days, i.Hour, i.Minute, 0, 0, loc)
		if !next.After(after) {
			next = time.Date(y, m, d+days+7, i.Hour, i.Minute, 0, 0, loc)
		}
		return next, true

	case KindMonthly:
		// Months without the requested day are skipped. Every day 1-31 occurs
		// at least once in any 12 consecutive months.
		for offset := 0; offset <= 12; offset++ {
			first := time.Date(y, m+time.Month(offset), 1, 0, 0, 0, 0, loc)
			if i.Day > daysIn(first) {
				continue
			}
			next := time.Date(first.Year(), first.Month(), i.Day, i.Hour, i.Minute, 0, 0, loc)
			if next.After(after) {
				return next, true
			}
		}
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}

// daysIn returns the number of days in the month of t.
func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
