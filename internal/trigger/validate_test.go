package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		trigger  Trigger
		errorMsg string
	}{
		{
			name:    "immediate",
			trigger: Trigger{Type: TypeImmediate},
		},
		{
			name:    "scheduled",
			trigger: Trigger{Type: TypeScheduled, ScheduledAt: "2030-01-01T00:00:00Z"},
		},
		{
			name: "weekly on several days",
			trigger: Trigger{Type: TypeRecurring, Recurrence: &Recurrence{
				Interval: IntervalWeekly, Time: "08:15", DaysOfWeek: []int{0, 6},
			}},
		},
		{
			name:     "unknown type",
			trigger:  Trigger{Type: "hourly"},
			errorMsg: `unknown type "hourly"`,
		},
		{
			name:     "malformed scheduledAt",
			trigger:  Trigger{Type: TypeScheduled, ScheduledAt: "2030-01-01 00:00"},
			errorMsg: "RFC 3339",
		},
		{
			name:     "recurring without recurrence",
			trigger:  Trigger{Type: TypeRecurring},
			errorMsg: "recurrence is required",
		},
		{
			name: "bad time",
			trigger: Trigger{Type: TypeRecurring, Recurrence: &Recurrence{
				Interval: IntervalDaily, Time: "25:00",
			}},
			errorMsg: "HH:MM",
		},
		{
			name: "bad weekday",
			trigger: Trigger{Type: TypeRecurring, Recurrence: &Recurrence{
				Interval: IntervalWeekly, Time: "08:00", DaysOfWeek: []int{1, 9},
			}},
			errorMsg: "between 0 and 6",
		},
		{
			name: "bad day of month",
			trigger: Trigger{Type: TypeRecurring, Recurrence: &Recurrence{
				Interval: IntervalMonthly, Time: "08:00", DayOfMonth: 32,
			}},
			errorMsg: "between 1 and 31",
		},
		{
			name: "unknown interval",
			trigger: Trigger{Type: TypeRecurring, Recurrence: &Recurrence{
				Interval: "hourly", Time: "08:00",
			}},
			errorMsg: "unknown interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tt.trigger)

			if tt.errorMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTrigger)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
