// Package reconciler decides which notifications are eligible for the current
// user and keeps the device's scheduled set in line with that decision.
package reconciler

import (
	"encoding/json"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/herald/internal/content"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/trigger"
)

// Entry is one notification that should be scheduled on the device.
type Entry struct {
	NotificationID string
	Content        content.Content
	Instruction    trigger.Instruction
}

// Fingerprint identifies what the device would show and when.
// Two entries with the same fingerprint need no rescheduling. It reports false
// when the payload cannot be encoded; such an entry never compares equal.
func (e Entry) Fingerprint() (uint64, bool) {
	h := murmur3.New64()

	// Maps are encoded with sorted keys, so the encoding is stable.
	payload, err := json.Marshal(e.Content)
	if err != nil {
		return 0, false
	}

	_, _ = h.Write([]byte(e.NotificationID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(e.Instruction.String()))
	return h.Sum64(), true
}

// IndexSegments builds the id lookup used by Eligible.
func IndexSegments(segments []model.SegmentInfo) map[string]model.SegmentInfo {
	index := make(map[string]model.SegmentInfo, len(segments))
	for _, s := range segments {
		index[s.ID] = s
	}
	return index
}

// Eligible reports whether n currently applies to a user with props.
// Both gates use the same evaluator: the segment's rules first, then the
// notification's own conditions. A segment id that is not in segments makes
// the notification ineligible.
func Eligible(n model.Notification, segments map[string]model.SegmentInfo, props rules.Properties) bool {
	if !n.Enabled {
		return false
	}

	if n.SegmentID != "" {
		segment, ok := segments[n.SegmentID]
		if !ok {
			return false
		}
		if !rules.Evaluate(segment.Rules, props) {
			return false
		}
	}

	return rules.Evaluate(n.Conditions, props)
}

// Plan computes the entries to schedule for uc at now, in catalog order.
// Immediate triggers are skipped: they have no standing future occurrence and
// only fire through the explicit trigger path. Triggers that compile to nothing
// are skipped silently.
func Plan(notifications []model.Notification, segments []model.SegmentInfo, uc model.UserContext, now time.Time) []Entry {
	index := IndexSegments(segments)
	entries := make([]Entry, 0, len(notifications))

	for _, n := range notifications {
		if !Eligible(n, index, uc.Properties) {
			continue
		}

		instr, ok := trigger.Compile(n.Trigger, now)
		if !ok || instr.Kind == trigger.KindFireNow {
			continue
		}

		entries = append(entries, Entry{
			NotificationID: n.ID,
			Content:        content.Render(n, uc),
			Instruction:    instr,
		})
	}

	return entries
}
