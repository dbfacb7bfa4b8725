package sdk

import (
	"context"

	"github.com/rafaeljc/herald/internal/content"
	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/session"
	"github.com/rafaeljc/herald/internal/trigger"
)

// Data model re-exported for host applications.
type (
	Notification  = model.Notification
	LocalizedText = model.LocalizedText
	SegmentInfo   = model.SegmentInfo
	SyncResponse  = model.SyncResponse
	UserContext   = model.UserContext
	Priority      = model.Priority
	Properties    = rules.Properties
	Condition     = rules.Condition
	Trigger       = trigger.Trigger
	Recurrence    = trigger.Recurrence
	Instruction   = trigger.Instruction
	Content       = content.Content
	Channel       = content.Channel
)

// AppStateSource delivers app foreground/background transitions.
type AppStateSource = session.AppStateSource

// NotificationScheduler is the device capability the SDK drives.
// Production implementations bind to the OS notification center.
type NotificationScheduler interface {
	// RequestPermission asks the user for permission to show notifications.
	RequestPermission(ctx context.Context) (granted bool, err error)

	// ConfigureChannel sets up the channel notifications are posted to.
	ConfigureChannel(ctx context.Context, ch Channel) error

	// Schedule registers c to fire according to in and returns the device schedule id.
	// A fire-now instruction presents the notification immediately.
	Schedule(ctx context.Context, c Content, in Instruction) (string, error)

	// Cancel removes a scheduled notification.
	Cancel(ctx context.Context, scheduleID string) error
}
