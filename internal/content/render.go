package content

import "github.com/rafaeljc/herald/internal/model"

// DefaultSound is used when a notification does not name one.
const DefaultSound = "default"

// Content is the payload handed to the device scheduler.
type Content struct {
	Title    string
	Body     string
	Data     map[string]any
	Sound    string
	Badge    *int
	Priority model.Priority
}

// Render localizes and interpolates the notification for uc.
// Data, badge and priority pass through unchanged.
func Render(n model.Notification, uc model.UserContext) Content {
	title, body := Localize(n, uc.Locale)

	sound := n.Sound
	if sound == "" {
		sound = DefaultSound
	}

	priority := n.Priority
	if priority == "" {
		priority = model.PriorityDefault
	}

	return Content{
		Title:    Interpolate(title, uc),
		Body:     Interpolate(body, uc),
		Data:     n.Data,
		Sound:    sound,
		Badge:    n.Badge,
		Priority: priority,
	}
}
