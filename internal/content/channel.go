package content

import "github.com/rafaeljc/herald/internal/model"

// Channel is the device notification channel the SDK configures on initialization.
// Platforms without channels ignore it.
type Channel struct {
	ID         string
	Name       string
	Importance model.Priority
}

// DefaultChannel is configured when the host app does not provide one.
var DefaultChannel = Channel{ID: "default", Name: "Default", Importance: model.PriorityHigh}
