// Package model defines the entities exchanged between the Herald backend and the SDK.
// The JSON shapes are the HTTP contract: there is no additional envelope.
package model

import (
	"time"

	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/trigger"
)

// Priority is the delivery priority hint handed to the device scheduler.
type Priority string

const (
	PriorityLow     Priority = "low"
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityDefault, PriorityHigh:
		return true
	}
	return false
}

// LocalizedText overrides the default title and body for one locale.
// An empty field falls back to the notification's default text.
type LocalizedText struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// Notification is an admin-defined notification.
type Notification struct {
	ID    string `json:"id"`
	AppID string `json:"appId"`

	// Name is an internal label, never shown to end users.
	Name string `json:"name"`

	// Title and Body are the default-locale texts. Both may contain {{token}} placeholders.
	Title   string                   `json:"title"`
	Body    string                   `json:"body"`
	Locales map[string]LocalizedText `json:"locales,omitempty"`

	// Data is an opaque payload passed through to the device untouched.
	Data map[string]any `json:"data,omitempty"`

	Trigger    trigger.Trigger   `json:"trigger"`
	Conditions []rules.Condition `json:"conditions,omitempty"`
	SegmentID  string            `json:"segmentId,omitempty"`

	Enabled  bool     `json:"enabled"`
	Priority Priority `json:"priority"`
	Badge    *int     `json:"badge,omitempty"`
	Sound    string   `json:"sound,omitempty"`

	// Version is bumped on every mutation. It drives delta sync.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Segment is a named, reusable rule set.
type Segment struct {
	ID          string            `json:"id"`
	AppID       string            `json:"appId"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Rules       []rules.Condition `json:"rules"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Info returns the projection of the segment carried by sync responses.
func (s Segment) Info() SegmentInfo {
	return SegmentInfo{ID: s.ID, Name: s.Name, Rules: s.Rules}
}

// SegmentInfo is the subset of a segment the SDK needs to evaluate membership.
type SegmentInfo struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Rules []rules.Condition `json:"rules"`
}

// SyncResponse is returned by both the full and the delta sync endpoints.
type SyncResponse struct {
	Notifications []Notification `json:"notifications"`
	Segments      []SegmentInfo  `json:"segments"`
	ServerTime    time.Time      `json:"serverTime"`

	// Version is the highest notification version in the response,
	// or the caller's watermark when nothing changed.
	Version int64 `json:"version"`
}

// App is a tenant. APIKey authenticates the SDK-facing routes.
type App struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User is an end user of an app, identified by the caller-supplied ExternalID.
type User struct {
	ID         string           `json:"id"`
	AppID      string           `json:"appId"`
	ExternalID string           `json:"externalId"`
	Properties rules.Properties `json:"properties"`
	FirstSeen  time.Time        `json:"firstSeen"`
	LastSeen   time.Time        `json:"lastSeen"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Session is one foreground period of the app for a user.
type Session struct {
	ID        string     `json:"id"`
	AppID     string     `json:"appId"`
	UserID    string     `json:"userId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	// Duration is in seconds, set when the session ends.
	Duration *int `json:"duration,omitempty"`

	// Date is the UTC calendar day of StartedAt (YYYY-MM-DD), the DAU grouping key.
	Date string `json:"date"`
}

// SessionDate formats the DAU grouping key for t.
func SessionDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// UserContext is what the SDK knows about the current user.
// It is held in memory only; property changes are pushed upstream.
type UserContext struct {
	UserID     string           `json:"userId,omitempty"`
	Locale     string           `json:"locale,omitempty"`
	Timezone   string           `json:"timezone,omitempty"`
	Properties rules.Properties `json:"properties,omitempty"`
}

// Merge returns a copy of c overlaid with the non-empty fields of other.
// Properties are replaced as a whole when other carries any, like a shallow object spread.
func (c UserContext) Merge(other UserContext) UserContext {
	merged := c.Clone()
	if other.UserID != "" {
		merged.UserID = other.UserID
	}
	if other.Locale != "" {
		merged.Locale = other.Locale
	}
	if other.Timezone != "" {
		merged.Timezone = other.Timezone
	}
	if other.Properties != nil {
		merged.Properties = cloneProperties(other.Properties)
	}
	return merged
}

// Clone returns a copy of c that shares no maps with it.
func (c UserContext) Clone() UserContext {
	c.Properties = cloneProperties(c.Properties)
	return c
}

func cloneProperties(p rules.Properties) rules.Properties {
	if p == nil {
		return nil
	}
	out := make(rules.Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ActiveUsers counts distinct users with a session in a trailing window.
type ActiveUsers struct {
	Daily   int64 `json:"daily"`
	Weekly  int64 `json:"weekly"`
	Monthly int64 `json:"monthly"`
}

// DAUPoint is the number of distinct active users on one UTC day.
type DAUPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// AnalyticsOverview summarizes an app's audience.
type AnalyticsOverview struct {
	TotalUsers  int64       `json:"totalUsers"`
	ActiveUsers ActiveUsers `json:"activeUsers"`
	DAUHistory  []DAUPoint  `json:"dauHistory"`
}
