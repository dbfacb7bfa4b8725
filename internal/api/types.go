package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rafaeljc/herald/internal/model"
	"github.com/rafaeljc/herald/internal/rules"
	"github.com/rafaeljc/herald/internal/store"
	"github.com/rafaeljc/herald/internal/trigger"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and, when v implements checker, its
// domain checks.
func validateStruct(v any) []ErrorDetail {
	var details []ErrorDetail

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []ErrorDetail{{Field: "", Issue: err.Error()}}
		}
		for _, fe := range verrs {
			details = append(details, ErrorDetail{Field: fe.Field(), Issue: issueFor(fe)})
		}
	}

	if c, ok := v.(checker); ok {
		details = append(details, c.check()...)
	}
	return details
}

func issueFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// checker is implemented by requests with rules beyond struct tags.
type checker interface {
	check() []ErrorDetail
}

// -----------------------------------------------------------------------------
// Apps
// -----------------------------------------------------------------------------

type CreateAppRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type UpdateAppRequest struct {
	Name *string `json:"name" validate:"omitnil,min=1,max=255"`
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

// CreateNotificationRequest is the body of POST /api/notifications.
// Enabled defaults to true when omitted.
type CreateNotificationRequest struct {
	AppID      string                         `json:"appId" validate:"required"`
	Name       string                         `json:"name" validate:"required,max=255"`
	Title      string                         `json:"title" validate:"required"`
	Body       string                         `json:"body" validate:"required"`
	Locales    map[string]model.LocalizedText `json:"locales,omitempty"`
	Data       map[string]any                 `json:"data,omitempty"`
	Trigger    trigger.Trigger                `json:"trigger"`
	Conditions []rules.Condition              `json:"conditions,omitempty"`
	SegmentID  string                         `json:"segmentId,omitempty"`
	Enabled    *bool                          `json:"enabled,omitempty"`
	Priority   model.Priority                 `json:"priority,omitempty"`
	Badge      *int                           `json:"badge,omitempty" validate:"omitnil,min=0"`
	Sound      string                         `json:"sound,omitempty"`
}

func (req *CreateNotificationRequest) check() []ErrorDetail {
	var details []ErrorDetail
	if err := trigger.Validate(req.Trigger); err != nil {
		details = append(details, ErrorDetail{Field: "trigger", Issue: err.Error()})
	}
	if err := rules.Validate(req.Conditions); err != nil {
		details = append(details, ErrorDetail{Field: "conditions", Issue: err.Error()})
	}
	if req.Priority != "" && !req.Priority.Valid() {
		details = append(details, ErrorDetail{Field: "priority", Issue: "must be one of: low default high"})
	}
	return details
}

func (req *CreateNotificationRequest) toModel() model.Notification {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return model.Notification{
		AppID:      req.AppID,
		Name:       strings.TrimSpace(req.Name),
		Title:      req.Title,
		Body:       req.Body,
		Locales:    req.Locales,
		Data:       req.Data,
		Trigger:    req.Trigger,
		Conditions: req.Conditions,
		SegmentID:  req.SegmentID,
		Enabled:    enabled,
		Priority:   req.Priority,
		Badge:      req.Badge,
		Sound:      req.Sound,
	}
}

// UpdateNotificationRequest is a partial update. Absent fields are kept.
type UpdateNotificationRequest struct {
	Name       *string                         `json:"name,omitempty" validate:"omitnil,min=1,max=255"`
	Title      *string                         `json:"title,omitempty" validate:"omitnil,min=1"`
	Body       *string                         `json:"body,omitempty" validate:"omitnil,min=1"`
	Locales    *map[string]model.LocalizedText `json:"locales,omitempty"`
	Data       *map[string]any                 `json:"data,omitempty"`
	Trigger    *trigger.Trigger                `json:"trigger,omitempty"`
	Conditions *[]rules.Condition              `json:"conditions,omitempty"`
	SegmentID  *string                         `json:"segmentId,omitempty"`
	Enabled    *bool                           `json:"enabled,omitempty"`
	Priority   *model.Priority                 `json:"priority,omitempty"`
	Badge      *int                            `json:"badge,omitempty" validate:"omitnil,min=0"`
	Sound      *string                         `json:"sound,omitempty"`
}

func (req *UpdateNotificationRequest) check() []ErrorDetail {
	var details []ErrorDetail
	if req.Trigger != nil {
		if err := trigger.Validate(*req.Trigger); err != nil {
			details = append(details, ErrorDetail{Field: "trigger", Issue: err.Error()})
		}
	}
	if req.Conditions != nil {
		if err := rules.Validate(*req.Conditions); err != nil {
			details = append(details, ErrorDetail{Field: "conditions", Issue: err.Error()})
		}
	}
	if req.Priority != nil && !req.Priority.Valid() {
		details = append(details, ErrorDetail{Field: "priority", Issue: "must be one of: low default high"})
	}
	return details
}

func (req *UpdateNotificationRequest) toPatch() store.NotificationPatch {
	return store.NotificationPatch{
		Name:       req.Name,
		Title:      req.Title,
		Body:       req.Body,
		Locales:    req.Locales,
		Data:       req.Data,
		Trigger:    req.Trigger,
		Conditions: req.Conditions,
		SegmentID:  req.SegmentID,
		Enabled:    req.Enabled,
		Priority:   req.Priority,
		Badge:      req.Badge,
		Sound:      req.Sound,
	}
}

// -----------------------------------------------------------------------------
// Segments
// -----------------------------------------------------------------------------

type CreateSegmentRequest struct {
	AppID       string            `json:"appId" validate:"required"`
	Name        string            `json:"name" validate:"required,max=255"`
	Description string            `json:"description,omitempty"`
	Rules       []rules.Condition `json:"rules"`
}

func (req *CreateSegmentRequest) check() []ErrorDetail {
	if err := rules.Validate(req.Rules); err != nil {
		return []ErrorDetail{{Field: "rules", Issue: err.Error()}}
	}
	return nil
}

type UpdateSegmentRequest struct {
	Name        *string            `json:"name,omitempty" validate:"omitnil,min=1,max=255"`
	Description *string            `json:"description,omitempty"`
	Rules       *[]rules.Condition `json:"rules,omitempty"`
}

func (req *UpdateSegmentRequest) toPatch() store.SegmentPatch {
	return store.SegmentPatch{Name: req.Name, Description: req.Description, Rules: req.Rules}
}

func (req *UpdateSegmentRequest) check() []ErrorDetail {
	if req.Rules == nil {
		return nil
	}
	if err := rules.Validate(*req.Rules); err != nil {
		return []ErrorDetail{{Field: "rules", Issue: err.Error()}}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Users and sessions
// -----------------------------------------------------------------------------

type UpsertUserRequest struct {
	ExternalID string           `json:"externalId" validate:"required,max=255"`
	Properties rules.Properties `json:"properties"`
}

func (req *UpsertUserRequest) check() []ErrorDetail {
	var details []ErrorDetail
	for k, v := range req.Properties {
		switch v.(type) {
		case string, float64, bool:
		default:
			details = append(details, ErrorDetail{
				Field: "properties." + k,
				Issue: fmt.Sprintf("must be a string, number or boolean, got %T", v),
			})
		}
	}
	return details
}

// Session event types.
const (
	SessionStart = "start"
	SessionEnd   = "end"
)

// SessionEventRequest is the body of POST /api/analytics/{appId}/session.
type SessionEventRequest struct {
	UserID    string     `json:"userId" validate:"required"`
	Type      string     `json:"type" validate:"required,oneof=start end"`
	SessionID string     `json:"sessionId,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (req *SessionEventRequest) check() []ErrorDetail {
	if req.Type == SessionEnd && req.SessionID == "" {
		return []ErrorDetail{{Field: "sessionId", Issue: "is required to end a session"}}
	}
	return nil
}

type SessionStartResponse struct {
	SessionID string `json:"sessionId"`
}

// UserPage is a paginated list of users.
type UserPage struct {
	Users  []model.User `json:"users"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type DAUResponse struct {
	History []model.DAUPoint `json:"history"`
}
