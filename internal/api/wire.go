package api

import (
	"errors"
	"fmt"
	"notigate/internal/types"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// wireEvent is the inbound JSON shape. Several producers send the unseparated alias keys; the
// canonical key wins when both are present.
type wireEvent struct {
	UserID       string         `json:"user_id" validate:"required"`
	EventType    string         `json:"event_type" validate:"required"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Source       string         `json:"source"`
	PriorityHint string         `json:"priority_hint"`
	Timestamp    *time.Time     `json:"timestamp" validate:"required"`
	Channel      string         `json:"channel" validate:"required"`
	Metadata     map[string]any `json:"metadata"`
	DedupeKey    string         `json:"dedupe_key"`
	ExpiresAt    *time.Time     `json:"expires_at"`

	UserIDAlias       string `json:"userid" validate:"-"`
	EventTypeAlias    string `json:"eventtype" validate:"-"`
	PriorityHintAlias string `json:"priorityhint" validate:"-"`
	DedupeKeyAlias    string `json:"dedupekey" validate:"-"`
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation. It matches types.ErrInvalidEvent.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid event: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == types.ErrInvalidEvent }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

var validationMessages = map[string]string{
	"required": "field is required",
}

// ParseEvent decodes and validates one wire event. Errors match types.ErrInvalidEvent.
func ParseEvent(body []byte) (types.NotificationEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return types.NotificationEvent{}, types.Err(types.ErrInvalidEvent, err, "")
	}
	w.UserID = firstNonEmpty(w.UserID, w.UserIDAlias)
	w.EventType = firstNonEmpty(w.EventType, w.EventTypeAlias)
	w.PriorityHint = firstNonEmpty(w.PriorityHint, w.PriorityHintAlias)
	w.DedupeKey = firstNonEmpty(w.DedupeKey, w.DedupeKeyAlias)

	if err := validate.Struct(w); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return types.NotificationEvent{}, types.Err(types.ErrInvalidEvent, err, "")
		}
		out := &ValidationError{}
		for _, fe := range ves {
			msg, ok := validationMessages[fe.Tag()]
			if !ok {
				msg = fmt.Sprintf("failed %s", fe.Tag())
			}
			out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msg})
		}
		return types.NotificationEvent{}, out
	}

	return types.NotificationEvent{
		UserID:       w.UserID,
		EventType:    w.EventType,
		Title:        w.Title,
		Message:      w.Message,
		Source:       w.Source,
		PriorityHint: w.PriorityHint,
		Timestamp:    *w.Timestamp,
		Channel:      w.Channel,
		Metadata:     w.Metadata,
		DedupeKey:    w.DedupeKey,
		ExpiresAt:    w.ExpiresAt,
	}, nil
}

// ParseRules decodes a whole RuleConfig. Absent fields take their defaults; validation happens
// in the store on replace.
func ParseRules(body []byte) (types.RuleConfig, error) {
	cfg := types.DefaultRuleConfig()
	if err := json.Unmarshal(body, &cfg); err != nil {
		return types.RuleConfig{}, types.Err(types.ErrInvalidRuleConfig, err, "")
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
