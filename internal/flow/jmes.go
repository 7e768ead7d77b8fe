package flow

import (
	"fmt"
	"notigate/internal/types"

	json "github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// EventDocument renders an event as the generic JSON document expressions are evaluated against.
// Keys are the canonical wire names (user_id, event_type, metadata, ...).
// A nil metadata map renders as an empty object so key functions stay well-typed.
func EventDocument(event types.NotificationEvent) (map[string]any, error) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	b, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// EvalAny returns the raw value selected by the JMESPath expression, nil when nothing matches.
func EvalAny(expression string, doc map[string]any) (any, error) {
	v, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}

// EvalBool is true only when the expression yields boolean true.
func EvalBool(expression string, doc map[string]any) (bool, error) {
	v, err := EvalAny(expression, doc)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

// EvalString coerces the selection to string; non-strings are JSON encoded. Returns nil when the
// expression selects nothing.
func EvalString(expression string, doc map[string]any) (*string, error) {
	v, err := EvalAny(expression, doc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return &t, nil
	default:
		b, _ := json.Marshal(t)
		bs := string(b)
		return &bs, nil
	}
}
