package flow

import (
	"context"
	"notigate/internal/types"
)

const HintPrefix = "ai_hint:"

// HintRule yields Hint when the When expression is true for the event document. With Field set,
// the selected value is appended as "<hint>:<value>". Negate inverts When.
type HintRule struct {
	When   string `json:"when" yaml:"when"`
	Negate bool   `json:"negate,omitempty" yaml:"negate,omitempty"`
	Hint   string `json:"hint" yaml:"hint"`
	Field  string `json:"field,omitempty" yaml:"field,omitempty"`
}

// ExprAdvisor is a rule-driven Advisor. The first matching rule wins; with no rules it returns
// "ai_hint:<event_type>".
type ExprAdvisor struct {
	rules []HintRule
}

func NewExprAdvisor(rules []HintRule) *ExprAdvisor {
	return &ExprAdvisor{rules: rules}
}

func (a *ExprAdvisor) Suggest(ctx context.Context, event types.NotificationEvent) (string, error) {
	if len(a.rules) == 0 {
		return HintPrefix + event.EventType, nil
	}
	doc, err := EventDocument(event)
	if err != nil {
		return "", err
	}
	for _, r := range a.rules {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.When == "" {
			continue
		}
		matched, err := EvalBool(r.When, doc)
		if err != nil {
			return "", err
		}
		if r.Negate {
			matched = !matched
		}
		if !matched {
			continue
		}
		hint := HintPrefix + r.Hint
		if r.Field != "" {
			v, err := EvalString(r.Field, doc)
			if err != nil {
				return "", err
			}
			if v != nil {
				hint += ":" + *v
			}
		}
		return hint, nil
	}
	return "", nil
}
