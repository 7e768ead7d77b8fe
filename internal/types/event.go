package types

import "time"

// Decision is the outcome for one event.
type Decision string

const (
	Now   Decision = "Now"   // deliver immediately
	Later Decision = "Later" // defer to a digest
	Never Decision = "Never" // suppress permanently
)

// NotificationEvent is an inbound notification addressed to a user. Treated as immutable once built.
// Empty optional strings mean absent; a nil ExpiresAt means the event never expires.
type NotificationEvent struct {
	UserID       string         `json:"user_id" dynamodbav:"user_id"`
	EventType    string         `json:"event_type" dynamodbav:"event_type"`
	Title        string         `json:"title,omitempty" dynamodbav:"title,omitempty"`
	Message      string         `json:"message,omitempty" dynamodbav:"message,omitempty"`
	Source       string         `json:"source,omitempty" dynamodbav:"source,omitempty"`
	PriorityHint string         `json:"priority_hint,omitempty" dynamodbav:"priority_hint,omitempty"`
	Timestamp    time.Time      `json:"timestamp" dynamodbav:"timestamp"`
	Channel      string         `json:"channel" dynamodbav:"channel"`
	Metadata     map[string]any `json:"metadata" dynamodbav:"metadata"`
	DedupeKey    string         `json:"dedupe_key,omitempty" dynamodbav:"dedupe_key,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty" dynamodbav:"expires_at,omitempty"`
}

// DecisionResponse is the single result of running the pipeline on an event.
type DecisionResponse struct {
	Decision      Decision   `json:"decision" dynamodbav:"decision"`
	Reason        string     `json:"reason" dynamodbav:"reason"`
	ScheduledFor  *time.Time `json:"scheduled_for" dynamodbav:"scheduled_for,omitempty"`
	PolicyVersion string     `json:"policy_version" dynamodbav:"policy_version"`
	RiskScore     float64    `json:"risk_score" dynamodbav:"risk_score"`
}

// OutboundMessage is one decision handed to a downstream dispatcher. GroupID orders messages of a
// user on FIFO targets and DedupeID lets such targets drop redelivered copies.
type OutboundMessage struct {
	Body       []byte
	Attributes map[string]string
	GroupID    string
	DedupeID   string
}
