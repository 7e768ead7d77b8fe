package types

import "time"

// Retention horizons of the per-user windowed queues. Each must exceed the largest window any rule
// queries on that queue; RuleConfig.Validate enforces it.
const (
	EventRetention       = 48 * time.Hour
	FingerprintRetention = 6 * time.Hour
	AuditRetention       = 7 * 24 * time.Hour

	// ExactDedupeRetention bounds the exact dedupe map. It equals the event horizon, which is also the
	// upper bound of CooldownSeconds.
	ExactDedupeRetention = EventRetention

	HourWindow = time.Hour
	DayWindow  = 24 * time.Hour

	DefaultHistoryAuditLimit = 100
)

// RecentFingerprint is a token fingerprint tied to the event that produced it.
type RecentFingerprint struct {
	Fingerprint string            `json:"fingerprint"`
	Event       NotificationEvent `json:"event"`
	SeenAt      time.Time         `json:"seen_at"`
}

// AuditRecord pairs an event with the decision made for it.
type AuditRecord struct {
	ID        string            `json:"id" dynamodbav:"id"`
	Event     NotificationEvent `json:"event" dynamodbav:"event"`
	Decision  DecisionResponse  `json:"decision" dynamodbav:"decision"`
	CreatedAt time.Time         `json:"created_at" dynamodbav:"created_at"`
}

// UserHistory is the reporting view of a user.
type UserHistory struct {
	UserID         string              `json:"user_id"`
	LastHourEvents []NotificationEvent `json:"last_hour_events"`
	AuditRecords   []AuditRecord       `json:"audit_records"`
}

// StoreStats is a point-in-time size report of a state store.
type StoreStats struct {
	UsersTracked int `json:"users_tracked"`
	AuditUsers   int `json:"audit_users"`
}

// TrimFront drops elements from the front of an oldest-first queue while the oldest one is before
// cutoff. It assumes non-decreasing timestamps in insertion order: an out-of-order older element
// behind a newer one survives until it reaches the front.
func TrimFront[T any](q []T, ts func(T) time.Time, cutoff time.Time) []T {
	i := 0
	for i < len(q) && ts(q[i]).Before(cutoff) {
		i++
	}
	if i == 0 {
		return q
	}
	if i == len(q) {
		return nil
	}
	// Copy so the dropped prefix does not pin the backing array.
	out := make([]T, len(q)-i)
	copy(out, q[i:])
	return out
}
