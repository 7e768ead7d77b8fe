package ports

import (
	"context"
	"notigate/internal/types"
	"time"
)

// RuleStore holds the single active RuleConfig. SetRules replaces it as a whole; readers
// observe either the old or the new config, never a mix.
type RuleStore interface {
	GetRules(ctx context.Context) (types.RuleConfig, error)
	SetRules(ctx context.Context, cfg types.RuleConfig) (types.RuleConfig, error)
}

// WindowStore keeps per-user recency state. Every windowed read trims the queue it reads first.
// A window of zero (or less) contains nothing.
type WindowStore interface {
	// AddEvent appends to the user's event history, retained for types.EventRetention.
	AddEvent(ctx context.Context, event types.NotificationEvent) error
	// RecentEvents returns events with timestamp >= now-within, oldest first.
	RecentEvents(ctx context.Context, userID string, within time.Duration) ([]types.NotificationEvent, error)

	MarkExactSeen(ctx context.Context, userID, key string, at time.Time) error
	// ExactSeenWithin is true iff the key was marked and the mark is >= now-within.
	ExactSeenWithin(ctx context.Context, userID, key string, within time.Duration) (bool, error)

	// PushFingerprint appends even an empty fingerprint; retained for types.FingerprintRetention.
	PushFingerprint(ctx context.Context, userID, fingerprint string, event types.NotificationEvent, at time.Time) error
	RecentFingerprints(ctx context.Context, userID string, within time.Duration) ([]types.RecentFingerprint, error)
}

// AuditStore persists audit records for history queries. The decision pipeline never writes here;
// the transport does after each decision.
type AuditStore interface {
	AddAudit(ctx context.Context, userID string, record types.AuditRecord) error
	// RecentAudit returns the newest limit records, oldest first.
	RecentAudit(ctx context.Context, userID string, limit int) ([]types.AuditRecord, error)
}

// StateStore is everything the engine and the transport need.
type StateStore interface {
	RuleStore
	WindowStore
	AuditStore
}

// StatsReporter is implemented by stores that can report their size.
type StatsReporter interface {
	Stats(ctx context.Context) (types.StoreStats, error)
}
