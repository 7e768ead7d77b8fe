// Package memory is the volatile StateStore. State lives for the process lifetime only.
//
// Windowed queues are oldest-first slices trimmed from the front, which assumes events are
// appended in non-decreasing timestamp order. Reads still filter every element by timestamp,
// so results are exact; only eviction of out-of-order stragglers is delayed.
package memory

import (
	"context"
	"notigate/internal/types"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultDedupeSweepInterval = 10 * time.Minute

type StateStore struct {
	rules atomic.Pointer[types.RuleConfig]

	mu    sync.RWMutex
	users map[string]*userState

	// exact holds "<user>\x00<key>" -> time.Time, expired by the go-cache janitor after
	// types.ExactDedupeRetention.
	exact *cache.Cache

	now func() time.Time
}

type userState struct {
	mu           sync.Mutex
	events       []types.NotificationEvent
	audit        []types.AuditRecord
	fingerprints []types.RecentFingerprint
}

type Option func(*options)

type options struct {
	now   func() time.Time
	sweep time.Duration
}

// WithClock replaces the wall clock used for window math.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithDedupeSweep sets how often expired exact-dedupe keys are purged.
func WithDedupeSweep(d time.Duration) Option {
	return func(o *options) { o.sweep = d }
}

// NewStateStore creates a store holding the default RuleConfig.
func NewStateStore(opts ...Option) *StateStore {
	o := options{now: time.Now, sweep: DefaultDedupeSweepInterval}
	for _, fn := range opts {
		fn(&o)
	}
	s := &StateStore{
		users: make(map[string]*userState),
		exact: cache.New(types.ExactDedupeRetention, o.sweep),
		now:   o.now,
	}
	def := types.DefaultRuleConfig()
	s.rules.Store(&def)
	return s
}

func (s *StateStore) GetRules(_ context.Context) (types.RuleConfig, error) {
	return s.rules.Load().Clone(), nil
}

func (s *StateStore) SetRules(_ context.Context, cfg types.RuleConfig) (types.RuleConfig, error) {
	if err := cfg.Validate(); err != nil {
		return types.RuleConfig{}, types.Err(types.ErrInvalidRuleConfig, err, "")
	}
	c := cfg.Clone()
	s.rules.Store(&c)
	return c.Clone(), nil
}

func (s *StateStore) AddEvent(_ context.Context, event types.NotificationEvent) error {
	u := s.user(event.UserID, true)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, event)
	u.events = types.TrimFront(u.events, eventTS, s.now().Add(-types.EventRetention))
	return nil
}

func (s *StateStore) RecentEvents(_ context.Context, userID string, within time.Duration) ([]types.NotificationEvent, error) {
	u := s.user(userID, false)
	if u == nil || within <= 0 {
		return nil, nil
	}
	now := s.now()
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = types.TrimFront(u.events, eventTS, now.Add(-types.EventRetention))
	cutoff := now.Add(-within)
	var out []types.NotificationEvent
	for _, ev := range u.events {
		if !ev.Timestamp.Before(cutoff) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *StateStore) MarkExactSeen(_ context.Context, userID, key string, at time.Time) error {
	s.exact.Set(exactKey(userID, key), at, cache.DefaultExpiration)
	return nil
}

func (s *StateStore) ExactSeenWithin(_ context.Context, userID, key string, within time.Duration) (bool, error) {
	if within <= 0 {
		return false, nil
	}
	v, ok := s.exact.Get(exactKey(userID, key))
	if !ok {
		return false, nil
	}
	seenAt, ok := v.(time.Time)
	if !ok {
		return false, nil
	}
	return !seenAt.Before(s.now().Add(-within)), nil
}

func (s *StateStore) PushFingerprint(_ context.Context, userID, fingerprint string, event types.NotificationEvent, at time.Time) error {
	u := s.user(userID, true)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fingerprints = append(u.fingerprints, types.RecentFingerprint{Fingerprint: fingerprint, Event: event, SeenAt: at})
	u.fingerprints = types.TrimFront(u.fingerprints, fingerprintTS, s.now().Add(-types.FingerprintRetention))
	return nil
}

func (s *StateStore) RecentFingerprints(_ context.Context, userID string, within time.Duration) ([]types.RecentFingerprint, error) {
	u := s.user(userID, false)
	if u == nil || within <= 0 {
		return nil, nil
	}
	now := s.now()
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fingerprints = types.TrimFront(u.fingerprints, fingerprintTS, now.Add(-types.FingerprintRetention))
	cutoff := now.Add(-within)
	var out []types.RecentFingerprint
	for _, fp := range u.fingerprints {
		if !fp.SeenAt.Before(cutoff) {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (s *StateStore) AddAudit(_ context.Context, userID string, record types.AuditRecord) error {
	u := s.user(userID, true)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.audit = append(u.audit, record)
	u.audit = types.TrimFront(u.audit, auditTS, s.now().Add(-types.AuditRetention))
	return nil
}

func (s *StateStore) RecentAudit(_ context.Context, userID string, limit int) ([]types.AuditRecord, error) {
	u := s.user(userID, false)
	if u == nil || limit <= 0 {
		return nil, nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.audit = types.TrimFront(u.audit, auditTS, s.now().Add(-types.AuditRetention))
	start := len(u.audit) - limit
	if start < 0 {
		start = 0
	}
	out := make([]types.AuditRecord, len(u.audit)-start)
	copy(out, u.audit[start:])
	return out, nil
}

// Stats counts users with any state, and users with audit records.
func (s *StateStore) Stats(_ context.Context) (types.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := types.StoreStats{UsersTracked: len(s.users)}
	for _, u := range s.users {
		u.mu.Lock()
		if len(u.audit) > 0 {
			st.AuditUsers++
		}
		u.mu.Unlock()
	}
	return st, nil
}

// user returns the state of userID, creating it when create is set.
func (s *StateStore) user(userID string, create bool) *userState {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok || !create {
		return u
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok = s.users[userID]; ok {
		return u
	}
	u = &userState{}
	s.users[userID] = u
	return u
}

func exactKey(userID, key string) string { return userID + "\x00" + key }

func eventTS(e types.NotificationEvent) time.Time       { return e.Timestamp }
func fingerprintTS(f types.RecentFingerprint) time.Time { return f.SeenAt }
func auditTS(a types.AuditRecord) time.Time             { return a.CreatedAt }
