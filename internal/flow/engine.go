package flow

import (
	"context"
	"notigate/internal/ports"
	"notigate/internal/types"
	"time"

	log "github.com/sirupsen/logrus"
)

// Engine runs the ordered decision pipeline against a StateStore. Decisions for the same user are
// serialized for the whole pipeline, so each check-then-mutate step is atomic per user.
type Engine struct {
	store ports.StateStore
	locks *userLocks
	now   func() time.Time
}

type EngineOption func(*Engine)

// WithEngineClock replaces the wall clock used for "now".
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store ports.StateStore, opts ...EngineOption) *Engine {
	e := &Engine{store: store, locks: newUserLocks(), now: time.Now}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// Store returns the store the engine decides against.
func (e *Engine) Store() ports.StateStore { return e.store }

// Decide returns exactly one DecisionResponse for event. Every pipeline path yields a result; the
// error is non-nil only when the backing store fails I/O, and the in-memory store never does.
//
// Step order is part of the contract: the near-duplicate fingerprint is recorded before the
// rate limit and cooldown checks, so an event deferred by those still counts for future
// near-duplicate comparisons. The exact dedupe key is marked before the promotional cap.
func (e *Engine) Decide(ctx context.Context, event types.NotificationEvent) (types.DecisionResponse, error) {
	unlock := e.locks.Lock(event.UserID)
	defer unlock()

	rules, err := e.store.GetRules(ctx)
	if err != nil {
		return types.DecisionResponse{}, types.Err(types.ErrDataStoreAccess, err, "get rules")
	}
	now := e.now()

	reason, err := e.evaluate(ctx, rules, event, now)
	if err != nil {
		return types.DecisionResponse{}, types.Err(types.ErrDataStoreAccess, err, "evaluate %s", event.UserID)
	}
	resp := respond(rules, reason, now)

	log.WithFields(log.Fields{
		"user_id":        event.UserID,
		"event_type":     event.EventType,
		"channel":        event.Channel,
		"decision":       resp.Decision,
		"reason":         resp.Reason,
		"policy_version": resp.PolicyVersion,
	}).Debug("decision made")
	return resp, nil
}

func (e *Engine) evaluate(ctx context.Context, rules types.RuleConfig, event types.NotificationEvent, now time.Time) (string, error) {
	// 1. Expiry
	if event.ExpiresAt != nil && event.ExpiresAt.Before(now) {
		return ReasonExpired, nil
	}

	// 2. Suppressed types
	if rules.IsSuppressed(event.EventType) {
		return ReasonSuppressed, nil
	}

	// 3. Exact duplicate; the key is marked whatever happens next.
	if event.DedupeKey != "" {
		seen, err := e.store.ExactSeenWithin(ctx, event.UserID, event.DedupeKey, rules.Cooldown())
		if err != nil {
			return "", err
		}
		if seen {
			return ReasonExactDuplicate, nil
		}
		if err := e.store.MarkExactSeen(ctx, event.UserID, event.DedupeKey, now); err != nil {
			return "", err
		}
	}

	// 4. Promotional daily cap
	if rules.IsPromotional(event.EventType) {
		recent, err := e.store.RecentEvents(ctx, event.UserID, types.DayWindow)
		if err != nil {
			return "", err
		}
		promos := 0
		for _, r := range recent {
			if rules.IsPromotional(r.EventType) {
				promos++
			}
		}
		if promos >= rules.PromotionalCapPerDay {
			return ReasonPromotionalCap, nil
		}
	}

	if !rules.IsUrgent(event.EventType) {
		// 5. Near duplicate
		fp := EventFingerprint(event.Title, event.Message)
		if fp != "" {
			recentFps, err := e.store.RecentFingerprints(ctx, event.UserID, rules.NearDuplicateWindow())
			if err != nil {
				return "", err
			}
			for _, r := range recentFps {
				if r.Event.EventType != event.EventType {
					continue
				}
				if JaccardSimilarity(fp, r.Fingerprint) >= NearDuplicateThreshold {
					return ReasonNearDuplicate, nil
				}
			}
		}
		if err := e.store.PushFingerprint(ctx, event.UserID, fp, event, now); err != nil {
			return "", err
		}

		// 6. Hourly rate limit
		lastHour, err := e.store.RecentEvents(ctx, event.UserID, types.HourWindow)
		if err != nil {
			return "", err
		}
		if len(lastHour) >= rules.MaxPerHour {
			return ReasonHourlyRateLimit, nil
		}

		// 7. Channel cooldown
		inCooldown, err := e.store.RecentEvents(ctx, event.UserID, rules.Cooldown())
		if err != nil {
			return "", err
		}
		for _, r := range inCooldown {
			if r.Channel == event.Channel {
				return ReasonChannelCooldown, nil
			}
		}
	}

	// 8. Pass
	if err := e.store.AddEvent(ctx, event); err != nil {
		return "", err
	}
	return ReasonPassedAllChecks, nil
}

func respond(rules types.RuleConfig, reason string, now time.Time) types.DecisionResponse {
	d := DecisionFor[reason]
	resp := types.DecisionResponse{
		Decision:      d,
		Reason:        reason,
		PolicyVersion: rules.PolicyVersion,
		RiskScore:     RiskScores[reason],
	}
	if d == types.Later {
		at := now
		resp.ScheduledFor = &at
	}
	return resp
}
