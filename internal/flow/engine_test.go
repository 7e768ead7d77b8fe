package flow

import (
	"fmt"
	"sync"
	"time"

	"notigate/internal/types"
)

func (s *UnitTestSuite) TestExactDuplicateSuppressed() {
	ev := s.mkEvent(func(e *types.NotificationEvent) {
		e.UserID = "alice"
		e.DedupeKey = "k1"
	})
	first := s.decide(ev)
	s.Equal(types.Now, first.Decision)
	s.Equal(ReasonPassedAllChecks, first.Reason)
	s.Nil(first.ScheduledFor)

	second := s.decide(ev)
	s.Equal(types.Never, second.Decision)
	s.Equal(ReasonExactDuplicate, second.Reason)
	s.Equal(0.0, second.RiskScore)
	s.Equal("v1", second.PolicyVersion)
}

func (s *UnitTestSuite) TestExactDuplicateWindowElapses() {
	ev := s.mkEvent(func(e *types.NotificationEvent) { e.DedupeKey = "k1" })
	s.Equal(types.Now, s.decide(ev).Decision)

	s.clock.Advance(time.Duration(types.DefaultCooldownSeconds+1) * time.Second)
	ev.Timestamp = s.clock.Now()
	s.Equal(types.Now, s.decide(ev).Decision)
}

func (s *UnitTestSuite) TestExactDedupeMarkedEvenWhenLaterStepBlocks() {
	s.setRules(func(r *types.RuleConfig) {
		r.PromotionalCapPerDay = 0
		r.CooldownSeconds = 600
	})
	ev := s.mkEvent(func(e *types.NotificationEvent) {
		e.EventType = "promotion"
		e.DedupeKey = "promo-1"
	})
	s.Equal(ReasonPromotionalCap, s.decide(ev).Reason)
	s.Equal(ReasonExactDuplicate, s.decide(ev).Reason)
}

func (s *UnitTestSuite) TestExpiredEventIsNever() {
	past := s.clock.Now().Add(-time.Second)
	ev := s.mkEvent(func(e *types.NotificationEvent) {
		e.ExpiresAt = &past
		e.EventType = "passive_tip"
		e.DedupeKey = "x"
	})
	d := s.decide(ev)
	s.Equal(types.Never, d.Decision)
	s.Equal(ReasonExpired, d.Reason)

	// Expiry short-circuits before the dedupe key is marked.
	seen, _ := s.store.ExactSeenWithin(s.ctx, "u1", "x", time.Hour)
	s.False(seen)
}

func (s *UnitTestSuite) TestExpiryAtNowIsNotExpired() {
	now := s.clock.Now()
	ev := s.mkEvent(func(e *types.NotificationEvent) { e.ExpiresAt = &now })
	s.Equal(types.Now, s.decide(ev).Decision)
}

func (s *UnitTestSuite) TestFutureExpiryPasses() {
	future := s.clock.Now().Add(time.Hour)
	ev := s.mkEvent(func(e *types.NotificationEvent) {
		e.UserID = "eve"
		e.EventType = "promotion"
		e.ExpiresAt = &future
		e.DedupeKey = "promo_1"
	})
	s.Equal(types.Now, s.decide(ev).Decision)
}

func (s *UnitTestSuite) TestSuppressedType() {
	ev := s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "passive_tip" })
	d := s.decide(ev)
	s.Equal(types.Never, d.Decision)
	s.Equal(ReasonSuppressed, d.Reason)
}

func (s *UnitTestSuite) TestPromotionalDailyCap() {
	s.setRules(func(r *types.RuleConfig) {
		r.PromotionalCapPerDay = 3
		r.CooldownSeconds = 0
	})
	for i := 0; i < 5; i++ {
		ev := s.mkEvent(func(e *types.NotificationEvent) {
			e.UserID = "frank"
			e.EventType = "promotion"
			e.Title = "Special Offer"
			e.Message = fmt.Sprintf("Promotional offer #%d", i+1)
			e.Channel = fmt.Sprintf("email_%d", i)
			e.DedupeKey = fmt.Sprintf("promo_%d", i)
		})
		d := s.decide(ev)
		if i < 3 {
			s.Equal(types.Now, d.Decision, "promo %d", i)
		} else {
			s.Equal(types.Never, d.Decision, "promo %d", i)
			s.Equal(ReasonPromotionalCap, d.Reason)
		}
	}

	// The cap rolls over after 24h.
	s.clock.Advance(24*time.Hour + time.Second)
	ev := s.mkEvent(func(e *types.NotificationEvent) {
		e.UserID = "frank"
		e.EventType = "upsell"
		e.Message = "Upgrade today"
	})
	s.Equal(types.Now, s.decide(ev).Decision)
}

func (s *UnitTestSuite) TestNearDuplicateDeferred() {
	s.setRules(func(r *types.RuleConfig) {
		r.NearDuplicateWindowSeconds = 3600
		r.CooldownSeconds = 0
	})
	e1 := s.mkEvent(func(e *types.NotificationEvent) {
		e.UserID = "bob"
		e.EventType = "shipping_update"
		e.Title = "Delivery Update"
		e.Message = "Your order has shipped and will arrive tomorrow"
	})
	e2 := e1
	e2.Message = "Your order shipped and will arrive tomorrow"
	e2.DedupeKey = "shipment_xyz789"

	s.Equal(types.Now, s.decide(e1).Decision)
	d2 := s.decide(e2)
	s.Equal(types.Later, d2.Decision)
	s.Equal(ReasonNearDuplicate, d2.Reason)
	s.Equal(0.5, d2.RiskScore)
	s.Require().NotNil(d2.ScheduledFor)
	s.Equal(s.clock.Now(), *d2.ScheduledFor)
}

func (s *UnitTestSuite) TestNearDuplicateBelowThreshold() {
	s.setRules(func(r *types.RuleConfig) { r.CooldownSeconds = 0 })
	e1 := s.mkEvent(func(e *types.NotificationEvent) {
		e.EventType = "update"
		e.Title = ""
		e.Message = "alpha beta gamma delta epsilon"
	})
	e2 := e1
	e2.Message = "alpha beta gamma delta" // 4/5 = 0.8

	s.Equal(types.Now, s.decide(e1).Decision)
	s.Equal(types.Now, s.decide(e2).Decision)
}

func (s *UnitTestSuite) TestNearDuplicateOnlySameType() {
	s.setRules(func(r *types.RuleConfig) { r.CooldownSeconds = 0 })
	e1 := s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "update" })
	e2 := s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "reminder" })

	s.Equal(types.Now, s.decide(e1).Decision)
	s.Equal(types.Now, s.decide(e2).Decision)
}

func (s *UnitTestSuite) TestNearDuplicateWindowElapses() {
	s.setRules(func(r *types.RuleConfig) { r.CooldownSeconds = 0 })
	e1 := s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "update" })
	s.Equal(types.Now, s.decide(e1).Decision)

	s.clock.Advance(time.Duration(types.DefaultNearDuplicateWindowSeconds+1) * time.Second)
	e2 := s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "update" })
	s.Equal(types.Now, s.decide(e2).Decision)
}

func (s *UnitTestSuite) TestTextlessEventsAreNotNearDuplicates() {
	s.setRules(func(r *types.RuleConfig) { r.CooldownSeconds = 0 })
	mk := func() types.NotificationEvent {
		return s.mkEvent(func(e *types.NotificationEvent) {
			e.EventType = "ping"
			e.Title = ""
			e.Message = "   "
		})
	}
	s.Equal(types.Now, s.decide(mk()).Decision)
	s.Equal(types.Now, s.decide(mk()).Decision)

	// Empty fingerprints are still recorded.
	fps, _ := s.store.RecentFingerprints(s.ctx, "u1", time.Hour)
	s.Len(fps, 2)
	s.Equal("", fps[0].Fingerprint)
}

func (s *UnitTestSuite) TestHourlyRateLimit() {
	s.setRules(func(r *types.RuleConfig) {
		r.MaxPerHour = 3
		r.CooldownSeconds = 0
		r.UrgentEventTypes = []string{"security_alert"}
	})
	for i := 0; i < 5; i++ {
		ev := s.mkEvent(func(e *types.NotificationEvent) {
			e.UserID = "charlie"
			e.EventType = "reminder"
			e.Title = "Daily Reminder"
			e.Message = fmt.Sprintf("Reminder #%d", i+1)
			e.Channel = fmt.Sprintf("channel_%d", i)
			e.DedupeKey = fmt.Sprintf("reminder_%d", i)
		})
		d := s.decide(ev)
		if i < 3 {
			s.Equal(types.Now, d.Decision, "reminder %d", i)
		} else {
			s.Equal(types.Later, d.Decision, "reminder %d", i)
			s.Equal(ReasonHourlyRateLimit, d.Reason)
			s.Equal(0.3, d.RiskScore)
		}
	}
}

func (s *UnitTestSuite) TestChannelCooldown() {
	s.setRules(func(r *types.RuleConfig) {
		r.CooldownSeconds = 300
		r.UrgentEventTypes = []string{}
	})
	mk := func(msg, channel, key string) types.NotificationEvent {
		return s.mkEvent(func(e *types.NotificationEvent) {
			e.UserID = "henry"
			e.Title = "Chat"
			e.Message = msg
			e.Channel = channel
			e.DedupeKey = key
		})
	}
	s.Equal(types.Now, s.decide(mk("Message 1", "push", "msg_1")).Decision)

	d2 := s.decide(mk("Message 2", "push", "msg_2"))
	s.Equal(types.Later, d2.Decision)
	s.Equal(ReasonChannelCooldown, d2.Reason)
	s.Equal(0.2, d2.RiskScore)

	s.Equal(types.Now, s.decide(mk("Email notification", "email", "msg_3")).Decision)

	s.clock.Advance(301 * time.Second)
	s.Equal(types.Now, s.decide(mk("Message 4", "push", "msg_4")).Decision)
}

func (s *UnitTestSuite) TestUrgentBypassesRateAndCooldown() {
	s.setRules(func(r *types.RuleConfig) {
		r.MaxPerHour = 1
		r.UrgentEventTypes = []string{"security_alert"}
	})
	e1 := s.mkEvent(func(e *types.NotificationEvent) {
		e.UserID = "dave"
		e.EventType = "reminder"
		e.Message = "Non-urgent reminder"
		e.DedupeKey = "reminder_1"
	})
	s.Equal(types.Now, s.decide(e1).Decision)

	for i := 0; i < 3; i++ {
		alert := s.mkEvent(func(e *types.NotificationEvent) {
			e.UserID = "dave"
			e.EventType = "security_alert"
			e.Title = "Security Alert"
			e.Message = "Unauthorized access attempt detected on your account!"
			e.DedupeKey = fmt.Sprintf("security_alert_%d", i)
		})
		s.Equal(types.Now, s.decide(alert).Decision)
	}

	// Urgent events never record fingerprints.
	fps, _ := s.store.RecentFingerprints(s.ctx, "dave", time.Hour)
	s.Len(fps, 1)
}

func (s *UnitTestSuite) TestUrgentStillSubjectToEarlySteps() {
	s.setRules(func(r *types.RuleConfig) {
		r.UrgentEventTypes = []string{"promotion", "passive_tip"}
		r.PromotionalCapPerDay = 0
	})
	s.Equal(ReasonSuppressed, s.decide(s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "passive_tip" })).Reason)
	s.Equal(ReasonPromotionalCap, s.decide(s.mkEvent(func(e *types.NotificationEvent) { e.EventType = "promotion" })).Reason)
}

func (s *UnitTestSuite) TestDeferredEventStillRecordsFingerprint() {
	s.setRules(func(r *types.RuleConfig) {
		r.MaxPerHour = 1
		r.CooldownSeconds = 0
		r.NearDuplicateWindowSeconds = 7200
	})
	mk := func(msg string) types.NotificationEvent {
		return s.mkEvent(func(e *types.NotificationEvent) {
			e.EventType = "digest"
			e.Title = ""
			e.Message = msg
		})
	}
	s.Equal(types.Now, s.decide(mk("alpha beta gamma")).Decision)
	s.Equal(ReasonHourlyRateLimit, s.decide(mk("one two three")).Reason)

	// The rate window has cleared, but the deferred event's fingerprint still matches.
	s.clock.Advance(61 * time.Minute)
	s.Equal(ReasonNearDuplicate, s.decide(mk("one two three")).Reason)
}

func (s *UnitTestSuite) TestPolicyVersionEchoed() {
	s.setRules(func(r *types.RuleConfig) { r.PolicyVersion = "2026-05-a" })
	s.Equal("2026-05-a", s.decide(s.mkEvent(nil)).PolicyVersion)
}

func (s *UnitTestSuite) TestUnknownTypesAndChannelsAreOpaque() {
	d := s.decide(s.mkEvent(func(e *types.NotificationEvent) {
		e.EventType = "¿whatever?"
		e.Channel = "carrier-pigeon"
	}))
	s.Equal(types.Now, d.Decision)
}

func (s *UnitTestSuite) TestConcurrentExactDedupe() {
	var wg sync.WaitGroup
	results := make(chan types.DecisionResponse, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := s.engine.Decide(s.ctx, s.mkEvent(func(e *types.NotificationEvent) { e.DedupeKey = "same" }))
			s.NoError(err)
			results <- d
		}()
	}
	wg.Wait()
	close(results)
	passed := 0
	for d := range results {
		if d.Decision == types.Now {
			passed++
		} else {
			s.Equal(ReasonExactDuplicate, d.Reason)
		}
	}
	s.Equal(1, passed)
	s.Equal(0, s.engine.locks.size())
}

func (s *UnitTestSuite) TestConcurrentRateLimit() {
	s.setRules(func(r *types.RuleConfig) {
		r.MaxPerHour = 5
		r.CooldownSeconds = 0
	})
	var wg sync.WaitGroup
	var mu sync.Mutex
	now := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := s.engine.Decide(s.ctx, s.mkEvent(func(e *types.NotificationEvent) {
				e.EventType = "reminder"
				e.Title = ""
				e.Message = fmt.Sprintf("msg %d", i)
				e.Channel = fmt.Sprintf("c%d", i)
			}))
			s.NoError(err)
			if d.Decision == types.Now {
				mu.Lock()
				now++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	s.Equal(5, now)
}
