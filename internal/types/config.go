package types

import (
	"fmt"
	"time"
)

// RuleConfig is the policy applied to every decision. It is always replaced as a whole;
// the PolicyVersion is echoed on each DecisionResponse made under it.
// CooldownSeconds is both the per-channel spacing for non-urgent events and the window in which
// an exact dedupe key counts as already seen.
// MaxPerHour caps non-urgent events delivered NOW per rolling hour.
// PromotionalCapPerDay caps promotional events delivered per rolling 24 hours.
// NearDuplicateWindowSeconds is how far back fingerprints are compared.
// DigestDelaySeconds is informational only, nothing schedules digests here.
type RuleConfig struct {
	PolicyVersion              string   `json:"policy_version" yaml:"policy_version" dynamodbav:"policy_version"`
	CooldownSeconds            int      `json:"cooldown_seconds" yaml:"cooldown_seconds" dynamodbav:"cooldown_seconds"`
	MaxPerHour                 int      `json:"max_per_hour" yaml:"max_per_hour" dynamodbav:"max_per_hour"`
	PromotionalCapPerDay       int      `json:"promotional_cap_per_day" yaml:"promotional_cap_per_day" dynamodbav:"promotional_cap_per_day"`
	NearDuplicateWindowSeconds int      `json:"near_duplicate_window_seconds" yaml:"near_duplicate_window_seconds" dynamodbav:"near_duplicate_window_seconds"`
	DigestDelaySeconds         int      `json:"digest_delay_seconds" yaml:"digest_delay_seconds" dynamodbav:"digest_delay_seconds"`
	UrgentEventTypes           []string `json:"urgent_event_types" yaml:"urgent_event_types" dynamodbav:"urgent_event_types"`
	SuppressEventTypes         []string `json:"suppress_event_types" yaml:"suppress_event_types" dynamodbav:"suppress_event_types"`
	PromotionalEventTypes      []string `json:"promotional_event_types" yaml:"promotional_event_types" dynamodbav:"promotional_event_types"`
}

const (
	DefaultPolicyVersion              = "v1"
	DefaultCooldownSeconds            = 180
	DefaultMaxPerHour                 = 15
	DefaultPromotionalCapPerDay       = 3
	DefaultNearDuplicateWindowSeconds = 300
	DefaultDigestDelaySeconds         = 600
)

// DefaultRuleConfig returns a fresh copy of the default policy. Decoders start from this value so
// that fields missing from the input keep their defaults.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		PolicyVersion:              DefaultPolicyVersion,
		CooldownSeconds:            DefaultCooldownSeconds,
		MaxPerHour:                 DefaultMaxPerHour,
		PromotionalCapPerDay:       DefaultPromotionalCapPerDay,
		NearDuplicateWindowSeconds: DefaultNearDuplicateWindowSeconds,
		DigestDelaySeconds:         DefaultDigestDelaySeconds,
		UrgentEventTypes:           []string{"security_alert", "payment_failed", "message_direct"},
		SuppressEventTypes:         []string{"passive_tip"},
		PromotionalEventTypes:      []string{"promotion", "upsell"},
	}
}

func (c RuleConfig) IsUrgent(eventType string) bool      { return contains(c.UrgentEventTypes, eventType) }
func (c RuleConfig) IsSuppressed(eventType string) bool  { return contains(c.SuppressEventTypes, eventType) }
func (c RuleConfig) IsPromotional(eventType string) bool { return contains(c.PromotionalEventTypes, eventType) }

func (c RuleConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c RuleConfig) NearDuplicateWindow() time.Duration {
	return time.Duration(c.NearDuplicateWindowSeconds) * time.Second
}

// Clone returns a deep copy so callers can never mutate lists held by a store.
func (c RuleConfig) Clone() RuleConfig {
	c.UrgentEventTypes = append([]string(nil), c.UrgentEventTypes...)
	c.SuppressEventTypes = append([]string(nil), c.SuppressEventTypes...)
	c.PromotionalEventTypes = append([]string(nil), c.PromotionalEventTypes...)
	return c
}

// Validate checks the config can be served by the store retention horizons.
// Windows longer than the horizon of the queue they read would silently truncate.
func (c RuleConfig) Validate() error {
	if c.PolicyVersion == "" {
		return fmt.Errorf("policy_version is required")
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds must be non-negative. 0 disables the cooldown")
	}
	if time.Duration(c.CooldownSeconds)*time.Second > EventRetention {
		return fmt.Errorf("cooldown_seconds must be less than or equal to %d", int(EventRetention.Seconds()))
	}
	if c.MaxPerHour < 0 {
		return fmt.Errorf("max_per_hour must be non-negative")
	}
	if c.PromotionalCapPerDay < 0 {
		return fmt.Errorf("promotional_cap_per_day must be non-negative")
	}
	if c.NearDuplicateWindowSeconds < 0 {
		return fmt.Errorf("near_duplicate_window_seconds must be non-negative")
	}
	if time.Duration(c.NearDuplicateWindowSeconds)*time.Second > FingerprintRetention {
		return fmt.Errorf("near_duplicate_window_seconds must be less than or equal to %d", int(FingerprintRetention.Seconds()))
	}
	if c.DigestDelaySeconds < 0 {
		return fmt.Errorf("digest_delay_seconds must be non-negative")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
