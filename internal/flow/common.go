package flow

import "notigate/internal/types"

// Reason codes, one per pipeline exit.
const (
	ReasonExpired          = "event_expired"
	ReasonSuppressed       = "event_type_suppressed"
	ReasonExactDuplicate   = "exact_duplicate"
	ReasonPromotionalCap   = "promotional_daily_cap_reached"
	ReasonNearDuplicate    = "near_duplicate"
	ReasonHourlyRateLimit  = "hourly_rate_limit_exceeded"
	ReasonChannelCooldown  = "channel_cooldown_active"
	ReasonPassedAllChecks  = "passed_all_checks"
	NearDuplicateThreshold = 0.82
)

// RiskScores is the fixed risk attached to each reason.
var RiskScores = map[string]float64{
	ReasonExpired:         0.0,
	ReasonSuppressed:      0.0,
	ReasonExactDuplicate:  0.0,
	ReasonPromotionalCap:  0.0,
	ReasonNearDuplicate:   0.5,
	ReasonHourlyRateLimit: 0.3,
	ReasonChannelCooldown: 0.2,
	ReasonPassedAllChecks: 0.0,
}

// DecisionFor maps a reason code to its decision.
var DecisionFor = map[string]types.Decision{
	ReasonExpired:         types.Never,
	ReasonSuppressed:      types.Never,
	ReasonExactDuplicate:  types.Never,
	ReasonPromotionalCap:  types.Never,
	ReasonNearDuplicate:   types.Later,
	ReasonHourlyRateLimit: types.Later,
	ReasonChannelCooldown: types.Later,
	ReasonPassedAllChecks: types.Now,
}
