package flow

import (
	"context"
	"notigate/internal/ports"
	"notigate/internal/types"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultRulesCacheTTL = 30 * time.Second

const activeRulesKey = "active"

// CachedRuleStore fronts a remote RuleStore with a short TTL cache so decisions do not pay a
// round trip each. SetRules writes through and refreshes the cache, so on this instance the next
// decision after a replace already sees the new version.
type CachedRuleStore struct {
	inner ports.RuleStore
	ttl   time.Duration
	cache *TTL[string, types.RuleConfig]
}

func NewCachedRuleStore(inner ports.RuleStore, ttl time.Duration) *CachedRuleStore {
	if ttl <= 0 {
		ttl = DefaultRulesCacheTTL
	}
	return &CachedRuleStore{inner: inner, ttl: ttl, cache: NewTTL[string, types.RuleConfig](nil)}
}

func (c *CachedRuleStore) GetRules(ctx context.Context) (types.RuleConfig, error) {
	if v, ok := c.cache.Get(activeRulesKey); ok {
		return v.Clone(), nil
	}
	r, err := c.inner.GetRules(ctx)
	if err != nil {
		return types.RuleConfig{}, err
	}
	c.cache.Set(activeRulesKey, r.Clone(), c.ttl)
	return r, nil
}

func (c *CachedRuleStore) SetRules(ctx context.Context, cfg types.RuleConfig) (types.RuleConfig, error) {
	c.cache.Delete(activeRulesKey)
	r, err := c.inner.SetRules(ctx, cfg)
	if err != nil {
		return types.RuleConfig{}, err
	}
	c.cache.Set(activeRulesKey, r.Clone(), c.ttl)
	log.WithField("policy_version", r.PolicyVersion).Info("rules replaced")
	return r, nil
}
