package flow

import (
	"context"
	"sync/atomic"
	"time"

	"notigate/internal/types"
)

type countingRuleStore struct {
	gets  atomic.Int32
	rules types.RuleConfig
}

func (c *countingRuleStore) GetRules(context.Context) (types.RuleConfig, error) {
	c.gets.Add(1)
	return c.rules, nil
}

func (c *countingRuleStore) SetRules(_ context.Context, cfg types.RuleConfig) (types.RuleConfig, error) {
	c.rules = cfg
	return cfg, nil
}

func (s *UnitTestSuite) TestCachedRuleStore() {
	inner := &countingRuleStore{rules: types.DefaultRuleConfig()}
	cached := NewCachedRuleStore(inner, time.Minute)

	for i := 0; i < 3; i++ {
		r, err := cached.GetRules(s.ctx)
		s.NoError(err)
		s.Equal("v1", r.PolicyVersion)
	}
	s.Equal(int32(1), inner.gets.Load())

	next := types.DefaultRuleConfig()
	next.PolicyVersion = "v2"
	_, err := cached.SetRules(s.ctx, next)
	s.NoError(err)

	r, _ := cached.GetRules(s.ctx)
	s.Equal("v2", r.PolicyVersion)
	s.Equal(int32(1), inner.gets.Load())
}
