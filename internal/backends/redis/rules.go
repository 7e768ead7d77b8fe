package redis

import (
	"context"
	"errors"
	"notigate/internal/types"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// GetRules returns the stored RuleConfig, or the defaults when none was ever set.
// Fields missing from the stored document keep their defaults.
func (s *StateStore) GetRules(ctx context.Context) (types.RuleConfig, error) {
	out := s.cli.Get(ctx, rulesKeyName)
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.DefaultRuleConfig(), nil
		}
		return types.RuleConfig{}, out.Err()
	}
	cfg := types.DefaultRuleConfig()
	if err := json.Unmarshal([]byte(out.Val()), &cfg); err != nil {
		return types.RuleConfig{}, err
	}
	return cfg, nil
}

// SetRules replaces the stored RuleConfig with a single SET, which readers observe atomically.
func (s *StateStore) SetRules(ctx context.Context, cfg types.RuleConfig) (types.RuleConfig, error) {
	if err := cfg.Validate(); err != nil {
		return types.RuleConfig{}, types.Err(types.ErrInvalidRuleConfig, err, "")
	}
	out, err := json.Marshal(cfg)
	if err != nil {
		return types.RuleConfig{}, err
	}
	if err := s.cli.Set(ctx, rulesKeyName, string(out), 0).Err(); err != nil {
		log.WithError(err).Error("failed to store rules")
		return types.RuleConfig{}, err
	}
	return cfg.Clone(), nil
}
