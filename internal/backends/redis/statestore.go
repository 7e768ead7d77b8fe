package redis

import (
	"context"
	"errors"
	"fmt"
	"notigate/internal/codec"
	"notigate/internal/types"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix             = "_notigate_"
	eventsKeyTemplate     = keyPrefix + "ev_%s"
	fingerprKeyTemplate   = keyPrefix + "fp_%s"
	auditKeyTemplate      = keyPrefix + "au_%s"
	exactKeyTemplate      = keyPrefix + "dx_%d_%s_%s" // user length disambiguates the split
	usersKeyName          = keyPrefix + "users"
	auditUsersKeyName     = keyPrefix + "audit_users"
	rulesKeyName          = keyPrefix + "rules"
	scanBatch             = 500
	negativeInfinityScore = "-inf"
	positiveInfinityScore = "+inf"
)

// StateStore implements ports.StateStore on Redis. Each per-user queue is a sorted set scored by
// unix milliseconds, so trimming and windowed reads are by score and do not depend on insertion
// order. Members are codec envelopes carrying a unique id, which keeps identical events distinct.
type StateStore struct {
	cli *redis.Client
	now func() time.Time
}

type Option func(*StateStore)

func WithClock(now func() time.Time) Option {
	return func(s *StateStore) { s.now = now }
}

func NewStateStore(cli *redis.Client, opts ...Option) *StateStore {
	s := &StateStore{cli: cli, now: time.Now}
	for _, fn := range opts {
		fn(s)
	}
	return s
}

type envelope[T any] struct {
	ID   string `json:"id"`
	Item T      `json:"item"`
}

func (s *StateStore) AddEvent(ctx context.Context, event types.NotificationEvent) error {
	return s.push(ctx, getEventsKey(event.UserID), usersKeyName, event.UserID, event.Timestamp, event, types.EventRetention)
}

func (s *StateStore) RecentEvents(ctx context.Context, userID string, within time.Duration) ([]types.NotificationEvent, error) {
	return readWindow[types.NotificationEvent](ctx, s, getEventsKey(userID), within, types.EventRetention)
}

func (s *StateStore) MarkExactSeen(ctx context.Context, userID, key string, at time.Time) error {
	out := s.cli.Set(ctx, getExactKey(userID, key), at.UnixMilli(), types.ExactDedupeRetention)
	return out.Err()
}

func (s *StateStore) ExactSeenWithin(ctx context.Context, userID, key string, within time.Duration) (bool, error) {
	if within <= 0 {
		return false, nil
	}
	v, err := s.cli.Get(ctx, getExactKey(userID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid exact seen value: %w", err)
	}
	return ms >= s.now().Add(-within).UnixMilli(), nil
}

func (s *StateStore) PushFingerprint(ctx context.Context, userID, fingerprint string, event types.NotificationEvent, at time.Time) error {
	fp := types.RecentFingerprint{Fingerprint: fingerprint, Event: event, SeenAt: at}
	return s.push(ctx, getFingerprintKey(userID), usersKeyName, userID, at, fp, types.FingerprintRetention)
}

func (s *StateStore) RecentFingerprints(ctx context.Context, userID string, within time.Duration) ([]types.RecentFingerprint, error) {
	return readWindow[types.RecentFingerprint](ctx, s, getFingerprintKey(userID), within, types.FingerprintRetention)
}

func (s *StateStore) AddAudit(ctx context.Context, userID string, record types.AuditRecord) error {
	return s.push(ctx, getAuditKey(userID), auditUsersKeyName, userID, record.CreatedAt, record, types.AuditRetention)
}

func (s *StateStore) RecentAudit(ctx context.Context, userID string, limit int) ([]types.AuditRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	key := getAuditKey(userID)
	var rng *redis.StringSliceCmd
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, negativeInfinityScore, exclusive(s.now().Add(-types.AuditRetention)))
		rng = pipe.ZRange(ctx, key, int64(-limit), -1)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[types.AuditRecord](rng.Val())
}

// Stats reports the sizes of the user registry sets. Users are registered on first write.
func (s *StateStore) Stats(ctx context.Context) (types.StoreStats, error) {
	users, err := s.cli.SCard(ctx, usersKeyName).Result()
	if err != nil {
		return types.StoreStats{}, err
	}
	auditUsers, err := s.cli.SCard(ctx, auditUsersKeyName).Result()
	if err != nil {
		return types.StoreStats{}, err
	}
	return types.StoreStats{UsersTracked: int(users), AuditUsers: int(auditUsers)}, nil
}

// ClearAll removes every key this store owns. Used in tests only.
func (s *StateStore) ClearAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.cli.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.cli.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// push adds item at score at, trims below the horizon and refreshes the key TTL in one transaction.
func (s *StateStore) push(ctx context.Context, key, registry, userID string, at time.Time, item any, horizon time.Duration) error {
	member, err := codec.Encode(envelope[any]{ID: uuid.NewString(), Item: item})
	if err != nil {
		return err
	}
	_, err = s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
		pipe.ZRemRangeByScore(ctx, key, negativeInfinityScore, exclusive(s.now().Add(-horizon)))
		pipe.Expire(ctx, key, horizon)
		pipe.SAdd(ctx, registry, userID)
		return nil
	})
	return err
}

func readWindow[T any](ctx context.Context, s *StateStore, key string, within, horizon time.Duration) ([]T, error) {
	if within <= 0 {
		return nil, nil
	}
	now := s.now()
	var rng *redis.StringSliceCmd
	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, negativeInfinityScore, exclusive(now.Add(-horizon)))
		rng = pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: strconv.FormatInt(now.Add(-within).UnixMilli(), 10),
			Max: positiveInfinityScore,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[T](rng.Val())
}

func decodeAll[T any](members []string) ([]T, error) {
	if len(members) == 0 {
		return nil, nil
	}
	out := make([]T, 0, len(members))
	for _, m := range members {
		var env envelope[T]
		if err := codec.Decode(m, &env); err != nil {
			return nil, fmt.Errorf("invalid queue entry: %w", err)
		}
		out = append(out, env.Item)
	}
	return out, nil
}

// exclusive renders t as an exclusive score bound.
func exclusive(t time.Time) string {
	return "(" + strconv.FormatInt(t.UnixMilli(), 10)
}

func getEventsKey(userID string) string      { return fmt.Sprintf(eventsKeyTemplate, userID) }
func getFingerprintKey(userID string) string { return fmt.Sprintf(fingerprKeyTemplate, userID) }
func getAuditKey(userID string) string       { return fmt.Sprintf(auditKeyTemplate, userID) }
func getExactKey(userID, key string) string {
	return fmt.Sprintf(exactKeyTemplate, len(userID), userID, key)
}
