package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps each conversation as a JSON value whose TTL is refreshed on
// every write.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		now:    time.Now,
		tracer: otel.Tracer("salon.internal.conversation"),
	}
}

func stateKey(userID string) string {
	return fmt.Sprintf("conversation_state:%s", userID)
}

func (s *RedisStore) expiry() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.get_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Start(ctx context.Context, userID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.start")
	defer span.End()

	st := newState(userID, s.now())
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(userID), data, s.expiry()).Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return st, nil
}

// update runs mutate under WATCH so a concurrent writer makes the update fail
// instead of being overwritten.
func (s *RedisStore) update(ctx context.Context, userID string, mutate func(*State, time.Time) error) (*State, error) {
	key := stateKey(userID)
	var out *State
	err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrInvalidStep
		}
		if err != nil {
			return fmt.Errorf("conversation: failed to load state: %w", err)
		}
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("conversation: failed to decode state: %w", err)
		}
		if err := mutate(&st, s.now()); err != nil {
			return err
		}
		encoded, err := json.Marshal(&st)
		if err != nil {
			return fmt.Errorf("conversation: failed to marshal state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.expiry())
			return nil
		})
		if err != nil {
			return fmt.Errorf("conversation: failed to persist state: %w", err)
		}
		out = &st
		return nil
	}, key)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Advance(ctx context.Context, userID string, entry Entry) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.advance")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.field", string(entry.Field)))

	st, err := s.update(ctx, userID, func(st *State, now time.Time) error {
		return apply(st, entry, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return st, nil
}

func (s *RedisStore) SetCategory(ctx context.Context, userID, category string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.set_category")
	defer span.End()

	st, err := s.update(ctx, userID, func(st *State, now time.Time) error {
		return applyCategory(st, category, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return st, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.clear")
	defer span.End()

	if err := s.redis.Del(ctx, stateKey(userID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete state: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
