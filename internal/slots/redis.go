package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisRegistry stores one key per (staff, slot). SET NX gives the atomic
// reserve across every instance sharing the Redis server.
type RedisRegistry struct {
	redis  *redis.Client
	loc    *time.Location
	now    func() time.Time
	tracer trace.Tracer
}

// NewRedisRegistry builds a registry on top of a Redis client. loc is the salon
// timezone and is only used to compute key expiry.
func NewRedisRegistry(client *redis.Client, loc *time.Location) *RedisRegistry {
	if client == nil {
		panic("slots: redis client cannot be nil")
	}
	return &RedisRegistry{
		redis:  client,
		loc:    loc,
		now:    time.Now,
		tracer: otel.Tracer("salon.internal.slots"),
	}
}

func slotKey(staffID string, slot Key) string {
	return fmt.Sprintf("slot:%s:%s:%s", staffID, slot.Date, slot.Time)
}

func (r *RedisRegistry) IsStaffFree(ctx context.Context, staffID string, slot Key) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "slots.is_staff_free")
	defer span.End()

	n, err := r.redis.Exists(ctx, slotKey(staffID, slot)).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("slots: check staff %s: %w", staffID, err)
	}
	return n == 0, nil
}

func (r *RedisRegistry) Reserve(ctx context.Context, staffID string, slot Key, userID string) error {
	if err := validate(staffID, slot); err != nil {
		return err
	}
	ctx, span := r.tracer.Start(ctx, "slots.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("salon.staff_id", staffID),
		attribute.String("salon.slot", slot.String()),
	)

	key := slotKey(staffID, slot)
	ttl := reservationTTL(slot, r.loc, r.now())
	// Two rounds cover a release landing between SETNX and GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.redis.SetNX(ctx, key, userID, ttl).Result()
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("slots: reserve %s: %w", key, err)
		}
		if ok {
			return nil
		}
		holder, err := r.redis.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("slots: read holder %s: %w", key, err)
		}
		if holder == userID {
			return nil
		}
		span.SetAttributes(attribute.Bool("slots.taken", true))
		return ErrSlotTaken
	}
	return ErrSlotTaken
}

func (r *RedisRegistry) Release(ctx context.Context, staffID string, slot Key) error {
	ctx, span := r.tracer.Start(ctx, "slots.release")
	defer span.End()

	if err := r.redis.Del(ctx, slotKey(staffID, slot)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("slots: release staff %s: %w", staffID, err)
	}
	return nil
}

func (r *RedisRegistry) ListAvailableStaff(ctx context.Context, candidates []string, slot Key) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "slots.list_available_staff")
	defer span.End()

	if len(candidates) == 0 {
		return []string{}, nil
	}
	pipe := r.redis.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(candidates))
	for _, id := range candidates {
		cmds[id] = pipe.Exists(ctx, slotKey(id, slot))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("slots: list available staff: %w", err)
	}
	return filterFree(candidates, func(id string) bool {
		return cmds[id].Val() > 0
	}), nil
}

var _ Registry = (*RedisRegistry)(nil)
