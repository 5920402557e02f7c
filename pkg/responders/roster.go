package responders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"crisis-escalation-service/pkg/constants"
)

// ErrNoneAvailable means no responder is on duty. Automatic assignment
// treats this as "stay pending for manual claim", not a failure.
var ErrNoneAvailable = errors.New("no responder available")

// Roster tracks which responders are on duty and which was assigned least
// recently. Pick returns a candidate and bumps its assignment time; the
// actual ownership decision still goes through the store's compare-and-set.
type Roster interface {
	GoOnDuty(ctx context.Context, responderID string) error
	GoOffDuty(ctx context.Context, responderID string) error
	PickLeastRecentlyAssigned(ctx context.Context) (string, error)
	Touch(ctx context.Context, responderID string) error
	OnDutyCount(ctx context.Context) (int64, error)
}

// RedisRoster keeps the duty roster in a sorted set scored by the last
// assignment time, so the head of the set is always the least recently
// assigned responder.
type RedisRoster struct {
	rdb *redis.Client
}

func NewRedisRoster(rdb *redis.Client) *RedisRoster {
	return &RedisRoster{rdb: rdb}
}

func (r *RedisRoster) GoOnDuty(ctx context.Context, responderID string) error {
	// Score 0 puts a fresh responder at the head of the pick order.
	err := r.rdb.ZAddNX(ctx, constants.RespondersOnDutyKey, &redis.Z{
		Score:  0,
		Member: responderID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to register responder on duty: %w", err)
	}
	return nil
}

func (r *RedisRoster) GoOffDuty(ctx context.Context, responderID string) error {
	if err := r.rdb.ZRem(ctx, constants.RespondersOnDutyKey, responderID).Err(); err != nil {
		return fmt.Errorf("failed to remove responder from duty: %w", err)
	}
	return nil
}

func (r *RedisRoster) PickLeastRecentlyAssigned(ctx context.Context) (string, error) {
	ids, err := r.rdb.ZRange(ctx, constants.RespondersOnDutyKey, 0, 0).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read duty roster: %w", err)
	}
	if len(ids) == 0 {
		return "", ErrNoneAvailable
	}
	if err := r.Touch(ctx, ids[0]); err != nil {
		return "", err
	}
	return ids[0], nil
}

func (r *RedisRoster) Touch(ctx context.Context, responderID string) error {
	err := r.rdb.ZAddXX(ctx, constants.RespondersOnDutyKey, &redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: responderID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to touch responder assignment time: %w", err)
	}
	return nil
}

func (r *RedisRoster) OnDutyCount(ctx context.Context) (int64, error) {
	count, err := r.rdb.ZCard(ctx, constants.RespondersOnDutyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count on-duty responders: %w", err)
	}
	return count, nil
}

// MemoryRoster mirrors RedisRoster semantics for the in-memory backend.
type MemoryRoster struct {
	mu     sync.Mutex
	onDuty map[string]int64
}

func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{onDuty: make(map[string]int64)}
}

func (r *MemoryRoster) GoOnDuty(ctx context.Context, responderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.onDuty[responderID]; !ok {
		r.onDuty[responderID] = 0
	}
	return nil
}

func (r *MemoryRoster) GoOffDuty(ctx context.Context, responderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.onDuty, responderID)
	return nil
}

func (r *MemoryRoster) PickLeastRecentlyAssigned(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.onDuty) == 0 {
		return "", ErrNoneAvailable
	}

	type entry struct {
		id    string
		score int64
	}
	entries := make([]entry, 0, len(r.onDuty))
	for id, score := range r.onDuty {
		entries = append(entries, entry{id, score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score == entries[j].score {
			return entries[i].id < entries[j].id
		}
		return entries[i].score < entries[j].score
	})

	picked := entries[0].id
	r.onDuty[picked] = time.Now().UnixMilli()
	return picked, nil
}

func (r *MemoryRoster) Touch(ctx context.Context, responderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.onDuty[responderID]; ok {
		r.onDuty[responderID] = time.Now().UnixMilli()
	}
	return nil
}

func (r *MemoryRoster) OnDutyCount(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.onDuty)), nil
}
