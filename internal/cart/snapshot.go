package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshots persists cart contents outside the process so a cart survives a
// restart or an eviction from the in-memory registry.
type Snapshots interface {
	Load(ctx context.Context, owner string) ([]Item, bool, error)
	Save(ctx context.Context, owner string, items []Item) error
	Delete(ctx context.Context, owner string) error
	Ping(ctx context.Context) error
}

// NopSnapshots keeps nothing; carts live only as long as the registry holds
// them.
type NopSnapshots struct{}

func (NopSnapshots) Load(context.Context, string) ([]Item, bool, error) { return nil, false, nil }
func (NopSnapshots) Save(context.Context, string, []Item) error         { return nil }
func (NopSnapshots) Delete(context.Context, string) error               { return nil }
func (NopSnapshots) Ping(context.Context) error                         { return nil }

const snapshotKeyPrefix = "cart:"

type snapshot struct {
	Items   []Item    `json:"items"`
	SavedAt time.Time `json:"saved_at"`
}

// RedisSnapshots stores one JSON document per owner with a TTL that is
// refreshed on every save.
type RedisSnapshots struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshots(client *redis.Client, ttl time.Duration) *RedisSnapshots {
	return &RedisSnapshots{client: client, ttl: ttl}
}

func (r *RedisSnapshots) Load(ctx context.Context, owner string) ([]Item, bool, error) {
	data, err := r.client.Get(ctx, snapshotKeyPrefix+owner).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get cart: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("unmarshal cart: %w", err)
	}
	return snap.Items, true, nil
}

func (r *RedisSnapshots) Save(ctx context.Context, owner string, items []Item) error {
	data, err := json.Marshal(snapshot{Items: items, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKeyPrefix+owner, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, owner string) error {
	if err := r.client.Del(ctx, snapshotKeyPrefix+owner).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

func (r *RedisSnapshots) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
