package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"market_bot/internal/model"
)

// RedisSeen implements SeenStore on Redis. Entries expire after the retention
// period, so PurgeSeen has nothing to do.
type RedisSeen struct {
	client    *redis.Client
	retention time.Duration
	prefix    string
}

var _ SeenStore = (*RedisSeen)(nil)

type seenValue struct {
	Title       string    `json:"title"`
	Price       string    `json:"price"`
	URL         string    `json:"url"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// NewRedisSeen connects to Redis and verifies the connection.
func NewRedisSeen(ctx context.Context, addr, password string, db int, retention time.Duration) (*RedisSeen, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSeen{client: client, retention: retention, prefix: "seen"}, nil
}

// Close closes the Redis client.
func (r *RedisSeen) Close() error {
	return r.client.Close()
}

func (r *RedisSeen) key(k model.SeenKey) string {
	return strings.Join([]string{
		r.prefix, k.Platform, fmt.Sprint(k.ChatID), k.Keyword, k.ListingID,
	}, ":")
}

func (r *RedisSeen) IsSeen(ctx context.Context, key model.SeenKey) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return n > 0, nil
}

func (r *RedisSeen) MarkSeen(ctx context.Context, rec model.SeenRecord) error {
	v := seenValue{Title: rec.Title, Price: rec.Price, URL: rec.URL, FirstSeenAt: rec.FirstSeenAt}
	if v.FirstSeenAt.IsZero() {
		v.FirstSeenAt = time.Now().UTC()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal seen: %w", err)
	}
	if err := r.client.SetNX(ctx, r.key(rec.SeenKey), data, r.retention).Err(); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (r *RedisSeen) LastPrice(ctx context.Context, key model.SeenKey) (string, bool, error) {
	v, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return v.Price, true, nil
}

func (r *RedisSeen) UpdatePrice(ctx context.Context, key model.SeenKey, price string) error {
	v, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return err
	}
	v.Price = price
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal seen: %w", err)
	}
	err = r.client.SetArgs(ctx, r.key(key), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("update seen price: %w", err)
	}
	return nil
}

// PurgeSeen is a no-op: keys carry a TTL equal to the retention period.
func (r *RedisSeen) PurgeSeen(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *RedisSeen) get(ctx context.Context, key model.SeenKey) (seenValue, bool, error) {
	var v seenValue
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("get seen: %w", err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("unmarshal seen: %w", err)
	}
	return v, true, nil
}
