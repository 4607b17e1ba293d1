// Package kv holds the Redis-backed adapters.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("kv")

// NewClient parses url, connects and pings. The caller owns Close.
func NewClient(ctx context.Context, url string, logger *zap.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connected", zap.String("addr", opt.Addr), zap.Int("db", opt.DB))
	return client, nil
}

// Deduper implements port.EventDeduper on Redis keys with a TTL, so every
// replica sees the same processed set.
type Deduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDeduper creates a deduper storing keys as prefix+eventID.
func NewDeduper(client *redis.Client, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Redis.Deduper.Seen")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", eventID))

	n, err := d.client.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	ctx, span := tracer.Start(ctx, "Redis.Deduper.Mark")
	defer span.End()
	span.SetAttributes(attribute.String("event.id", eventID))

	if err := d.client.Set(ctx, d.prefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping reports whether Redis answers; used by /readyz.
func (d *Deduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
