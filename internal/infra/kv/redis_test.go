package kv

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(context.Background(), "http://localhost:6379", zap.NewNop()); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
}

// TestDeduper_Redis runs against a real server when TEST_REDIS_URL is set.
func TestDeduper_Redis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, url, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	prefix := fmt.Sprintf("test:webhook:%d:", time.Now().UnixNano())
	d := NewDeduper(client, prefix, time.Minute)
	t.Cleanup(func() { client.Del(context.Background(), prefix+"evt_1", prefix+"evt_short") })

	if err := d.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	seen, err := d.Seen(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("fresh event: seen=%v err=%v", seen, err)
	}
	if err := d.Mark(ctx, "evt_1"); err != nil {
		t.Fatal(err)
	}
	if seen, _ = d.Seen(ctx, "evt_1"); !seen {
		t.Error("expected marked event to be seen")
	}
	if seen, _ = d.Seen(ctx, "evt_2"); seen {
		t.Error("unrelated event reported as seen")
	}

	ttl, err := client.TTL(ctx, prefix+"evt_1").Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected ttl within a minute, got %v", ttl)
	}

	short := NewDeduper(client, prefix, 50*time.Millisecond)
	if err := short.Mark(ctx, "evt_short"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if seen, _ = short.Seen(ctx, "evt_short"); seen {
		t.Error("expected event to expire after ttl")
	}
}
