package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"repair-marketplace/internal/config"
	"repair-marketplace/internal/logger"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/go-redis/redis/v8"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	return &Client{client: rdb, log: log}, mr, context.Background()
}

func TestConnectSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	defer mr.Close()
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.RedisConfig{Host: "127.0.0.1", Port: mr.Port(), DB: 0}

	client, err := Connect(cfg, log)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestConnectFailure(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.RedisConfig{Host: "127.0.0.1", Port: "0", DB: 0}
	if _, err := Connect(cfg, log); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestCloseNil(t *testing.T) {
	var client *Client
	if err := client.Close(); err != nil {
		t.Fatalf("expected nil error on nil client close, got %v", err)
	}
}

func TestGenerateKey(t *testing.T) {
	key := GenerateKey(KeyPrefixFeeRules, "active")
	if key != "fee_rules:active" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestSetGetDelete(t *testing.T) {
	client, mr, ctx := newTestClient(t)

	type payload struct {
		Value string
	}

	val := payload{Value: "data"}
	if err := client.Set(ctx, "key1", val, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got payload
	if err := client.Get(ctx, "key1", &got); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Value != val.Value {
		t.Fatalf("unexpected value: %+v", got)
	}
	if ttl := mr.TTL("key1"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	if err := client.Delete(ctx, "key1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if mr.Exists("key1") {
		t.Fatalf("expected key removed")
	}
}

func TestGetMissingKey(t *testing.T) {
	client, _, ctx := newTestClient(t)
	var dest struct{}
	err := client.Get(ctx, "absent", &dest)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestGetExpiredKey(t *testing.T) {
	client, mr, ctx := newTestClient(t)
	if err := client.Set(ctx, "snapshot", []int{1, 2}, time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	var dest []int
	if err := client.Get(ctx, "snapshot", &dest); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss after expiry, got %v", err)
	}
}

func TestGetCorruptedValue(t *testing.T) {
	client, mr, ctx := newTestClient(t)
	_ = mr.Set("broken", "{not-json")

	var dest map[string]string
	err := client.Get(ctx, "broken", &dest)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDeleteByPrefix(t *testing.T) {
	client, mr, ctx := newTestClient(t)

	_ = mr.Set("fee_rules:active", "a")
	_ = mr.Set("fee_rules:all", "b")
	_ = mr.Set("other:3", "c")

	if err := client.DeleteByPrefix(ctx, KeyPrefixFeeRules); err != nil {
		t.Fatalf("delete by prefix failed: %v", err)
	}

	if mr.Exists("fee_rules:active") || mr.Exists("fee_rules:all") {
		t.Fatalf("expected fee rule keys removed")
	}
	if !mr.Exists("other:3") {
		t.Fatalf("expected other key kept")
	}

	if err := client.DeleteByPrefix(ctx, "missing"); err != nil {
		t.Fatalf("expected no error for empty prefix match, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	client, mr, ctx := newTestClient(t)
	if err := client.Health(ctx); err != nil {
		t.Fatalf("health failed: %v", err)
	}

	mr.Close()
	if err := client.Health(ctx); err == nil {
		t.Fatalf("expected health error after shutdown")
	}

	var nilClient *Client
	if err := nilClient.Health(ctx); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
