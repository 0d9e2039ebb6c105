package ratelimit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoginLimiterDisabledWithoutRedis(t *testing.T) {
	limiter := NewLoginLimiter(LoginLimiterParams{Log: zap.NewNop()})

	if limiter.Enabled() {
		t.Fatal("limiter must report disabled without a redis client")
	}
	if res := limiter.AllowIP(context.Background(), "203.0.113.7"); !res.Allowed {
		t.Fatal("disabled limiter must allow every request")
	}
	if res := limiter.AllowAccount(context.Background(), "alice@example.com"); !res.Allowed {
		t.Fatal("disabled limiter must allow every request")
	}
}

func TestNilLoginLimiterAllows(t *testing.T) {
	var limiter *LoginLimiter
	if limiter.Enabled() {
		t.Fatal("nil limiter must report disabled")
	}
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	if _, err := bucket.Allow(context.Background(), "key", 1, 1); err == nil {
		t.Fatal("nil bucket must error")
	}
}

func TestDefaultBucketTTL(t *testing.T) {
	if ttl := defaultBucketTTL(0.5, 10); ttl != 40*time.Second {
		t.Fatalf("expected 40s ttl for burst 10 at 0.5/s, got %v", ttl)
	}
	if ttl := defaultBucketTTL(0, 0); ttl != time.Second {
		t.Fatalf("expected 1s floor, got %v", ttl)
	}
}
