//go:build !integration

package redis

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memClient struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Duration
}

func newMemClient() *memClient {
	return &memClient{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *memClient) Ping(context.Context) error { return nil }
func (m *memClient) Set(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (m *memClient) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return true, nil
}
func (m *memClient) Get(context.Context, string) (string, error) { return "", Nil }
func (m *memClient) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}
func (m *memClient) Expire(_ context.Context, key string, d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = d
	return nil
}
func (m *memClient) Del(context.Context, ...string) error { return nil }
func (m *memClient) Close() error                          { return nil }

func TestRateLimiterAllow(t *testing.T) {
	cli := newMemClient()
	rl := NewRateLimiter(cli)
	key := UserRouteKey(42, "payments")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	ok, _ := rl.Allow(ctx, key, 3, time.Minute)
	if ok {
		t.Error("fourth request within the window should be rejected")
	}
	if cli.expires[key] != time.Minute {
		t.Errorf("expected window to be set on first hit, got %v", cli.expires[key])
	}
	if key != "rate_limit:42:payments" {
		t.Errorf("unexpected key format %q", key)
	}
}
