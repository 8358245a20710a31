package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/appcore/component"
	"github.com/kbukum/appcore/logger"
)

func miniConfig(t *testing.T, mini *miniredis.Miniredis) Config {
	t.Helper()
	port, err := strconv.Atoi(mini.Port())
	if err != nil {
		t.Fatalf("miniredis port: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Host = mini.Host()
	cfg.Port = port
	return cfg
}

func newTestClient(t *testing.T, prefix string) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	cfg := miniConfig(t, mini)
	cfg.KeyPrefix = prefix
	client, err := New(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mini
}

type testState struct {
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("redis should be disabled by default")
	}
	if cfg.Addr() != "redis:6379" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config should validate: %v", err)
	}

	cfg.Enabled = true
	cfg.MinIdleConns = 20
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when min idle exceeds pool size")
	}
}

func TestNewDisabled(t *testing.T) {
	if _, err := New(DefaultConfig(), logger.NewNop()); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestClientKeyPrefix(t *testing.T) {
	client, mini := newTestClient(t, "app")
	ctx := context.Background()

	if err := client.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := mini.Get("app:k"); got != "v" {
		t.Errorf("expected prefixed key app:k, got %q", got)
	}
	n, err := client.Exists(ctx, "k", "missing")
	if err != nil || n != 1 {
		t.Errorf("Exists = %d, %v", n, err)
	}
	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mini.Exists("app:k") {
		t.Error("key should be deleted")
	}
}

func TestTypedStoreSaveAndLoad(t *testing.T) {
	client, _ := newTestClient(t, "")
	store := NewTypedStore[testState](client, "test")
	ctx := context.Background()

	state := testState{Count: 5, Tags: []string{"a", "b"}}
	if err := store.Save(ctx, "k1", &state, 0); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil || got.Count != 5 || len(got.Tags) != 2 {
		t.Fatalf("expected Count=5, Tags=2, got %+v", got)
	}
}

func TestTypedStoreLoadMissing(t *testing.T) {
	client, _ := newTestClient(t, "")
	store := NewTypedStore[testState](client, "test")

	got, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("missing key should not error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestTypedStoreTTLAndDelete(t *testing.T) {
	client, mini := newTestClient(t, "svc")
	store := NewTypedStore[testState](client, "status")
	ctx := context.Background()

	if err := store.Save(ctx, "latest", &testState{Count: 1}, time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mini.TTL("svc:status:latest"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mini.FastForward(2 * time.Minute)
	if got, _ := store.Load(ctx, "latest"); got != nil {
		t.Error("expected key to expire")
	}

	_ = store.Save(ctx, "latest", &testState{Count: 2}, 0)
	if err := store.Delete(ctx, "latest"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := store.Load(ctx, "latest"); got != nil {
		t.Error("expected key to be deleted")
	}
}

func TestGetJSONSetJSON(t *testing.T) {
	client, _ := newTestClient(t, "")
	ctx := context.Background()

	if err := client.SetJSON(ctx, "json-key", testState{Count: 10}, 0); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}
	var got testState
	if err := client.GetJSON(ctx, "json-key", &got); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if got.Count != 10 {
		t.Errorf("expected Count=10, got %+v", got)
	}

	if err := client.GetJSON(ctx, "missing", &got); !IsNil(err) {
		t.Errorf("expected redis nil for missing key, got %v", err)
	}
}

func TestComponentLifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	comp := NewComponent(miniConfig(t, mini), logger.NewNop())
	ctx := context.Background()

	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %+v", h)
	}

	mini.Close()
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy after server stop, got %s", h.Status)
	}

	if err := comp.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestComponentStartFailsWhenUnreachable(t *testing.T) {
	mini := miniredis.RunT(t)
	cfg := miniConfig(t, mini)
	cfg.MaxRetries = -1
	cfg.DialTimeout = 200 * time.Millisecond
	mini.Close()

	comp := NewComponent(cfg, logger.NewNop())
	if err := comp.Start(context.Background()); err == nil {
		t.Error("expected start to fail when redis is unreachable")
	}
	if comp.Client() != nil {
		t.Error("client should not be kept after a failed start")
	}
}
