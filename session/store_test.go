package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/room4-2/callintake/callflow"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// storeContract exercises the behavior every Store backend must share.
func storeContract(t *testing.T, store Store, clock *fakeClock) {
	ctx := context.Background()

	sess := callflow.NewSession("call-a", callflow.FlowRoofing, clock.now())
	if err := store.Create(ctx, &sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Version != 1 {
		t.Fatalf("version after create = %d, want 1", sess.Version)
	}
	dup := callflow.NewSession("call-a", callflow.FlowRoofing, clock.now())
	if err := store.Create(ctx, &dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate create err = %v", err)
	}

	got, err := store.Get(ctx, "call-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != callflow.StateGreeting || got.Flow != callflow.FlowRoofing {
		t.Fatalf("unexpected stored session %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing err = %v", err)
	}

	clock.advance(time.Minute)
	got.State = callflow.StateServiceType
	got.Data[callflow.FieldServiceType] = callflow.ServiceRepair
	if err := store.Update(ctx, &got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("version after update = %d, want 2", got.Version)
	}

	stale := got
	stale.Version = 1
	if err := store.Update(ctx, &stale); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale update err = %v", err)
	}

	missing := callflow.NewSession("missing", callflow.FlowRoofing, clock.now())
	if err := store.Update(ctx, &missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing err = %v", err)
	}

	reread, err := store.Get(ctx, "call-a")
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if reread.Data[callflow.FieldServiceType] != callflow.ServiceRepair || !reread.UpdatedAt.Equal(clock.now()) {
		t.Fatalf("update not persisted: %+v", reread)
	}

	other := callflow.NewSession("call-b", callflow.FlowPlumbing, clock.now())
	if err := store.Create(ctx, &other); err != nil {
		t.Fatalf("create b: %v", err)
	}
	if n, err := store.Count(ctx); err != nil || n != 2 {
		t.Fatalf("count = %d, %v", n, err)
	}

	clock.advance(10 * time.Minute)
	fresh := callflow.NewSession("call-c", callflow.FlowPlumbing, clock.now())
	if err := store.Create(ctx, &fresh); err != nil {
		t.Fatalf("create c: %v", err)
	}
	expired, err := store.Expire(ctx, clock.now().Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expired %v, want call-a and call-b", expired)
	}
	if _, err := store.Get(ctx, "call-c"); err != nil {
		t.Fatalf("fresh session reaped: %v", err)
	}

	if err := store.Delete(ctx, "call-c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "call-c"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("count after delete = %d", n)
	}
}

func TestMemoryStore(t *testing.T) {
	clock := newClock()
	store, err := NewStore(StoreTypeMemory, WithClock(clock.now))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	storeContract(t, store, clock)

	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := store.Get(context.Background(), "call-a"); !errors.Is(err, ErrClosed) {
		t.Fatalf("get after close err = %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := newMemoryStore(newClock().now)
	ctx := context.Background()
	sess := callflow.NewSession("call-a", callflow.FlowRoofing, time.Now())
	if err := store.Create(ctx, &sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := store.Get(ctx, "call-a")
	got.Data[callflow.FieldLocation] = "90210"

	again, _ := store.Get(ctx, "call-a")
	if again.Data.Has(callflow.FieldLocation) {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(StoreTypeRedis); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("redis without client err = %v", err)
	}
	if _, err := NewStore("postgres"); !errors.Is(err, ErrInvalidStoreType) {
		t.Fatalf("unknown type err = %v", err)
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	clock := newClock()
	prefix := "callintake-test:" + time.Now().Format("150405.000000") + ":"
	store, err := NewStore(StoreTypeRedis,
		WithRedisClient(client),
		WithRedisTTL(time.Hour),
		WithKeyPrefix(prefix),
		WithClock(clock.now),
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	// Count drops members older than the TTL relative to the store clock,
	// so the fake clock must stay close to the real one.
	clock.t = time.Now().UTC()
	storeContract(t, store, clock)
}
