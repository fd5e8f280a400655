package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/VenkatGGG/tiercoord/internal/api"
	"github.com/VenkatGGG/tiercoord/internal/catalog"
	"github.com/VenkatGGG/tiercoord/internal/coordinator"
	"github.com/VenkatGGG/tiercoord/internal/resource"
	"github.com/VenkatGGG/tiercoord/internal/store"
	"github.com/VenkatGGG/tiercoord/internal/tier"
)

const mb = int64(1024 * 1024)

func newCoordinatorServer(t *testing.T) *httptest.Server {
	t.Helper()
	pools := resource.NewRegistry()
	if err := pools.Define("primary-server-resource", 64*mb); err != nil {
		t.Fatalf("define pool: %v", err)
	}
	hub := api.NewHub(0, nil)
	coord := coordinator.NewService(pools, store.NewMemory(), catalog.NewMemory(), hub, nil)
	srv := api.NewServer(coord, hub, nil, "", nil)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func connect(t *testing.T, ts *httptest.Server, clientID string) *Handle {
	t.Helper()
	handle, err := Connect(context.Background(), ts.URL, Options{ClientID: clientID})
	if err != nil {
		t.Fatalf("connect %s: %v", clientID, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = handle.Close(ctx)
	})
	return handle
}

func mustCreate(t *testing.T, handle *Handle, name string, size int64, level tier.Consistency) {
	t.Helper()
	err := handle.CreateTier(context.Background(), CreateTierInput{
		TierName:    name,
		PoolName:    "primary-server-resource",
		SizeBytes:   size,
		Consistency: level,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
}

func TestDestroyTierWhenSingleClientIsConnected(t *testing.T) {
	ts := newCoordinatorServer(t)
	handle := connect(t, ts, "client-1")
	ctx := context.Background()

	mustCreate(t, handle, "clustered-cache", 32*mb, tier.ConsistencyStrong)
	cache, err := handle.Attach(ctx, "clustered-cache")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := cache.Put(ctx, "1", "One"); err != nil {
		t.Fatalf("put: %v", err)
	}

	if err := handle.DestroyTier(ctx, "clustered-cache"); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	// the local cache is gone with the tier
	if err := cache.Put(ctx, "2", "Two"); !errors.Is(err, ErrCacheUninitialized) {
		t.Fatalf("expected ErrCacheUninitialized, got %v", err)
	}
	if _, err := handle.Attach(ctx, "clustered-cache"); !errors.Is(err, tier.ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound on re-attach, got %v", err)
	}
}

func TestDestroyFreesUpTheAllocatedResource(t *testing.T) {
	ts := newCoordinatorServer(t)
	handle := connect(t, ts, "client-1")
	ctx := context.Background()

	mustCreate(t, handle, "clustered-cache", 32*mb, tier.ConsistencyStrong)

	err := handle.CreateTier(ctx, CreateTierInput{
		TierName:  "another-cache",
		PoolName:  "primary-server-resource",
		SizeBytes: 34 * mb,
	})
	if !errors.Is(err, resource.ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}

	if err := handle.DestroyTier(ctx, "clustered-cache"); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	mustCreate(t, handle, "another-cache", 34*mb, tier.ConsistencyEventual)
	cache, err := handle.Attach(ctx, "another-cache")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := cache.Put(ctx, "1", "One"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	value, ok, err := cache.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "One" {
		t.Fatalf("expected One, got %q ok=%v", value, ok)
	}
}

func TestDestroyTierWhenMultipleClientsConnected(t *testing.T) {
	ts := newCoordinatorServer(t)
	handle1 := connect(t, ts, "client-1")
	handle2 := connect(t, ts, "client-2")
	ctx := context.Background()

	mustCreate(t, handle1, "clustered-cache", 32*mb, tier.ConsistencyStrong)

	cache1, err := handle1.Attach(ctx, "clustered-cache")
	if err != nil {
		t.Fatalf("attach 1: %v", err)
	}
	cache2, err := handle2.Attach(ctx, "clustered-cache")
	if err != nil {
		t.Fatalf("attach 2: %v", err)
	}

	// client-2 is still attached, so client-1's destroy is rejected busy
	if err := handle1.DestroyTier(ctx, "clustered-cache"); !errors.Is(err, tier.ErrTierBusy) {
		t.Fatalf("expected ErrTierBusy, got %v", err)
	}

	// the destroyer's own cache closed when it detached for the destroy
	if err := cache1.Put(ctx, "1", "One"); !errors.Is(err, ErrCacheUninitialized) {
		t.Fatalf("expected ErrCacheUninitialized, got %v", err)
	}

	// the other client's cache is untouched by the failed destroy
	if _, ok, err := cache2.Get(ctx, "1"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := cache2.Put(ctx, "1", "One"); err != nil {
		t.Fatalf("put on cache2: %v", err)
	}
	value, ok, err := cache2.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get on cache2: %v", err)
	}
	if !ok || value != "One" {
		t.Fatalf("expected One, got %q ok=%v", value, ok)
	}

	// once client-2 detaches, the destroy goes through
	if err := handle2.Detach(ctx, "clustered-cache"); err != nil {
		t.Fatalf("detach 2: %v", err)
	}
	if err := handle1.DestroyTier(ctx, "clustered-cache"); err != nil {
		t.Fatalf("destroy after drain: %v", err)
	}
	if err := cache2.Put(ctx, "2", "Two"); !errors.Is(err, ErrCacheUninitialized) {
		t.Fatalf("expected ErrCacheUninitialized on cache2, got %v", err)
	}
}

func TestServerSideRevocationInvalidatesLocalCache(t *testing.T) {
	ts := newCoordinatorServer(t)
	admin := connect(t, ts, "admin-client")
	handle := connect(t, ts, "client-1")
	ctx := context.Background()

	mustCreate(t, admin, "clustered-cache", 32*mb, tier.ConsistencyStrong)
	cache, err := handle.Attach(ctx, "clustered-cache")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := cache.Put(ctx, "1", "One"); err != nil {
		t.Fatalf("put: %v", err)
	}

	// operator forcibly disconnects client-1; its lease is revoked server
	// side while the local cache object still exists
	if err := admin.ForceDisconnect(ctx, "client-1"); err != nil {
		t.Fatalf("force disconnect: %v", err)
	}

	// the cache fails on use: either the pushed revocation already closed
	// it, or the rejected data operation does
	deadline := time.Now().Add(3 * time.Second)
	for {
		err := cache.Put(ctx, "2", "Two")
		if errors.Is(err, ErrCacheUninitialized) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected ErrCacheUninitialized, got %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// with no leases left the tier can be destroyed
	if err := admin.DestroyTier(ctx, "clustered-cache"); err != nil {
		t.Fatalf("destroy: %v", err)
	}
}

func TestCloseReleasesEveryLease(t *testing.T) {
	ts := newCoordinatorServer(t)
	handle1 := connect(t, ts, "client-1")
	handle2 := connect(t, ts, "client-2")
	ctx := context.Background()

	mustCreate(t, handle1, "clustered-cache", 32*mb, tier.ConsistencyStrong)
	if _, err := handle1.Attach(ctx, "clustered-cache"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := handle2.DestroyTier(ctx, "clustered-cache"); !errors.Is(err, tier.ErrTierBusy) {
		t.Fatalf("expected ErrTierBusy, got %v", err)
	}

	if err := handle1.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := handle2.DestroyTier(ctx, "clustered-cache"); err != nil {
		t.Fatalf("expected destroy after close: %v", err)
	}
}

func TestEventualPutQueueSurvivesBursts(t *testing.T) {
	ts := newCoordinatorServer(t)
	handle := connect(t, ts, "client-1")
	ctx := context.Background()

	mustCreate(t, handle, "clustered-cache", 32*mb, tier.ConsistencyEventual)
	cache, err := handle.Attach(ctx, "clustered-cache")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if cache.Consistency() != tier.ConsistencyEventual {
		t.Fatalf("expected eventual tier, got %q", cache.Consistency())
	}

	for i := 0; i < 500; i++ {
		key := string(rune('a'+i%26)) + "-key"
		if err := cache.Put(ctx, key, "value"); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	value, ok, err := cache.Get(ctx, "a-key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || value != "value" {
		t.Fatalf("expected flushed value, got %q ok=%v", value, ok)
	}
}
