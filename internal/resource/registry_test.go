package resource

import (
	"errors"
	"testing"
)

const mb = int64(1024 * 1024)

func TestDefineAndReserve(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Define("primary", 64*mb); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := registry.Define("primary", 64*mb); !errors.Is(err, ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}

	if err := registry.Reserve("primary", 32*mb); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	pool, err := registry.Get("primary")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pool.AllocatedBytes != 32*mb {
		t.Fatalf("expected 32MB allocated, got %d", pool.AllocatedBytes)
	}
	if pool.FreeBytes() != 32*mb {
		t.Fatalf("expected 32MB free, got %d", pool.FreeBytes())
	}
}

func TestReserveOvercommitLeavesPoolUntouched(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Define("primary", 64*mb); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := registry.Reserve("primary", 32*mb); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := registry.Reserve("primary", 34*mb); !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v", err)
	}
	pool, err := registry.Get("primary")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pool.AllocatedBytes != 32*mb {
		t.Fatalf("failed reserve must not change allocation, got %d", pool.AllocatedBytes)
	}
}

func TestReleaseRestoresCapacity(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Define("primary", 64*mb); err != nil {
		t.Fatalf("define: %v", err)
	}
	if err := registry.Reserve("primary", 32*mb); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := registry.Release("primary", 32*mb); err != nil {
		t.Fatalf("release: %v", err)
	}

	pool, err := registry.Get("primary")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pool.AllocatedBytes != 0 {
		t.Fatalf("expected empty pool after release, got %d", pool.AllocatedBytes)
	}

	if err := registry.Reserve("primary", 34*mb); err != nil {
		t.Fatalf("expected reserve to succeed after release: %v", err)
	}
}

func TestUnknownPool(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Reserve("missing", mb); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
	if err := registry.Release("missing", mb); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
	if _, err := registry.Get("missing"); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestListSortedByName(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"secondary", "primary"} {
		if err := registry.Define(name, 64*mb); err != nil {
			t.Fatalf("define %s: %v", name, err)
		}
	}
	pools := registry.List()
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0].Name != "primary" || pools[1].Name != "secondary" {
		t.Fatalf("expected sorted pool listing, got %v", pools)
	}
}
