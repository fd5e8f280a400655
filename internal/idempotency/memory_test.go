package idempotency

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLookupAfterSave(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, ok, err := store.Lookup(ctx, "create-tier", "req-1"); err != nil || ok {
		t.Fatalf("expected empty lookup, ok=%v err=%v", ok, err)
	}

	saved := Result{StatusCode: 201, Body: []byte(`{"name":"hot-tier"}`)}
	if err := store.Save(ctx, "create-tier", "req-1", saved, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := store.Lookup(ctx, "create-tier", "req-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if got.StatusCode != 201 || string(got.Body) != `{"name":"hot-tier"}` {
		t.Fatalf("unexpected result: %+v", got)
	}

	// the same key in another scope is a separate request
	if _, ok, err := store.Lookup(ctx, "destroy-tier", "req-1"); err != nil || ok {
		t.Fatalf("expected miss in other scope, ok=%v err=%v", ok, err)
	}
}

func TestMemoryClaimExcludesConcurrentRetries(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "create-tier", "req-1", "owner-a", time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to win, claimed=%v err=%v", claimed, err)
	}
	claimed, err = store.Claim(ctx, "create-tier", "req-1", "owner-b", time.Minute)
	if err != nil || claimed {
		t.Fatalf("expected second claim to lose, claimed=%v err=%v", claimed, err)
	}

	// only the owner may release
	if err := store.Release(ctx, "create-tier", "req-1", "owner-b"); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if claimed, _ := store.Claim(ctx, "create-tier", "req-1", "owner-c", time.Minute); claimed {
		t.Fatal("claim should still be held after non-owner release")
	}

	if err := store.Release(ctx, "create-tier", "req-1", "owner-a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if claimed, _ := store.Claim(ctx, "create-tier", "req-1", "owner-c", time.Minute); !claimed {
		t.Fatal("expected claim to succeed after owner release")
	}
}

func TestMemoryRejectsBlankScopeOrKey(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, _, err := store.Lookup(ctx, "", "req-1"); err == nil {
		t.Fatal("expected error for blank scope")
	}
	if _, err := store.Claim(ctx, "create-tier", "  ", "owner", time.Minute); err == nil {
		t.Fatal("expected error for blank key")
	}
	if _, err := store.Claim(ctx, "create-tier", "req-1", "", time.Minute); err == nil {
		t.Fatal("expected error for blank owner")
	}
}
