package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/VenkatGGG/tiercoord/internal/tier"
)

func TestMemorySaveListDelete(t *testing.T) {
	cat := NewMemory()
	ctx := context.Background()

	now := time.Now().UTC()
	records := []tier.Record{
		{Name: "tier-b", PoolName: "primary", ReservedBytes: 1024, Consistency: tier.ConsistencyStrong, State: tier.StateCreated, CreatedAt: now, UpdatedAt: now},
		{Name: "tier-a", PoolName: "primary", ReservedBytes: 2048, Consistency: tier.ConsistencyEventual, State: tier.StateCreated, CreatedAt: now, UpdatedAt: now},
	}
	for _, record := range records {
		if err := cat.SaveTier(ctx, record); err != nil {
			t.Fatalf("save %s: %v", record.Name, err)
		}
	}

	listed, err := cat.ListTiers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 records, got %d", len(listed))
	}
	if listed[0].Name != "tier-a" || listed[1].Name != "tier-b" {
		t.Fatalf("expected sorted listing, got %v", listed)
	}

	if err := cat.DeleteTier(ctx, "tier-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	listed, err = cat.ListTiers(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(listed) != 1 || listed[0].Name != "tier-b" {
		t.Fatalf("expected only tier-b, got %v", listed)
	}

	// deleting an absent record is a no-op
	if err := cat.DeleteTier(ctx, "tier-a"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemorySaveRequiresName(t *testing.T) {
	cat := NewMemory()
	if err := cat.SaveTier(context.Background(), tier.Record{}); err == nil {
		t.Fatalf("expected error for empty tier name")
	}
}
