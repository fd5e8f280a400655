package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/VenkatGGG/tiercoord/internal/tier"
)

// Catalog is the durable record of tier reservations. The coordinator writes
// a row when a tier is created and deletes it on destroy, so a restarted
// coordinator can rebuild its pool accounting before serving requests.
// Lease state is deliberately not persisted: leases die with the process
// that granted them.
type Catalog interface {
	SaveTier(ctx context.Context, record tier.Record) error
	DeleteTier(ctx context.Context, name string) error
	ListTiers(ctx context.Context) ([]tier.Record, error)
}

type Memory struct {
	mu    sync.RWMutex
	items map[string]tier.Record
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]tier.Record)}
}

func (m *Memory) SaveTier(_ context.Context, record tier.Record) error {
	name := strings.TrimSpace(record.Name)
	if name == "" {
		return errors.New("tier name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[name] = record
	return nil
}

func (m *Memory) DeleteTier(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, strings.TrimSpace(name))
	return nil
}

func (m *Memory) ListTiers(_ context.Context) ([]tier.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]tier.Record, 0, len(m.items))
	for _, record := range m.items {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}
