package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/VenkatGGG/tiercoord/internal/catalog"
	"github.com/VenkatGGG/tiercoord/internal/lease"
	"github.com/VenkatGGG/tiercoord/internal/resource"
	"github.com/VenkatGGG/tiercoord/internal/store"
	"github.com/VenkatGGG/tiercoord/internal/tier"
)

// ErrNotAttached rejects data-path requests from clients that hold no lease
// on the tier they are addressing.
var ErrNotAttached = errors.New("client not attached to tier")

// Service is the authoritative state machine for tier lifecycle. Every
// lifecycle operation on a given tier name is serialized by a per-tier
// mutex, so unrelated tiers never block each other; inside that scope the
// state mutex pairs each pool debit/credit with the record transition it
// belongs to, so no observer sees one without the other.
type Service struct {
	pools    *resource.Registry
	leases   *lease.Table
	entries  store.Store
	catalog  catalog.Catalog
	notifier Notifier
	logger   *log.Logger

	mu    sync.RWMutex
	tiers map[string]*tier.Record

	locksMu   sync.Mutex
	tierLocks map[string]*sync.Mutex
}

type CreateInput struct {
	TierName    string
	PoolName    string
	SizeBytes   int64
	Consistency tier.Consistency
}

func NewService(pools *resource.Registry, entries store.Store, cat catalog.Catalog, notifier Notifier, logger *log.Logger) *Service {
	if entries == nil {
		entries = store.NewMemory()
	}
	if cat == nil {
		cat = catalog.NewMemory()
	}
	if notifier == nil {
		notifier = NopNotifier()
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		pools:     pools,
		leases:    lease.NewTable(),
		entries:   entries,
		catalog:   cat,
		notifier:  notifier,
		logger:    logger,
		tiers:     make(map[string]*tier.Record),
		tierLocks: make(map[string]*sync.Mutex),
	}
}

// Restore rebuilds tier records and pool reservations from the catalog.
// Called once at boot, before the service takes requests. A record whose
// pool no longer fits is skipped with a log line rather than failing boot.
func (s *Service) Restore(ctx context.Context) error {
	records, err := s.catalog.ListTiers(ctx)
	if err != nil {
		return fmt.Errorf("load tier catalog: %w", err)
	}

	for _, record := range records {
		restored := record
		if err := s.pools.Reserve(restored.PoolName, restored.ReservedBytes); err != nil {
			s.logger.Printf("restore skipped tier: tier=%s pool=%s err=%v", restored.Name, restored.PoolName, err)
			continue
		}
		restored.State = tier.StateCreated

		s.mu.Lock()
		s.tiers[restored.Name] = &restored
		s.mu.Unlock()

		s.logger.Printf("tier restored: tier=%s pool=%s reserved=%s", restored.Name, restored.PoolName, humanize.IBytes(uint64(restored.ReservedBytes)))
	}
	return nil
}

// Create reserves sizeBytes in the backing pool and records the tier, as one
// atomic transition. On any failure the pool and record tables are exactly
// as they were before the call.
func (s *Service) Create(ctx context.Context, input CreateInput) (tier.Info, error) {
	name := strings.TrimSpace(input.TierName)
	poolName := strings.TrimSpace(input.PoolName)
	if name == "" {
		return tier.Info{}, errors.New("tier name is required")
	}
	if poolName == "" {
		return tier.Info{}, errors.New("pool name is required")
	}
	if input.SizeBytes <= 0 {
		return tier.Info{}, errors.New("size must be positive")
	}
	level, err := tier.ParseConsistency(string(input.Consistency))
	if err != nil {
		return tier.Info{}, err
	}

	unlock := s.lockTier(name)
	defer unlock()

	now := time.Now().UTC()
	record := &tier.Record{
		Name:          name,
		PoolName:      poolName,
		ReservedBytes: input.SizeBytes,
		Consistency:   level,
		State:         tier.StateCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	if _, ok := s.tiers[name]; ok {
		s.mu.Unlock()
		return tier.Info{}, tier.ErrTierExists
	}
	if err := s.pools.Reserve(poolName, input.SizeBytes); err != nil {
		s.mu.Unlock()
		return tier.Info{}, err
	}
	s.tiers[name] = record
	s.mu.Unlock()

	if err := s.catalog.SaveTier(ctx, *record); err != nil {
		s.mu.Lock()
		delete(s.tiers, name)
		if releaseErr := s.pools.Release(poolName, input.SizeBytes); releaseErr != nil {
			s.logger.Printf("create rollback release failed: tier=%s pool=%s err=%v", name, poolName, releaseErr)
		}
		s.mu.Unlock()
		return tier.Info{}, fmt.Errorf("persist tier: %w", err)
	}

	s.logger.Printf("tier created: tier=%s pool=%s reserved=%s consistency=%s", name, poolName, humanize.IBytes(uint64(input.SizeBytes)), level)
	return s.infoFor(record), nil
}

// Attach grants clientID a lease on the tier. Attaching to a destroying or
// absent tier reports not-found; both look the same to a client.
func (s *Service) Attach(ctx context.Context, tierName, clientID string) (lease.Lease, tier.Info, error) {
	name := strings.TrimSpace(tierName)
	client := strings.TrimSpace(clientID)
	if name == "" {
		return lease.Lease{}, tier.Info{}, errors.New("tier name is required")
	}
	if client == "" {
		return lease.Lease{}, tier.Info{}, errors.New("client id is required")
	}

	unlock := s.lockTier(name)
	defer unlock()

	s.mu.Lock()
	record, ok := s.tiers[name]
	if !ok || record.State == tier.StateDestroying {
		s.mu.Unlock()
		return lease.Lease{}, tier.Info{}, tier.ErrTierNotFound
	}

	granted, err := s.leases.Grant(name, client)
	if err != nil {
		s.mu.Unlock()
		return lease.Lease{}, tier.Info{}, err
	}
	record.State = tier.StateAttached
	record.UpdatedAt = time.Now().UTC()
	info := s.infoFor(record)
	s.mu.Unlock()

	s.logger.Printf("tier attached: tier=%s client=%s leases=%d", name, client, info.LeaseCount)
	return granted, info, nil
}

// Detach releases clientID's lease on the tier. Detaching an absent lease,
// or an absent tier, is a no-op so retries are always safe.
func (s *Service) Detach(ctx context.Context, tierName, clientID string) error {
	name := strings.TrimSpace(tierName)
	client := strings.TrimSpace(clientID)
	if name == "" {
		return errors.New("tier name is required")
	}
	if client == "" {
		return errors.New("client id is required")
	}

	unlock := s.lockTier(name)
	defer unlock()

	s.mu.Lock()
	revoked := s.leases.Revoke(name, client)
	if record, ok := s.tiers[name]; ok && revoked {
		if s.leases.Count(name) == 0 && record.State == tier.StateAttached {
			record.State = tier.StateCreated
		}
		record.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	if revoked {
		s.logger.Printf("tier detached: tier=%s client=%s", name, client)
	}
	return nil
}

// Destroy removes the tier, reclaims its storage, and credits the
// reservation back to the pool. It is all-or-nothing: while any lease is
// held it fails busy and changes nothing. The per-tier lock stays held
// through reclamation, so an attach racing this call either completed
// before the busy-check or observes the tier as already gone.
func (s *Service) Destroy(ctx context.Context, tierName string) error {
	name := strings.TrimSpace(tierName)
	if name == "" {
		return errors.New("tier name is required")
	}

	unlock := s.lockTier(name)
	defer unlock()

	s.mu.Lock()
	record, ok := s.tiers[name]
	if !ok {
		s.mu.Unlock()
		return tier.ErrTierNotFound
	}
	if held := s.leases.Count(name); held > 0 {
		s.mu.Unlock()
		return &tier.BusyError{Tier: name, Leases: held}
	}
	record.State = tier.StateDestroying
	record.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	if err := s.entries.DropTier(ctx, name); err != nil {
		s.revertDestroy(record)
		return fmt.Errorf("reclaim tier storage: %w", err)
	}
	if err := s.catalog.DeleteTier(ctx, name); err != nil {
		s.revertDestroy(record)
		return fmt.Errorf("forget tier: %w", err)
	}

	s.mu.Lock()
	delete(s.tiers, name)
	if err := s.pools.Release(record.PoolName, record.ReservedBytes); err != nil {
		s.logger.Printf("destroy release failed: tier=%s pool=%s err=%v", name, record.PoolName, err)
	}
	s.mu.Unlock()

	s.notifier.TierDestroyed(name)
	s.logger.Printf("tier destroyed: tier=%s pool=%s released=%s", name, record.PoolName, humanize.IBytes(uint64(record.ReservedBytes)))
	return nil
}

func (s *Service) revertDestroy(record *tier.Record) {
	s.mu.Lock()
	record.State = tier.StateCreated
	record.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
}

// Disconnect releases every lease clientID holds, as if each had been
// detached, and tells any surviving connection about the revocations.
func (s *Service) Disconnect(ctx context.Context, clientID string) {
	client := strings.TrimSpace(clientID)
	if client == "" {
		return
	}

	tiers := s.leases.TiersOf(client)
	for _, tierName := range tiers {
		_ = s.Detach(ctx, tierName, client)
		s.notifier.LeaseRevoked(tierName, client)
	}
	if len(tiers) > 0 {
		s.logger.Printf("client disconnected: client=%s released=%d", client, len(tiers))
	}
}

// Authorize admits a data-path request: the tier must exist, must not be
// destroying, and the client must hold a lease on it. Returns the tier's
// consistency level so the data path can honor it. Data operations do not
// take the lifecycle lock.
func (s *Service) Authorize(tierName, clientID string) (tier.Consistency, error) {
	name := strings.TrimSpace(tierName)
	client := strings.TrimSpace(clientID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tiers[name]
	if !ok || record.State == tier.StateDestroying {
		return "", tier.ErrTierNotFound
	}
	if !s.leases.Has(name, client) {
		return "", ErrNotAttached
	}
	return record.Consistency, nil
}

// Store exposes the entry store to the data-path handlers.
func (s *Service) Store() store.Store {
	return s.entries
}

func (s *Service) GetTier(tierName string) (tier.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tiers[strings.TrimSpace(tierName)]
	if !ok {
		return tier.Info{}, tier.ErrTierNotFound
	}
	return s.infoFor(record), nil
}

func (s *Service) ListTiers() []tier.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]tier.Info, 0, len(s.tiers))
	for _, record := range s.tiers {
		infos = append(infos, s.infoFor(record))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Pools reports pool utilization. Reads go through the state mutex so a
// listing never observes a debit without its tier record or vice versa.
func (s *Service) Pools() []resource.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pools.List()
}

func (s *Service) infoFor(record *tier.Record) tier.Info {
	return tier.Info{
		Name:          record.Name,
		PoolName:      record.PoolName,
		ReservedBytes: record.ReservedBytes,
		Consistency:   record.Consistency,
		State:         record.State,
		LeaseCount:    s.leases.Count(record.Name),
		CreatedAt:     record.CreatedAt,
	}
}

// lockTier returns the unlock for the named tier's lifecycle mutex. Locks
// are created on first use and kept for the life of the process; the tier
// namespace is small and stable enough that reaping them is not worth the
// bookkeeping.
func (s *Service) lockTier(name string) func() {
	s.locksMu.Lock()
	l, ok := s.tierLocks[name]
	if !ok {
		l = &sync.Mutex{}
		s.tierLocks[name] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
