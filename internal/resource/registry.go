package resource

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	ErrPoolNotFound         = errors.New("pool not found")
	ErrPoolExists           = errors.New("pool already defined")
	ErrInsufficientCapacity = errors.New("insufficient pool capacity")
)

// Pool is one finite named byte-capacity unit on the coordinator, shared
// across tiers. AllocatedBytes never exceeds CapacityBytes.
type Pool struct {
	Name           string `json:"name"`
	CapacityBytes  int64  `json:"capacity_bytes"`
	AllocatedBytes int64  `json:"allocated_bytes"`
}

func (p Pool) FreeBytes() int64 {
	return p.CapacityBytes - p.AllocatedBytes
}

type Registry struct {
	mu    sync.RWMutex
	pools map[string]Pool
}

func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]Pool)}
}

// Define registers a pool at boot. Redefining an existing pool is an error;
// capacity is fixed for the life of the process.
func (r *Registry) Define(name string, capacityBytes int64) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("pool name is required")
	}
	if capacityBytes <= 0 {
		return errors.New("pool capacity must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[name]; ok {
		return ErrPoolExists
	}
	r.pools[name] = Pool{Name: name, CapacityBytes: capacityBytes}
	return nil
}

// Reserve debits sizeBytes from the named pool, or leaves it untouched and
// reports why it could not.
func (r *Registry) Reserve(name string, sizeBytes int64) error {
	name = strings.TrimSpace(name)
	if sizeBytes <= 0 {
		return errors.New("reservation size must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[name]
	if !ok {
		return ErrPoolNotFound
	}
	if pool.FreeBytes() < sizeBytes {
		return ErrInsufficientCapacity
	}
	pool.AllocatedBytes += sizeBytes
	r.pools[name] = pool
	return nil
}

// Release credits sizeBytes back to the named pool.
func (r *Registry) Release(name string, sizeBytes int64) error {
	name = strings.TrimSpace(name)
	if sizeBytes <= 0 {
		return errors.New("release size must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	pool, ok := r.pools[name]
	if !ok {
		return ErrPoolNotFound
	}
	pool.AllocatedBytes -= sizeBytes
	if pool.AllocatedBytes < 0 {
		pool.AllocatedBytes = 0
	}
	r.pools[name] = pool
	return nil
}

func (r *Registry) Get(name string) (Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[strings.TrimSpace(name)]
	if !ok {
		return Pool{}, ErrPoolNotFound
	}
	return pool, nil
}

func (r *Registry) List() []Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]Pool, 0, len(r.pools))
	for _, pool := range r.pools {
		pools = append(pools, pool)
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Name < pools[j].Name
	})
	return pools
}
