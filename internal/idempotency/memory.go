package idempotency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

type storedResult struct {
	result    Result
	expiresAt time.Time
}

type storedClaim struct {
	owner     string
	expiresAt time.Time
}

// Memory is the single-process Store used when no redis is configured.
type Memory struct {
	mu      sync.Mutex
	results map[string]storedResult
	claims  map[string]storedClaim
}

func NewMemory() *Memory {
	return &Memory{
		results: make(map[string]storedResult),
		claims:  make(map[string]storedClaim),
	}
}

func (m *Memory) Lookup(_ context.Context, scope, key string) (Result, bool, error) {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return Result{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.results[compound]
	if !ok {
		return Result{}, false, nil
	}
	if time.Now().UTC().After(stored.expiresAt) {
		delete(m.results, compound)
		return Result{}, false, nil
	}
	out := stored.result
	out.Body = append([]byte(nil), out.Body...)
	return out, true, nil
}

func (m *Memory) Claim(_ context.Context, scope, key, owner string, ttl time.Duration) (bool, error) {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return false, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return false, errors.New("owner is required")
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}

	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.claims[compound]; ok && now.Before(existing.expiresAt) {
		return false, nil
	}
	m.claims[compound] = storedClaim{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *Memory) Save(_ context.Context, scope, key string, result Result, ttl time.Duration) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = defaultResultTTL
	}

	cloned := result
	cloned.Body = append([]byte(nil), result.Body...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[compound] = storedResult{
		result:    cloned,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (m *Memory) Release(_ context.Context, scope, key, owner string) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("owner is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.claims[compound]; ok && existing.owner == owner {
		delete(m.claims, compound)
	}
	return nil
}
