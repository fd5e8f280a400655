package store

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type Memory struct {
	mu    sync.RWMutex
	tiers map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{tiers: make(map[string]map[string]string)}
}

func (m *Memory) Get(_ context.Context, tierName, key string) (string, bool, error) {
	tierName = strings.TrimSpace(tierName)
	key = strings.TrimSpace(key)
	if tierName == "" || key == "" {
		return "", false, errors.New("tier name and key are required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, ok := m.tiers[tierName]
	if !ok {
		return "", false, nil
	}
	value, ok := entries[key]
	return value, ok, nil
}

func (m *Memory) Put(_ context.Context, tierName, key, value string) error {
	tierName = strings.TrimSpace(tierName)
	key = strings.TrimSpace(key)
	if tierName == "" || key == "" {
		return errors.New("tier name and key are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.tiers[tierName]
	if !ok {
		entries = make(map[string]string)
		m.tiers[tierName] = entries
	}
	entries[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, tierName, key string) error {
	tierName = strings.TrimSpace(tierName)
	key = strings.TrimSpace(key)
	if tierName == "" || key == "" {
		return errors.New("tier name and key are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entries, ok := m.tiers[tierName]; ok {
		delete(entries, key)
	}
	return nil
}

func (m *Memory) DropTier(_ context.Context, tierName string) error {
	tierName = strings.TrimSpace(tierName)
	if tierName == "" {
		return errors.New("tier name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tiers, tierName)
	return nil
}
