// Package idempotency deduplicates retried lifecycle requests. A client that
// resends a create or destroy with the same key gets the recorded outcome of
// the first attempt instead of a second execution.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Result is the recorded outcome of a completed lifecycle request.
type Result struct {
	StatusCode int    `json:"status_code"`
	Body       []byte `json:"body"`
}

// Store records request outcomes keyed by (scope, key). Claim takes a
// short-lived lock so only one of several concurrent retries executes;
// the others observe the claim and back off until a Result is saved.
type Store interface {
	Lookup(ctx context.Context, scope, key string) (Result, bool, error)
	Claim(ctx context.Context, scope, key, owner string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, scope, key string, result Result, ttl time.Duration) error
	Release(ctx context.Context, scope, key, owner string) error
}

const (
	defaultClaimTTL  = 30 * time.Second
	defaultResultTTL = 24 * time.Hour
)

// compoundKey hashes the caller-supplied key so arbitrary header values are
// safe as map and redis keys.
func compoundKey(scope, key string) (string, error) {
	scope = strings.TrimSpace(scope)
	key = strings.TrimSpace(key)
	if scope == "" {
		return "", errors.New("scope is required")
	}
	if key == "" {
		return "", errors.New("key is required")
	}
	sum := sha256.Sum256([]byte(scope + "|" + key))
	return scope + ":" + hex.EncodeToString(sum[:]), nil
}
