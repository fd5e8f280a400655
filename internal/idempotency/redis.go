package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the Store shared by a replicated coordinator deployment, so a
// retry landing on a different instance still sees the first outcome.
type Redis struct {
	client redis.Cmdable
	prefix string
}

func NewRedis(client redis.Cmdable, prefix string) *Redis {
	normalized := strings.TrimSpace(prefix)
	if normalized == "" {
		normalized = "tiercoord:idem"
	}
	return &Redis{client: client, prefix: normalized}
}

func (r *Redis) Lookup(ctx context.Context, scope, key string) (Result, bool, error) {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return Result{}, false, err
	}
	raw, err := r.client.Get(ctx, r.resultKey(compound)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, false, fmt.Errorf("decode idempotency result: %w", err)
	}
	return result, true, nil
}

func (r *Redis) Claim(ctx context.Context, scope, key, owner string, ttl time.Duration) (bool, error) {
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
	ok, err := r.client.SetNX(ctx, r.claimKey(compound), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

func (r *Redis) Save(ctx context.Context, scope, key string, result Result, ttl time.Duration) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode idempotency result: %w", err)
	}
	if err := r.client.Set(ctx, r.resultKey(compound), raw, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency save: %w", err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, scope, key, owner string) error {
	compound, err := compoundKey(scope, key)
	if err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("owner is required")
	}
	_, err = releaseClaimScript.Run(ctx, r.client, []string{r.claimKey(compound)}, owner).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (r *Redis) resultKey(compound string) string {
	return r.prefix + ":result:" + compound
}

func (r *Redis) claimKey(compound string) string {
	return r.prefix + ":claim:" + compound
}

// only the claim owner may release; an expired claim taken over by another
// retry must not be deleted out from under it
var releaseClaimScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if not existing then
  return 0
end
if existing == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
