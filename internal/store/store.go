package store

import "context"

// Store holds cached entries per tier. It is the storage engine boundary:
// the coordinator only ever drops whole tiers through it, clients read and
// write individual entries through the data-path handlers.
type Store interface {
	Get(ctx context.Context, tierName, key string) (string, bool, error)
	Put(ctx context.Context, tierName, key, value string) error
	Remove(ctx context.Context, tierName, key string) error

	// DropTier reclaims every entry the tier holds. Called by destroy after
	// the lease set is proven empty.
	DropTier(ctx context.Context, tierName string) error
}
