package coordinator

// Notifier pushes state-change events to connected clients. Delivery is
// best-effort: a handle that misses an event discovers the stale state on
// its next operation instead.
type Notifier interface {
	TierDestroyed(tierName string)
	LeaseRevoked(tierName, clientID string)
}

type noopNotifier struct{}

func (noopNotifier) TierDestroyed(string) {}

func (noopNotifier) LeaseRevoked(string, string) {}

func NopNotifier() Notifier { return noopNotifier{} }
