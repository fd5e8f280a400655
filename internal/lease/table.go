package lease

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease records that one client is currently attached to one tier. A lease
// never owns tier data; it exists purely so destroy can refuse to run while
// anyone is attached.
type Lease struct {
	ID        string    `json:"id"`
	TierName  string    `json:"tier_name"`
	ClientID  string    `json:"client_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// Table maps (tier name, client identity) to the active lease and keeps a
// per-client index so disconnect can release exactly that client's leases.
type Table struct {
	mu       sync.RWMutex
	byTier   map[string]map[string]Lease
	byClient map[string]map[string]struct{}
}

func NewTable() *Table {
	return &Table{
		byTier:   make(map[string]map[string]Lease),
		byClient: make(map[string]map[string]struct{}),
	}
}

// Grant attaches clientID to tierName. Granting an attachment the client
// already holds returns the existing lease unchanged.
func (t *Table) Grant(tierName, clientID string) (Lease, error) {
	tierName = strings.TrimSpace(tierName)
	clientID = strings.TrimSpace(clientID)
	if tierName == "" {
		return Lease{}, errors.New("tier name is required")
	}
	if clientID == "" {
		return Lease{}, errors.New("client id is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	holders, ok := t.byTier[tierName]
	if !ok {
		holders = make(map[string]Lease)
		t.byTier[tierName] = holders
	}
	if existing, ok := holders[clientID]; ok {
		return existing, nil
	}

	granted := Lease{
		ID:        "lease_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		TierName:  tierName,
		ClientID:  clientID,
		GrantedAt: time.Now().UTC(),
	}
	holders[clientID] = granted

	tiers, ok := t.byClient[clientID]
	if !ok {
		tiers = make(map[string]struct{})
		t.byClient[clientID] = tiers
	}
	tiers[tierName] = struct{}{}

	return granted, nil
}

// Revoke removes clientID's lease on tierName if one exists. Revoking an
// absent lease is a no-op.
func (t *Table) Revoke(tierName, clientID string) bool {
	tierName = strings.TrimSpace(tierName)
	clientID = strings.TrimSpace(clientID)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.revokeLocked(tierName, clientID)
}

// RevokeClient removes every lease held by clientID and returns the removed
// leases, sorted by tier name.
func (t *Table) RevokeClient(clientID string) []Lease {
	clientID = strings.TrimSpace(clientID)

	t.mu.Lock()
	defer t.mu.Unlock()

	tiers, ok := t.byClient[clientID]
	if !ok {
		return nil
	}

	removed := make([]Lease, 0, len(tiers))
	for tierName := range tiers {
		if holders, ok := t.byTier[tierName]; ok {
			if held, ok := holders[clientID]; ok {
				removed = append(removed, held)
			}
		}
		t.revokeLocked(tierName, clientID)
	}
	sort.Slice(removed, func(i, j int) bool {
		return removed[i].TierName < removed[j].TierName
	})
	return removed
}

func (t *Table) revokeLocked(tierName, clientID string) bool {
	holders, ok := t.byTier[tierName]
	if !ok {
		return false
	}
	if _, ok := holders[clientID]; !ok {
		return false
	}
	delete(holders, clientID)
	if len(holders) == 0 {
		delete(t.byTier, tierName)
	}
	if tiers, ok := t.byClient[clientID]; ok {
		delete(tiers, tierName)
		if len(tiers) == 0 {
			delete(t.byClient, clientID)
		}
	}
	return true
}

func (t *Table) Has(tierName, clientID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	holders, ok := t.byTier[strings.TrimSpace(tierName)]
	if !ok {
		return false
	}
	_, ok = holders[strings.TrimSpace(clientID)]
	return ok
}

func (t *Table) Count(tierName string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byTier[strings.TrimSpace(tierName)])
}

// Holders returns the client identities attached to tierName, sorted.
func (t *Table) Holders(tierName string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	holders := t.byTier[strings.TrimSpace(tierName)]
	clients := make([]string, 0, len(holders))
	for clientID := range holders {
		clients = append(clients, clientID)
	}
	sort.Strings(clients)
	return clients
}

// TiersOf returns the tier names clientID is attached to, sorted.
func (t *Table) TiersOf(clientID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tiers := t.byClient[strings.TrimSpace(clientID)]
	names := make([]string, 0, len(tiers))
	for tierName := range tiers {
		names = append(names, tierName)
	}
	sort.Strings(names)
	return names
}
