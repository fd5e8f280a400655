package tier

import (
	"errors"
	"strings"
	"time"
)

type State string

const (
	StateCreated    State = "created"
	StateAttached   State = "attached"
	StateDestroying State = "destroying"
)

type Consistency string

const (
	ConsistencyStrong   Consistency = "strong"
	ConsistencyEventual Consistency = "eventual"
)

// Record is the coordinator-side record of one named cache tier. The
// reservation stays debited from the backing pool for the record's whole
// lifetime; lease bookkeeping lives in the lease table, not here.
type Record struct {
	Name          string      `json:"name"`
	PoolName      string      `json:"pool_name"`
	ReservedBytes int64       `json:"reserved_bytes"`
	Consistency   Consistency `json:"consistency"`
	State         State       `json:"state"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Info is the admin/client view of a record: the record plus its live
// lease count.
type Info struct {
	Name          string      `json:"name"`
	PoolName      string      `json:"pool_name"`
	ReservedBytes int64       `json:"reserved_bytes"`
	Consistency   Consistency `json:"consistency"`
	State         State       `json:"state"`
	LeaseCount    int         `json:"lease_count"`
	CreatedAt     time.Time   `json:"created_at"`
}

func ParseConsistency(value string) (Consistency, error) {
	raw := strings.TrimSpace(strings.ToLower(value))
	if raw == "" {
		return ConsistencyEventual, nil
	}
	level := Consistency(raw)
	switch level {
	case ConsistencyStrong, ConsistencyEventual:
		return level, nil
	default:
		return "", errors.New("invalid consistency level")
	}
}

func ParseState(value string) (State, error) {
	raw := strings.TrimSpace(strings.ToLower(value))
	state := State(raw)
	switch state {
	case StateCreated, StateAttached, StateDestroying:
		return state, nil
	default:
		return "", errors.New("invalid tier state")
	}
}
