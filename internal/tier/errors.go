package tier

import (
	"errors"
	"fmt"
)

var (
	ErrTierNotFound = errors.New("tier not found")
	ErrTierExists   = errors.New("tier already exists")

	// ErrTierBusy is the errors.Is target for BusyError.
	ErrTierBusy = errors.New("tier busy")
)

// BusyError reports a destroy rejected because clients are still attached.
// It always names the busy tier so operators can tell which one to drain.
type BusyError struct {
	Tier   string
	Leases int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("cannot destroy tier %q: %d active lease(s)", e.Tier, e.Leases)
}

func (e *BusyError) Is(target error) bool {
	return target == ErrTierBusy
}
