package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/VenkatGGG/tiercoord/internal/tier"
	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	pools := s.coord.Pools()
	tiers := s.coord.ListTiers()

	stateCounts := map[string]int{
		string(tier.StateCreated):    0,
		string(tier.StateAttached):   0,
		string(tier.StateDestroying): 0,
	}
	totalLeases := 0
	for _, info := range tiers {
		stateCounts[string(info.State)]++
		totalLeases += info.LeaseCount
	}

	var b strings.Builder
	fmt.Fprintln(&b, "# HELP tiercoord_pool_capacity_bytes Total capacity per resource pool")
	fmt.Fprintln(&b, "# TYPE tiercoord_pool_capacity_bytes gauge")
	for _, pool := range pools {
		fmt.Fprintf(&b, "tiercoord_pool_capacity_bytes{pool=\"%s\"} %d\n", metricLabelEscape(pool.Name), pool.CapacityBytes)
	}
	fmt.Fprintln(&b, "# HELP tiercoord_pool_allocated_bytes Bytes reserved by tiers per resource pool")
	fmt.Fprintln(&b, "# TYPE tiercoord_pool_allocated_bytes gauge")
	for _, pool := range pools {
		fmt.Fprintf(&b, "tiercoord_pool_allocated_bytes{pool=\"%s\"} %d\n", metricLabelEscape(pool.Name), pool.AllocatedBytes)
	}

	fmt.Fprintln(&b, "# HELP tiercoord_tiers_total Number of tier records")
	fmt.Fprintln(&b, "# TYPE tiercoord_tiers_total gauge")
	fmt.Fprintf(&b, "tiercoord_tiers_total %d\n", len(tiers))

	fmt.Fprintln(&b, "# HELP tiercoord_tiers_state_total Tier count by lifecycle state")
	fmt.Fprintln(&b, "# TYPE tiercoord_tiers_state_total gauge")
	for _, key := range sortedIntMapKeys(stateCounts) {
		fmt.Fprintf(&b, "tiercoord_tiers_state_total{state=\"%s\"} %d\n", metricLabelEscape(key), stateCounts[key])
	}

	fmt.Fprintln(&b, "# HELP tiercoord_leases_total Active leases across all tiers")
	fmt.Fprintln(&b, "# TYPE tiercoord_leases_total gauge")
	fmt.Fprintf(&b, "tiercoord_leases_total %d\n", totalLeases)

	fmt.Fprintln(&b, "# HELP tiercoord_tier_leases Active leases per tier")
	fmt.Fprintln(&b, "# TYPE tiercoord_tier_leases gauge")
	for _, info := range tiers {
		fmt.Fprintf(&b, "tiercoord_tier_leases{tier=\"%s\"} %d\n", metricLabelEscape(info.Name), info.LeaseCount)
	}

	if s.hub != nil {
		fmt.Fprintln(&b, "# HELP tiercoord_stream_clients Currently connected push-stream clients")
		fmt.Fprintln(&b, "# TYPE tiercoord_stream_clients gauge")
		fmt.Fprintf(&b, "tiercoord_stream_clients %d\n", s.hub.ConnectedClients())
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func sortedIntMapKeys(values map[string]int) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func metricLabelEscape(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(escaped, `"`, `\"`)
}
