package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExporterEmitsCycleMetrics(t *testing.T) {
	e := NewExporter()
	e.RecordCycle(true, 3, 12, 1, 2*time.Second)

	expected := `
# HELP dessmonitor_collectors Collectors discovered in the most recent cycle.
# TYPE dessmonitor_collectors gauge
dessmonitor_collectors 3
# HELP dessmonitor_cycle_duration_seconds Wall-clock duration of the most recent refresh cycle.
# TYPE dessmonitor_cycle_duration_seconds gauge
dessmonitor_cycle_duration_seconds 2
# HELP dessmonitor_cycle_success Whether the most recent refresh cycle succeeded (1) or failed (0).
# TYPE dessmonitor_cycle_success gauge
dessmonitor_cycle_success 1
# HELP dessmonitor_cycles_failed_total Refresh cycles that failed outright, cumulative.
# TYPE dessmonitor_cycles_failed_total counter
dessmonitor_cycles_failed_total 0
# HELP dessmonitor_cycles_total Refresh cycles attempted, cumulative.
# TYPE dessmonitor_cycles_total counter
dessmonitor_cycles_total 1
# HELP dessmonitor_devices Devices with fresh data in the most recent cycle.
# TYPE dessmonitor_devices gauge
dessmonitor_devices 12
# HELP dessmonitor_skipped_items_total Collectors and devices skipped due to errors, cumulative.
# TYPE dessmonitor_skipped_items_total counter
dessmonitor_skipped_items_total 1
`
	if err := testutil.CollectAndCompare(e, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestExporterFailedCycleKeepsLastCounts(t *testing.T) {
	e := NewExporter()
	e.RecordCycle(true, 2, 8, 0, time.Second)
	e.RecordCycle(false, 0, 0, 3, time.Second)

	if got := testutil.CollectAndCount(e); got != 7 {
		t.Fatalf("expected 7 metrics, got %d", got)
	}
	// A failed cycle flips the success gauge but keeps the last known
	// collector and device counts.
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSuccess {
		t.Fatalf("success gauge should be down")
	}
	if e.collectors != 2 || e.devices != 8 {
		t.Fatalf("failed cycle must not zero the last counts: %d/%d", e.collectors, e.devices)
	}
	if e.cyclesTotal != 2 || e.failedTotal != 1 || e.skippedTotal != 3 {
		t.Fatalf("counters wrong: cycles=%d failed=%d skipped=%d", e.cyclesTotal, e.failedTotal, e.skippedTotal)
	}
}
