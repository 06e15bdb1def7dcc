package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// =============================================================================
// Mock StatsProvider
// =============================================================================

type mockStatsProvider struct {
	mu    sync.Mutex
	calls int
	stats Stats
}

func (m *mockStatsProvider) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// =============================================================================
// Collector Tests
// =============================================================================

func TestCollectorCollectsOnStart(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{Papers: 7, TotalBytes: 4096, FailedCovers: 2}}
	c := NewCollector(provider, time.Hour)
	c.Start()
	defer c.Stop()

	// Gauges are set after Stats returns, so poll the gauge itself.
	deadline := time.Now().Add(2 * time.Second)
	for testutil.ToFloat64(CoverFailedDocuments) != 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if provider.callCount() == 0 {
		t.Fatal("collector did not collect on start")
	}

	if got := testutil.ToFloat64(PapersTotal); got != 7 {
		t.Errorf("PapersTotal = %v, want 7", got)
	}
	if got := testutil.ToFloat64(StorageBytes); got != 4096 {
		t.Errorf("StorageBytes = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(CoverFailedDocuments); got != 2 {
		t.Errorf("CoverFailedDocuments = %v, want 2", got)
	}
}

func TestCollectorTicks(t *testing.T) {
	provider := &mockStatsProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.callCount() < 3 {
		t.Errorf("expected at least 3 collections, got %d", provider.callCount())
	}

	// Stop waits for the loop; no further calls afterwards.
	after := provider.callCount()
	time.Sleep(30 * time.Millisecond)
	if provider.callCount() != after {
		t.Error("collector kept running after Stop")
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect()
}

func TestInitializeMetricsPopulatesLabels(t *testing.T) {
	InitializeMetrics()

	if n := testutil.CollectAndCount(CoverResolutionsTotal); n != len(CoverOutcomes) {
		t.Errorf("CoverResolutionsTotal series = %d, want %d", n, len(CoverOutcomes))
	}
	want := len(RenderTools) * len(RenderStatuses)
	if n := testutil.CollectAndCount(RenderAttemptsTotal); n < want {
		t.Errorf("RenderAttemptsTotal series = %d, want >= %d", n, want)
	}
}
