package flareauth

import (
	"sync"
	"testing"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})

	metrics.Inc(MetricSignInSuccess)
	metrics.Inc(MetricSignInSuccess)
	metrics.Inc(MetricStepUpRequired)

	if got := metrics.Value(MetricSignInSuccess); got != 2 {
		t.Fatalf("Value = %d, want 2", got)
	}

	snapshot := metrics.Snapshot()
	if snapshot.Counters[MetricSignInSuccess] != 2 {
		t.Fatalf("snapshot counter = %d, want 2", snapshot.Counters[MetricSignInSuccess])
	}
	if snapshot.Counters[MetricStepUpRequired] != 1 {
		t.Fatalf("snapshot counter = %d, want 1", snapshot.Counters[MetricStepUpRequired])
	}

	// The snapshot is a copy, not a live view.
	metrics.Inc(MetricSignInSuccess)
	if snapshot.Counters[MetricSignInSuccess] != 2 {
		t.Fatal("snapshot mutated after Inc")
	}
}

func TestMetricsDisabled(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: false})

	metrics.Inc(MetricSignInSuccess)
	if got := metrics.Value(MetricSignInSuccess); got != 0 {
		t.Fatalf("disabled metrics counted: %d", got)
	}
	if snapshot := metrics.Snapshot(); len(snapshot.Counters) != 0 {
		t.Fatalf("disabled snapshot = %+v", snapshot)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 8
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				metrics.Inc(MetricNotifyEnqueued)
			}
		}()
	}
	wg.Wait()

	if got := metrics.Value(MetricNotifyEnqueued); got != goroutines*perGoroutine {
		t.Fatalf("Value = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestEngineMetricsSurface(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newFakeUserStore()
	engine := newTestEngine(t, rdb, store, testConfig())

	signUpTestUser(t, engine, "alice@example.com", "", testPassword)

	snapshot := engine.MetricsSnapshot()
	if snapshot.Counters[MetricSignUpSuccess] != 1 {
		t.Fatalf("signup counter = %d, want 1", snapshot.Counters[MetricSignUpSuccess])
	}
	if snapshot.Counters[MetricNotifyEnqueued] != 1 {
		t.Fatalf("enqueue counter = %d, want 1", snapshot.Counters[MetricNotifyEnqueued])
	}
}
