package flareauth

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSignUpSuccess counts created accounts.
	MetricSignUpSuccess MetricID = iota
	// MetricSignUpDuplicate counts signups rejected as duplicates.
	MetricSignUpDuplicate
	// MetricSignUpFailure counts signups failed for other reasons.
	MetricSignUpFailure
	// MetricSignInSuccess counts direct sign-ins from trusted devices.
	MetricSignInSuccess
	// MetricSignInFailure counts credential rejections.
	MetricSignInFailure
	// MetricStepUpRequired counts sign-ins diverted into step-up.
	MetricStepUpRequired
	// MetricStepUpSuccess counts completed step-up verifications.
	MetricStepUpSuccess
	// MetricStepUpFailure counts code mismatches.
	MetricStepUpFailure
	// MetricStepUpExpired counts challenges that lapsed before verification.
	MetricStepUpExpired
	// MetricStepUpExhausted counts challenges that spent their attempts.
	MetricStepUpExhausted
	// MetricEmailVerificationRequest counts queued verification messages.
	MetricEmailVerificationRequest
	// MetricEmailVerificationConfirm counts confirmed addresses.
	MetricEmailVerificationConfirm
	// MetricEmailAlreadyVerified counts idempotent re-confirmations.
	MetricEmailAlreadyVerified
	// MetricPasswordResetRequest counts reset requests (known or not).
	MetricPasswordResetRequest
	// MetricPasswordResetConfirm counts completed resets.
	MetricPasswordResetConfirm
	// MetricPasswordChange counts completed password changes.
	MetricPasswordChange
	// MetricNotifyEnqueued counts queued notification tasks.
	MetricNotifyEnqueued
	// MetricNotifyDeduplicated counts enqueues collapsed by idempotency key.
	MetricNotifyDeduplicated

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed-size table of lock-free counters. Disabled metrics cost
// a single branch per increment.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates the counter table.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counting is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
