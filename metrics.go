package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLogin2FARequired
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricLogout
	MetricTOTPSuccess
	MetricTOTPFailure
	MetricTOTPEnrolled
	MetricTOTPDisabled
	MetricRecoveryCodesGenerated
	MetricRecoveryCodeUsed
	MetricPasswordResetSuccess
	metricIDCount
)

// Metrics is a fixed set of in-process atomic counters. All methods are
// safe for concurrent use and never allocate on the increment path.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics returns a zeroed counter set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricIDCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}
