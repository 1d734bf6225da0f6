// Package metrics defines the Prometheus metrics emitted by the connection
// pool and wraps them in a small per-pool Sink so callers never touch the
// label plumbing directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsUsage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_client_connections_usage",
		Help: "Number of connections currently in the given state (idle or used)",
	}, []string{"pool", "state"})

	connectionsIdleMin = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_client_connections_idle_min",
		Help: "Configured minimum number of idle connections for the pool",
	}, []string{"pool"})

	connectionsIdleMax = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_client_connections_idle_max",
		Help: "Configured maximum number of idle connections for the pool",
	}, []string{"pool"})

	connectionsMax = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_client_connections_max",
		Help: "Configured maximum number of connections for the pool",
	}, []string{"pool"})

	pendingRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "db_client_connections_pending_requests",
		Help: "Number of checkout requests currently queued waiting for a permit",
	}, []string{"pool"})

	createTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_client_connections_create_time",
		Help:    "Time spent establishing a new session, in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"pool"})

	waitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_client_connections_wait_time",
		Help:    "Time a checkout call spent waiting for a session, in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"pool"})
)

const (
	stateIdle = "idle"
	stateUsed = "used"
)

// Sink is the MetricsSink for a single pool — every metric it emits is
// tagged with the pool's display name.
type Sink struct {
	pool string
}

// NewSink returns a Sink bound to poolName.
func NewSink(poolName string) *Sink {
	return &Sink{pool: poolName}
}

// SetGauges publishes the idle/used gauges together so external
// aggregators observe consistent totals (see DESIGN.md on the "atomic
// pair of counter updates" open question).
func (s *Sink) SetGauges(idle, used int) {
	connectionsUsage.WithLabelValues(s.pool, stateIdle).Set(float64(idle))
	connectionsUsage.WithLabelValues(s.pool, stateUsed).Set(float64(used))
}

// SetConfigured publishes the static configuration gauges once, at pool
// construction time.
func (s *Sink) SetConfigured(minIdle, maxIdle, max int) {
	connectionsIdleMin.WithLabelValues(s.pool).Set(float64(minIdle))
	connectionsIdleMax.WithLabelValues(s.pool).Set(float64(maxIdle))
	connectionsMax.WithLabelValues(s.pool).Set(float64(max))
}

// AddPendingRequests adjusts the pending-checkout-requests gauge by delta.
func (s *Sink) AddPendingRequests(delta int) {
	pendingRequests.WithLabelValues(s.pool).Add(float64(delta))
}

// ObserveCreateTime records how long a new session took to establish.
func (s *Sink) ObserveCreateTime(d time.Duration) {
	createTime.WithLabelValues(s.pool).Observe(float64(d.Milliseconds()))
}

// ObserveWaitTime records how long a checkout call waited for a session.
func (s *Sink) ObserveWaitTime(d time.Duration) {
	waitTime.WithLabelValues(s.pool).Observe(float64(d.Milliseconds()))
}
