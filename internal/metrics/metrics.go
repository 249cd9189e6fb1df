// Package metrics records store and mission counters with Prometheus.
//
// A nil *Recorder is valid and records nothing, so packages can take one as
// an optional dependency.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dossier"

// Recorder holds the Prometheus collectors for the store and the mission
// protocol.
type Recorder struct {
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	missions      *prometheus.CounterVec
	points        prometheus.Counter
	registrations *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg. A nil reg
// uses a fresh registry, which keeps tests independent of the global one.
func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by collection, operation and result.",
		}, []string{"collection", "operation", "result"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store transaction latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"collection", "operation"}),
		missions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missions_total",
			Help:      "Mission transitions persisted, by resulting status.",
		}, []string{"status"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peace_points_awarded_total",
			Help:      "Peace Points awarded by completed missions.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Agent registration attempts by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{r.storeOps, r.storeDuration, r.missions, r.points, r.registrations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records one store transaction.
func (r *Recorder) Observe(_ context.Context, collection, operation string, success bool, duration time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if !success {
		result = "error"
	}
	r.storeOps.WithLabelValues(collection, operation, result).Inc()
	r.storeDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
}

// MissionAssigned counts a persisted mission assignment.
func (r *Recorder) MissionAssigned() {
	if r == nil {
		return
	}
	r.missions.WithLabelValues("ASSIGNED").Inc()
}

// MissionCompleted counts a persisted completion and the points it awarded.
func (r *Recorder) MissionCompleted(points int) {
	if r == nil {
		return
	}
	r.missions.WithLabelValues("COMPLETED").Inc()
	if points > 0 {
		r.points.Add(float64(points))
	}
}

// Registration counts a registration attempt; result is "ok", "taken" or
// "invalid".
func (r *Recorder) Registration(result string) {
	if r == nil {
		return
	}
	r.registrations.WithLabelValues(result).Inc()
}
