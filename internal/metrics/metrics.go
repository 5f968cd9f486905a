package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	evaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_evaluations_total",
		Help: "Total number of request evaluations by verdict",
	}, []string{"verdict"})
	intrusionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_intrusions_total",
		Help: "Total number of signature matches by attack family",
	}, []string{"family"})
	anomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_anomalies_total",
		Help: "Total number of behavior anomaly detections by risk",
	}, []string{"risk"})
	blocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_blocks_total",
		Help: "Total number of IP blocks applied by reason",
	}, []string{"reason"})
	emergencyMode = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_emergency_mode",
		Help: "1 while system-wide tightened limits are active",
	})
	droppedWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_dropped_writes_total",
		Help: "Total number of audit/record writes dropped after retries",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(evaluationsTotal, intrusionsTotal, anomaliesTotal,
		blocksTotal, emergencyMode, droppedWritesTotal)
}

// IncEvaluation counts one evaluation outcome.
func IncEvaluation(verdict string) { evaluationsTotal.WithLabelValues(verdict).Inc() }

// IncIntrusion counts one signature match.
func IncIntrusion(family string) { intrusionsTotal.WithLabelValues(family).Inc() }

// IncAnomaly counts one anomaly detection.
func IncAnomaly(risk string) { anomaliesTotal.WithLabelValues(risk).Inc() }

// IncBlock counts one applied block.
func IncBlock(reason string) { blocksTotal.WithLabelValues(reason).Inc() }

// SetEmergencyMode flips the emergency-mode gauge.
func SetEmergencyMode(active bool) {
	if active {
		emergencyMode.Set(1)
	} else {
		emergencyMode.Set(0)
	}
}

// IncDroppedWrite counts a record write abandoned after retries.
func IncDroppedWrite() { droppedWritesTotal.Inc() }
