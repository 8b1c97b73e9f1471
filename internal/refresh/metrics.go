package refresh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeSkipped = "skipped"
	outcomeAborted = "aborted"
)

var (
	cyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrclock",
		Subsystem: "refresh",
		Name:      "cycles_total",
		Help:      "Refresh cycles by outcome (success, failure, aborted before fetching, skipped while in flight).",
	}, []string{"outcome"})
	lastSuccessGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hrclock",
		Subsystem: "refresh",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful refresh.",
	})
	tokenExpiryGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hrclock",
		Subsystem: "refresh",
		Name:      "token_expiry_timestamp_seconds",
		Help:      "Expiry of the captured bearer token, when it carries one.",
	})
)

func init() {
	prometheus.MustRegister(cyclesTotal, lastSuccessGauge, tokenExpiryGauge)
}

func recordCycle(outcome string) {
	cyclesTotal.WithLabelValues(outcome).Inc()
}

func recordSuccess(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSuccessGauge.Set(float64(ts.Unix()))
}

func recordTokenExpiry(ts time.Time) {
	if ts.IsZero() {
		return
	}
	tokenExpiryGauge.Set(float64(ts.Unix()))
}
