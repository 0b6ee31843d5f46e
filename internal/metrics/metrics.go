// Package metrics exposes engine counters and latency histograms.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "veracity"

// Metrics groups the collectors used across the engine
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	Challenges       *prometheus.CounterVec
	Settlements      *prometheus.CounterVec
	Publications     *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	EvaluationTime   prometheus.Histogram
}

// New creates collectors and registers them when reg is non-nil
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Consensus runs by outcome status and failure reason.",
		}, []string{"status", "reason"}),
		Challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_total",
			Help:      "Refutation challenges by result (accepted or rejection reason).",
		}, []string{"result"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlements by winner.",
		}, []string{"winner"}),
		Publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_total",
			Help:      "Ledger submissions by record kind and result.",
		}, []string{"kind", "result"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Provider fetches by provider and result (ok, error, cached).",
		}, []string{"provider", "result"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_seconds",
			Help:      "Provider fetch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider"}),
		EvaluationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_seconds",
			Help:      "Wall time from gather start to verdict.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Evaluations,
			m.Challenges,
			m.Settlements,
			m.Publications,
			m.ProviderRequests,
			m.ProviderLatency,
			m.EvaluationTime,
		)
	}
	return m
}

func (m *Metrics) ObserveEvaluation(status, reason string, took time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(status, reason).Inc()
	m.EvaluationTime.Observe(took.Seconds())
}

func (m *Metrics) ObserveChallenge(result string) {
	if m == nil {
		return
	}
	m.Challenges.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSettlement(winner string) {
	if m == nil {
		return
	}
	m.Settlements.WithLabelValues(winner).Inc()
}

func (m *Metrics) ObservePublication(kind string, err error) {
	if m == nil {
		return
	}
	m.Publications.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) ObserveProvider(provider string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, result(err)).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) ObserveProviderCacheHit(provider string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, "cached").Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
