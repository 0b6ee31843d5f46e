package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEvaluation("evaluated", "", time.Second)
	m.ObserveEvaluation("error", "low_confidence", time.Second)
	m.ObserveEvaluation("error", "low_confidence", time.Second)
	m.ObserveChallenge("accepted")
	m.ObserveSettlement("challenger")
	m.ObservePublication("evaluation", nil)
	m.ObservePublication("evaluation", errors.New("down"))
	m.ObserveProvider("openai", 100*time.Millisecond, nil)
	m.ObserveProviderCacheHit("openai")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("error", "low_confidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Challenges.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Settlements.WithLabelValues("challenger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Publications.WithLabelValues("evaluation", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("openai", "cached")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvaluation("evaluated", "", time.Second)
		m.ObserveChallenge("accepted")
		m.ObserveSettlement("tie")
		m.ObservePublication("settlement", nil)
		m.ObserveProvider("p", time.Second, nil)
		m.ObserveProviderCacheHit("p")
	})
}

func TestMetrics_UnregisteredWhenNoRegisterer(t *testing.T) {
	m := New(nil)
	m.ObserveChallenge("duplicate")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Challenges.WithLabelValues("duplicate")))
}
