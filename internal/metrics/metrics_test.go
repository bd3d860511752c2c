package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
	assert.Same(t, registry, InitRegistry())
}

func TestRecordSolve(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name    string
		outcome string
		z       float64
	}{
		{name: "converged", outcome: OutcomeConverged, z: 0.0169},
		{name: "capped", outcome: OutcomeCapped, z: 0.02},
		{name: "closed form", outcome: OutcomeClosedForm, z: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(SolvesTotal.WithLabelValues(tt.outcome))
			RecordSolve(tt.outcome, tt.z, 10, 0.0001)
			assert.Equal(t, before+1, testutil.ToFloat64(SolvesTotal.WithLabelValues(tt.outcome)))
			assert.Equal(t, tt.z, testutil.ToFloat64(LastZ))
		})
	}
}

func TestRecordSolveNonFiniteKeepsLastZ(t *testing.T) {
	InitRegistry()

	RecordSolve(OutcomeConverged, 0.03, 5, 0.0001)
	RecordSolve(OutcomeNonFinite, 0, 3, 0.0001)

	assert.Equal(t, 0.03, testutil.ToFloat64(LastZ))
}

func TestRecordRaceDemargined(t *testing.T) {
	InitRegistry()

	before := testutil.ToFloat64(RacesDemarginedTotal.WithLabelValues("failure"))
	RecordRaceDemargined(false)
	assert.Equal(t, before+1, testutil.ToFloat64(RacesDemarginedTotal.WithLabelValues("failure")))
}

func TestRecordAPIRequest(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordAPIRequest("/v1/implied-probabilities", 200, 0.002)
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("/v1/implied-probabilities", "200")))
}

func TestUpdateCacheHitRatio(t *testing.T) {
	InitRegistry()

	UpdateCacheHitRatio(0.75)
	assert.Equal(t, 0.75, testutil.ToFloat64(CacheHitRatio))
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()
	RecordSolve(OutcomeConverged, 0.01, 4, 0.0001)

	handler := Handler()
	assert.Implements(t, (*http.Handler)(nil), handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shin_solves_total")
}

func BenchmarkRecordSolve(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		RecordSolve(OutcomeConverged, 0.02, 12, 0.00001)
	}
}
