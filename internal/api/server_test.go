package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/shin/internal/models"
	"github.com/yourusername/shin/internal/service"
	"github.com/yourusername/shin/internal/shin"
)

type solverCalculator struct{}

func (solverCalculator) Calculate(ctx context.Context, prices []float64, opts ...shin.Option) (*shin.Result, error) {
	return shin.CalculateImpliedProbabilities(prices, opts...)
}

type stubCalculator struct {
	result *shin.Result
	err    error
}

func (s stubCalculator) Calculate(ctx context.Context, prices []float64, opts ...shin.Option) (*shin.Result, error) {
	return s.result, s.err
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

type mockProbabilityRepository struct {
	mock.Mock
}

func (m *mockProbabilityRepository) InsertBatch(ctx context.Context, probabilities []*models.ImpliedProbability) error {
	args := m.Called(ctx, probabilities)
	return args.Error(0)
}

func (m *mockProbabilityRepository) GetLatestForRace(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error) {
	args := m.Called(ctx, raceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ImpliedProbability), args.Error(1)
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg.Logger = log
	cfg.ServiceName = "shin"
	if cfg.Calculator == nil {
		cfg.Calculator = solverCalculator{}
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func post(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/implied-probabilities", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresCalculator(t *testing.T) {
	_, err := NewServer(Config{Logger: logrus.New()})
	assert.Error(t, err)
}

func TestImpliedProbabilities(t *testing.T) {
	handler := newTestServer(t, Config{}).Handler()

	rec := post(t, handler, `{"odds": ["2.6", "2.4", "4.3"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	var resp ImpliedProbabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, rec.Header().Get(requestIDHeader), resp.RequestID)
	assert.Equal(t, 426, resp.Iterations)
	require.NotNil(t, resp.Z)
	assert.InDelta(t, 0.01694251276, *resp.Z, 1e-9)
	require.Len(t, resp.ImpliedProbabilities, 3)
	assert.InDelta(t, 0.37299406, *resp.ImpliedProbabilities[0], 1e-7)
}

func TestImpliedProbabilitiesMixedFormats(t *testing.T) {
	handler := newTestServer(t, Config{}).Handler()

	rec := post(t, handler, `{"odds": ["evens", "+150", "5/1"], "max_iterations": 1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ImpliedProbabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Iterations)
}

func TestImpliedProbabilitiesBadRequests(t *testing.T) {
	handler := newTestServer(t, Config{}).Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"odds": [`},
		{"unknown field", `{"odds": ["2", "2"], "precision": 50}`},
		{"too few odds", `{"odds": ["2.0"]}`},
		{"empty price", `{"odds": ["2.0", ""]}`},
		{"unparseable price", `{"odds": ["2.0", "abc"]}`},
		{"price below one", `{"odds": ["2.0", "0.5"]}`},
		{"negative threshold", `{"odds": ["2.0", "2.0"], "convergence_threshold": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestImpliedProbabilitiesNonFiniteEncodedAsNull(t *testing.T) {
	result := &shin.Result{
		ImpliedProbabilities: []float64{math.NaN(), math.NaN()},
		Z:                    math.NaN(),
		Delta:                math.Inf(1),
		Iterations:           3,
		SumInverseOdds:       1.1,
	}
	handler := newTestServer(t, Config{
		Calculator: stubCalculator{result: result, err: service.ErrNonFinite},
	}).Handler()

	rec := post(t, handler, `{"odds": ["2.0", "2.0", "2.0"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"z":null`)
	assert.Contains(t, body, `"delta":null`)
	assert.Contains(t, body, `"implied_probabilities":[null,null]`)
	assert.Contains(t, body, `"iterations":3`)
}

func TestImpliedProbabilitiesInternalError(t *testing.T) {
	handler := newTestServer(t, Config{
		Calculator: stubCalculator{err: errors.New("boom")},
	}).Handler()

	rec := post(t, handler, `{"odds": ["2.0", "2.0", "2.0"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestImpliedProbabilitiesMethodNotAllowed(t *testing.T) {
	handler := newTestServer(t, Config{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/implied-probabilities", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestImpliedProbabilitiesRateLimited(t *testing.T) {
	handler := newTestServer(t, Config{RateLimit: 0.001, Burst: 1}).Handler()

	first := post(t, handler, `{"odds": ["2.0", "2.0"]}`)
	second := post(t, handler, `{"odds": ["2.0", "2.0"]}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestRequestIDPropagated(t *testing.T) {
	handler := newTestServer(t, Config{}).Handler()
	id := "5f0c6a4e-3c39-4d1f-9e76-0d0f3a1d2b7c"

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestHealthAndLive(t *testing.T) {
	s := newTestServer(t, Config{Version: "1.2.3"})
	handler := s.Handler()

	for _, path := range []string{"/health", "/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "shin", resp.Service)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		db       DatabasePinger
		expected int
	}{
		{"not marked ready", false, nil, http.StatusServiceUnavailable},
		{"ready without database", true, nil, http.StatusOK},
		{"ready with database", true, stubPinger{}, http.StatusOK},
		{"database down", true, stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{DB: tt.db})
			s.SetReady(tt.ready)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(t, Config{MetricsPath: "/metrics"}).Handler()
	post(t, handler, `{"odds": ["2.0", "2.0"]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shin_api_requests_total")
}

func getRaceProbabilities(t *testing.T, handler http.Handler, raceID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/races/"+raceID+"/probabilities", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func newStoreServer(t *testing.T, repo *mockProbabilityRepository) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := service.NewDemarginService(nil, repo, nil, shin.DefaultOptions(), log)
	return newTestServer(t, Config{Calculator: svc, Store: svc}).Handler()
}

func TestRaceProbabilities(t *testing.T) {
	raceID := uuid.New()
	computedAt := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	stored := []*models.ImpliedProbability{
		{ID: uuid.New(), RaceID: raceID, RunnerID: uuid.New(), Price: 2.6, Probability: 0.37299406,
			Z: 0.01694251276, Delta: 1e-13, Iterations: 426, Overround: 0.0339, OddsTime: computedAt.Add(-time.Minute), ComputedAt: computedAt},
		{ID: uuid.New(), RaceID: raceID, RunnerID: uuid.New(), Price: 2.4, Probability: 0.40477941,
			Z: 0.01694251276, Delta: 1e-13, Iterations: 426, Overround: 0.0339, OddsTime: computedAt.Add(-time.Minute), ComputedAt: computedAt},
	}

	repo := new(mockProbabilityRepository)
	repo.On("GetLatestForRace", mock.Anything, raceID).Return(stored, nil)

	rec := getRaceProbabilities(t, newStoreServer(t, repo), raceID.String())

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RaceProbabilitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, raceID, resp.RaceID)
	assert.Equal(t, 426, resp.Iterations)
	assert.InDelta(t, 0.01694251276, resp.Z, 1e-12)
	assert.True(t, computedAt.Equal(resp.ComputedAt))
	require.Len(t, resp.Runners, 2)
	assert.Equal(t, stored[1].RunnerID, resp.Runners[1].RunnerID)
	assert.InDelta(t, 0.37299406, resp.Runners[0].Probability, 1e-9)
	assert.InDelta(t, stored[0].Edge(), resp.Runners[0].Edge, 1e-12)
	repo.AssertExpectations(t)
}

func TestRaceProbabilitiesErrors(t *testing.T) {
	raceID := uuid.New()

	tests := []struct {
		name     string
		raceID   string
		repoErr  error
		expected int
	}{
		{"not found", raceID.String(), models.ErrNotFound, http.StatusNotFound},
		{"repository failure", raceID.String(), errors.New("connection reset"), http.StatusInternalServerError},
		{"malformed id", "not-a-uuid", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockProbabilityRepository)
			if tt.repoErr != nil {
				repo.On("GetLatestForRace", mock.Anything, raceID).Return(nil, tt.repoErr)
			}

			rec := getRaceProbabilities(t, newStoreServer(t, repo), tt.raceID)

			assert.Equal(t, tt.expected, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotContains(t, resp.Error, "connection reset")
			repo.AssertExpectations(t)
		})
	}
}

func TestRaceProbabilitiesMalformedIDMessage(t *testing.T) {
	rec := getRaceProbabilities(t, newStoreServer(t, new(mockProbabilityRepository)), "42")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ErrInvalidID.Error())
}

func TestRaceProbabilitiesWithoutDatabase(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := service.NewDemarginService(nil, nil, nil, shin.DefaultOptions(), log)

	for name, cfg := range map[string]Config{
		"no store":              {},
		"service without store": {Calculator: svc, Store: svc},
	} {
		t.Run(name, func(t *testing.T) {
			handler := newTestServer(t, cfg).Handler()
			rec := getRaceProbabilities(t, handler, uuid.New().String())
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		})
	}
}

func TestRaceProbabilitiesMethodNotAllowed(t *testing.T) {
	handler := newStoreServer(t, new(mockProbabilityRepository))

	req := httptest.NewRequest(http.MethodPost, "/v1/races/"+uuid.New().String()+"/probabilities", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
}
