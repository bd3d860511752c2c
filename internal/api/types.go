package api

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/shin/internal/models"
	"github.com/yourusername/shin/internal/shin"
)

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
	Commit    string `json:"commit,omitempty"`
}

// ReadyResponse represents the JSON response for readiness check endpoints.
type ReadyResponse struct {
	Status   string            `json:"status"`
	Service  string            `json:"service"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// ImpliedProbabilitiesRequest is the body of POST /v1/implied-probabilities.
// Odds may be quoted as decimal, fractional or American prices.
type ImpliedProbabilitiesRequest struct {
	Odds                 []string `json:"odds" validate:"required,min=2,dive,required"`
	MaxIterations        *int     `json:"max_iterations,omitempty" validate:"omitempty,gte=0,lte=1000000"`
	ConvergenceThreshold *float64 `json:"convergence_threshold,omitempty" validate:"omitempty,gte=0"`
}

// ImpliedProbabilitiesResponse carries a solve. NaN and Inf are encoded as null.
type ImpliedProbabilitiesResponse struct {
	RequestID            string     `json:"request_id"`
	ImpliedProbabilities []*float64 `json:"implied_probabilities"`
	Z                    *float64   `json:"z"`
	Delta                *float64   `json:"delta"`
	Iterations           int        `json:"iterations"`
	SumInverseOdds       *float64   `json:"sum_inverse_odds"`
	Overround            *float64   `json:"overround"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// NewImpliedProbabilitiesResponse converts a solver result for the wire.
func NewImpliedProbabilitiesResponse(requestID string, result *shin.Result) ImpliedProbabilitiesResponse {
	probabilities := make([]*float64, len(result.ImpliedProbabilities))
	for i, p := range result.ImpliedProbabilities {
		probabilities[i] = finite(p)
	}

	return ImpliedProbabilitiesResponse{
		RequestID:            requestID,
		ImpliedProbabilities: probabilities,
		Z:                    finite(result.Z),
		Delta:                finite(result.Delta),
		Iterations:           result.Iterations,
		SumInverseOdds:       finite(result.SumInverseOdds),
		Overround:            finite(result.Overround()),
	}
}

// RunnerProbability is one runner of a stored solve.
type RunnerProbability struct {
	RunnerID    uuid.UUID `json:"runner_id"`
	Price       float64   `json:"price"`
	Probability float64   `json:"probability"`
	Edge        float64   `json:"edge"`
	OddsTime    time.Time `json:"odds_time"`
}

// RaceProbabilitiesResponse is the most recent stored solve for a race.
type RaceProbabilitiesResponse struct {
	RequestID  string              `json:"request_id"`
	RaceID     uuid.UUID           `json:"race_id"`
	Z          float64             `json:"z"`
	Delta      float64             `json:"delta"`
	Iterations int                 `json:"iterations"`
	Overround  float64             `json:"overround"`
	ComputedAt time.Time           `json:"computed_at"`
	Runners    []RunnerProbability `json:"runners"`
}

// NewRaceProbabilitiesResponse groups stored rows of one solve. Market-level
// fields are shared by every row and read from the first.
func NewRaceProbabilitiesResponse(requestID string, raceID uuid.UUID, probabilities []*models.ImpliedProbability) RaceProbabilitiesResponse {
	resp := RaceProbabilitiesResponse{
		RequestID: requestID,
		RaceID:    raceID,
		Runners:   make([]RunnerProbability, len(probabilities)),
	}
	if len(probabilities) > 0 {
		first := probabilities[0]
		resp.Z = first.Z
		resp.Delta = first.Delta
		resp.Iterations = first.Iterations
		resp.Overround = first.Overround
		resp.ComputedAt = first.ComputedAt
	}
	for i, p := range probabilities {
		resp.Runners[i] = RunnerProbability{
			RunnerID:    p.RunnerID,
			Price:       p.Price,
			Probability: p.Probability,
			Edge:        p.Edge(),
			OddsTime:    p.OddsTime,
		}
	}
	return resp
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
