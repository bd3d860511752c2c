// Package service provides the de-margining service built on Shin's method.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/shin/internal/cache"
	"github.com/yourusername/shin/internal/logger"
	"github.com/yourusername/shin/internal/metrics"
	"github.com/yourusername/shin/internal/models"
	"github.com/yourusername/shin/internal/repository"
	"github.com/yourusername/shin/internal/shin"
)

var (
	// ErrNonFinite indicates the solve returned NaN or Inf
	ErrNonFinite = errors.New("shin solve produced non-finite result")

	// ErrNotEnoughRunners indicates a race has fewer than two priced runners
	ErrNotEnoughRunners = errors.New("race has fewer than two priced runners")

	// ErrNoDatabase indicates an operation on stored data without repositories
	ErrNoDatabase = errors.New("stored races require a database")
)

// DemarginService converts prices into Shin implied probabilities
type DemarginService struct {
	odds          repository.OddsRepository
	probabilities repository.ProbabilityRepository
	cache         *cache.ResultCache
	options       shin.Options
	logger        *logger.SolverLogger
	validate      *validator.Validate
	now           func() time.Time
}

// NewDemarginService creates a new service. The repositories and cache may
// be nil when only Calculate is used.
func NewDemarginService(
	oddsRepo repository.OddsRepository,
	probabilityRepo repository.ProbabilityRepository,
	resultCache *cache.ResultCache,
	options shin.Options,
	log *logrus.Logger,
) *DemarginService {
	return &DemarginService{
		odds:          oddsRepo,
		probabilities: probabilityRepo,
		cache:         resultCache,
		options:       options,
		logger:        logger.NewSolverLogger(log),
		validate:      validator.New(),
		now:           time.Now,
	}
}

// Options returns the service's default solver options
func (s *DemarginService) Options() shin.Options {
	return s.options
}

// Calculate de-margins decimal prices. Per-call options override the
// service defaults. A non-finite solve returns the result together with an
// error wrapping ErrNonFinite.
func (s *DemarginService) Calculate(ctx context.Context, prices []float64, opts ...shin.Option) (*shin.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := s.options
	for _, opt := range opts {
		opt(&options)
	}

	key := cache.Key{
		Prices:               prices,
		MaxIterations:        options.MaxIterations,
		ConvergenceThreshold: options.ConvergenceThreshold,
	}
	if s.cache != nil {
		if result, found := s.cache.Get(key); found {
			s.logger.LogSolve(len(prices), result.Z, result.Delta, result.Iterations, true, 0)
			return result, nil
		}
	}

	start := time.Now()
	result, err := shin.CalculateImpliedProbabilities(
		prices,
		shin.WithMaxIterations(options.MaxIterations),
		shin.WithConvergenceThreshold(options.ConvergenceThreshold),
	)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	outcome := classify(len(prices), result, options.ConvergenceThreshold)
	metrics.RecordSolve(outcome, result.Z, result.Iterations, elapsed.Seconds())

	if outcome == metrics.OutcomeNonFinite {
		s.logger.LogNonFinite(len(prices), result.SumInverseOdds, result.Z, result.Delta, result.Iterations)
		if cause := diagnose(prices); cause != nil {
			s.logger.WithError(cause).Debug("Solver preconditions not met")
			return result, fmt.Errorf("%w: z=%v delta=%v: %w", ErrNonFinite, result.Z, result.Delta, cause)
		}
		return result, fmt.Errorf("%w: z=%v delta=%v", ErrNonFinite, result.Z, result.Delta)
	}

	s.logger.LogSolve(len(prices), result.Z, result.Delta, result.Iterations, false, float64(elapsed.Microseconds())/1000)
	if s.cache != nil {
		s.cache.Set(key, result)
	}
	return result, nil
}

// CalculateLabelled de-margins prices keyed by outcome label. Results are
// not cached.
func (s *DemarginService) CalculateLabelled(ctx context.Context, prices map[string]float64, opts ...shin.Option) (*shin.LabelledResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options := s.options
	for _, opt := range opts {
		opt(&options)
	}

	start := time.Now()
	result, err := shin.CalculateImpliedProbabilitiesMap(
		prices,
		shin.WithMaxIterations(options.MaxIterations),
		shin.WithConvergenceThreshold(options.ConvergenceThreshold),
	)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	outcome := classify(len(prices), &shin.Result{Z: result.Z, Delta: result.Delta}, options.ConvergenceThreshold)
	metrics.RecordSolve(outcome, result.Z, result.Iterations, elapsed.Seconds())

	if outcome == metrics.OutcomeNonFinite {
		s.logger.LogNonFinite(len(prices), result.SumInverseOdds, result.Z, result.Delta, result.Iterations)
		return result, fmt.Errorf("%w: z=%v delta=%v", ErrNonFinite, result.Z, result.Delta)
	}

	s.logger.LogSolve(len(prices), result.Z, result.Delta, result.Iterations, false, float64(elapsed.Microseconds())/1000)
	return result, nil
}

// DemarginRace computes and stores probabilities from the latest odds of a race.
// Runners without a usable price are left out of the market.
func (s *DemarginService) DemarginRace(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error) {
	if s.odds == nil || s.probabilities == nil {
		return nil, ErrNoDatabase
	}

	probabilities, err := s.demarginRace(ctx, raceID)
	metrics.RecordRaceDemargined(err == nil)
	if err != nil {
		s.logger.LogRaceFailed(raceID.String(), err)
		return nil, err
	}
	return probabilities, nil
}

func (s *DemarginService) demarginRace(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error) {
	snapshots, err := s.odds.GetLatestForRace(ctx, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load odds for race %s: %w", raceID, err)
	}

	priced := make([]*models.OddsSnapshot, 0, len(snapshots))
	prices := make([]float64, 0, len(snapshots))
	for _, snapshot := range snapshots {
		price, err := snapshot.GetPrice()
		if err != nil {
			continue
		}
		priced = append(priced, snapshot)
		prices = append(prices, price)
	}
	skipped := len(snapshots) - len(priced)

	if len(prices) < 2 {
		return nil, fmt.Errorf("%w: race %s has %d", ErrNotEnoughRunners, raceID, len(prices))
	}

	result, err := s.Calculate(ctx, prices)
	if err != nil {
		return nil, fmt.Errorf("failed to solve race %s: %w", raceID, err)
	}

	computedAt := s.now().UTC()
	probabilities := make([]*models.ImpliedProbability, len(priced))
	for i, snapshot := range priced {
		probabilities[i] = &models.ImpliedProbability{
			ID:          uuid.New(),
			RaceID:      raceID,
			RunnerID:    snapshot.RunnerID,
			Price:       prices[i],
			Probability: result.ImpliedProbabilities[i],
			Z:           result.Z,
			Delta:       result.Delta,
			Iterations:  result.Iterations,
			Overround:   result.Overround(),
			OddsTime:    snapshot.Time,
			ComputedAt:  computedAt,
		}
		if err := s.validate.Struct(probabilities[i]); err != nil {
			return nil, fmt.Errorf("invalid probability for runner %s: %w", snapshot.RunnerID, err)
		}
	}

	if err := s.probabilities.InsertBatch(ctx, probabilities); err != nil {
		return nil, fmt.Errorf("failed to store probabilities for race %s: %w", raceID, err)
	}

	s.logger.LogRaceDemargined(raceID.String(), len(priced), skipped, result.Z, result.Iterations, result.Overround())
	return probabilities, nil
}

// LatestProbabilities returns the most recent stored solve for a race
func (s *DemarginService) LatestProbabilities(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error) {
	if s.probabilities == nil {
		return nil, ErrNoDatabase
	}
	return s.probabilities.GetLatestForRace(ctx, raceID)
}

// DemarginRecent de-margins every race with odds since the given time and
// returns how many succeeded. Individual race failures are logged and skipped.
func (s *DemarginService) DemarginRecent(ctx context.Context, since time.Time) (int, error) {
	if s.odds == nil {
		return 0, ErrNoDatabase
	}

	raceIDs, err := s.odds.GetRacesWithRecentOdds(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list races with recent odds: %w", err)
	}

	succeeded := 0
	for _, raceID := range raceIDs {
		if err := ctx.Err(); err != nil {
			return succeeded, err
		}
		if _, err := s.DemarginRace(ctx, raceID); err == nil {
			succeeded++
		}
	}

	return succeeded, nil
}

// CacheStats logs and returns the result cache statistics
func (s *DemarginService) CacheStats() (hits, misses uint64, ratio float64) {
	if s.cache == nil {
		return 0, 0, 0
	}
	hits, misses, ratio = s.cache.Stats()
	s.logger.LogCacheStats(hits, misses, ratio, s.cache.ItemCount())
	return hits, misses, ratio
}

// diagnose reports why an iterative solve could not be well posed. Two-outcome
// markets use the closed form and are not checked.
func diagnose(prices []float64) error {
	if len(prices) < 3 {
		return nil
	}
	inverseOdds, sum := shin.InverseOdds(prices)
	return shin.ValidateProblem(inverseOdds, sum, len(prices))
}

func classify(n int, result *shin.Result, threshold float64) string {
	switch {
	case isNonFinite(result.Z) || isNonFinite(result.Delta):
		return metrics.OutcomeNonFinite
	case n == 2:
		return metrics.OutcomeClosedForm
	case result.Delta <= threshold:
		return metrics.OutcomeConverged
	default:
		return metrics.OutcomeCapped
	}
}

func isNonFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}
