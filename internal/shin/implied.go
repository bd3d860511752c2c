package shin

import (
	"fmt"
	"sort"
)

const (
	// DefaultMaxIterations bounds the refinement loop when no option is given
	DefaultMaxIterations = 1000
	// DefaultConvergenceThreshold is the default stopping delta
	DefaultConvergenceThreshold = 1e-12
)

// Options controls the solver used by CalculateImpliedProbabilities.
type Options struct {
	MaxIterations        int
	ConvergenceThreshold float64
}

// Option mutates Options.
type Option func(*Options)

// WithMaxIterations caps the number of refinement steps.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		o.MaxIterations = n
	}
}

// WithConvergenceThreshold sets the delta at which refinement stops.
func WithConvergenceThreshold(t float64) Option {
	return func(o *Options) {
		o.ConvergenceThreshold = t
	}
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{
		MaxIterations:        DefaultMaxIterations,
		ConvergenceThreshold: DefaultConvergenceThreshold,
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Result is the full output of a de-margining calculation.
type Result struct {
	ImpliedProbabilities []float64 `json:"implied_probabilities"`
	Z                    float64   `json:"z"`
	Delta                float64   `json:"delta"`
	Iterations           int       `json:"iterations"`
	SumInverseOdds       float64   `json:"sum_inverse_odds"`
}

// Overround returns the bookmaker margin embedded in the prices.
func (r *Result) Overround() float64 {
	return r.SumInverseOdds - 1
}

// LabelledResult is a Result keyed by outcome label.
type LabelledResult struct {
	ImpliedProbabilities map[string]float64 `json:"implied_probabilities"`
	Z                    float64            `json:"z"`
	Delta                float64            `json:"delta"`
	Iterations           int                `json:"iterations"`
	SumInverseOdds       float64            `json:"sum_inverse_odds"`
}

// CalculateImpliedProbabilities converts decimal odds into Shin implied
// probabilities. Two-outcome markets are solved in closed form.
func CalculateImpliedProbabilities(odds []float64, opts ...Option) (*Result, error) {
	if len(odds) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewOdds, len(odds))
	}
	for i, o := range odds {
		if o < 1 {
			return nil, fmt.Errorf("%w: odds[%d] = %v", ErrInvalidOdds, i, o)
		}
	}

	o := buildOptions(opts)
	n := len(odds)
	inverseOdds, sumInverseOdds := InverseOdds(odds)

	var solution Solution
	if n == 2 {
		solution = solveTwoOutcome(inverseOdds, sumInverseOdds)
	} else {
		solution = Optimise(inverseOdds, sumInverseOdds, n, o.MaxIterations, o.ConvergenceThreshold)
	}

	return &Result{
		ImpliedProbabilities: Probabilities(inverseOdds, sumInverseOdds, solution.Z),
		Z:                    solution.Z,
		Delta:                solution.Delta,
		Iterations:           solution.Iterations,
		SumInverseOdds:       sumInverseOdds,
	}, nil
}

// CalculateImpliedProbabilitiesMap is CalculateImpliedProbabilities for
// labelled outcomes. Labels are solved in sorted order.
func CalculateImpliedProbabilitiesMap(odds map[string]float64, opts ...Option) (*LabelledResult, error) {
	labels := make([]string, 0, len(odds))
	for label := range odds {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	prices := make([]float64, len(labels))
	for i, label := range labels {
		prices[i] = odds[label]
	}

	result, err := CalculateImpliedProbabilities(prices, opts...)
	if err != nil {
		return nil, err
	}

	probabilities := make(map[string]float64, len(labels))
	for i, label := range labels {
		probabilities[label] = result.ImpliedProbabilities[i]
	}

	return &LabelledResult{
		ImpliedProbabilities: probabilities,
		Z:                    result.Z,
		Delta:                result.Delta,
		Iterations:           result.Iterations,
		SumInverseOdds:       result.SumInverseOdds,
	}, nil
}

// InverseOdds returns 1/price for each price and their sum, accumulated in
// input order.
func InverseOdds(prices []float64) ([]float64, float64) {
	inverse := make([]float64, len(prices))
	sum := 0.0
	for i, p := range prices {
		inverse[i] = 1.0 / p
		sum += inverse[i]
	}
	return inverse, sum
}

// Probabilities backs out per-outcome probabilities for a solved z.
func Probabilities(inverseOdds []float64, sumInverseOdds, z float64) []float64 {
	p := make([]float64, len(inverseOdds))
	for i, io := range inverseOdds {
		p[i] = (term(z, io, sumInverseOdds) - z) / (2 * (1 - z))
	}
	return p
}

// solveTwoOutcome is the analytic solution for n == 2, where the iterative
// update has a zero denominator.
func solveTwoOutcome(inverseOdds []float64, sumInverseOdds float64) Solution {
	diff := inverseOdds[0] - inverseOdds[1]
	d2 := diff * diff
	z := ((sumInverseOdds - 1) * (d2 - sumInverseOdds)) / (sumInverseOdds * (d2 - 1))
	return Solution{Z: z, Delta: 0, Iterations: 0}
}
