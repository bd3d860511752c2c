// Package shin implements Shin's method for removing the bookmaker margin
// from betting odds.
package shin

import (
	"fmt"
	"math"
)

// Solution holds the solved insider trading fraction and convergence diagnostics.
type Solution struct {
	Z          float64 `json:"z"`
	Delta      float64 `json:"delta"`
	Iterations int     `json:"iterations"`
}

// Converged reports whether the final delta is within the threshold.
func (s Solution) Converged(convergenceThreshold float64) bool {
	return s.Delta <= convergenceThreshold
}

// IsFinite reports whether both z and delta are finite numbers.
func (s Solution) IsFinite() bool {
	return !math.IsNaN(s.Z) && !math.IsInf(s.Z, 0) &&
		!math.IsNaN(s.Delta) && !math.IsInf(s.Delta, 0)
}

// Optimise solves the fixed-point equation for z by iterative refinement.
//
// Each step uses the previous estimate for every outcome. Invalid inputs are
// not checked: a zero denominator or a negative radicand surfaces as NaN or
// Inf in the returned Solution. The reported iteration count is always one
// more than the number of refinement steps performed.
func Optimise(inverseOdds []float64, sumInverseOdds float64, n, maxIterations int, convergenceThreshold float64) Solution {
	delta := math.Inf(1)
	z := 0.0
	iterations := 0
	denominator := float64(n - 2)

	for delta > convergenceThreshold && iterations < maxIterations {
		z0 := z
		sum := 0.0
		for _, io := range inverseOdds {
			sum += term(z0, io, sumInverseOdds)
		}
		z = (sum - 2) / denominator
		delta = math.Abs(z - z0)
		iterations++
	}
	iterations++

	return Solution{Z: z, Delta: delta, Iterations: iterations}
}

// term is sqrt(z² + 4(1-z)·io²/sum), the per-outcome quantity shared by the
// fixed-point update and the probability formula.
// The explicit conversion keeps z*z from being fused into a multiply-add.
func term(z, io, sumInverseOdds float64) float64 {
	return math.Sqrt(float64(z*z) + 4*(1-z)*(io*io)/sumInverseOdds)
}

// ValidateProblem checks the preconditions Optimise assumes but never enforces.
func ValidateProblem(inverseOdds []float64, sumInverseOdds float64, n int) error {
	if n < 3 {
		return fmt.Errorf("%w: n must be at least 3, got %d", ErrInvalidProblem, n)
	}
	if len(inverseOdds) != n {
		return fmt.Errorf("%w: %d inverse odds for n=%d", ErrInvalidProblem, len(inverseOdds), n)
	}
	if sumInverseOdds == 0 || math.IsNaN(sumInverseOdds) || math.IsInf(sumInverseOdds, 0) {
		return fmt.Errorf("%w: sum of inverse odds must be finite and non-zero", ErrInvalidProblem)
	}
	for i, io := range inverseOdds {
		if io < 0 || math.IsNaN(io) || math.IsInf(io, 0) {
			return fmt.Errorf("%w: inverse odds at index %d is %v", ErrInvalidProblem, i, io)
		}
	}
	return nil
}
