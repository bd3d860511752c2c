// Package logger provides solver-specific logging.
package logger

import (
	"strconv"

	"github.com/sirupsen/logrus"
)

// SolverLogger provides dedicated logging for de-margining operations.
type SolverLogger struct {
	*logrus.Entry
}

// NewSolverLogger creates a new solver logger.
func NewSolverLogger(baseLogger *logrus.Logger) *SolverLogger {
	return &SolverLogger{
		Entry: baseLogger.WithField("component", "shin"),
	}
}

// LogSolve logs a completed solve.
func (sl *SolverLogger) LogSolve(outcomes int, z, delta float64, iterations int, cached bool, durationMs float64) {
	sl.WithFields(logrus.Fields{
		"outcomes":          outcomes,
		"z":                 z,
		"delta":             delta,
		"iterations":        iterations,
		"cached":            cached,
		"solve_duration_ms": durationMs,
	}).Debug("Shin solve completed")
}

// LogNonFinite logs a solve whose result contains NaN or Inf. Values are
// written as strings because JSON cannot encode them.
func (sl *SolverLogger) LogNonFinite(outcomes int, sumInverseOdds, z, delta float64, iterations int) {
	sl.WithFields(logrus.Fields{
		"outcomes":         outcomes,
		"sum_inverse_odds": formatFloat(sumInverseOdds),
		"z":                formatFloat(z),
		"delta":            formatFloat(delta),
		"iterations":       iterations,
	}).Warn("Shin solve produced non-finite result")
}

// LogRaceDemargined logs probabilities computed for a stored race.
func (sl *SolverLogger) LogRaceDemargined(raceID string, runners, skipped int, z float64, iterations int, overround float64) {
	sl.WithFields(logrus.Fields{
		"race_id":         raceID,
		"runners":         runners,
		"runners_skipped": skipped,
		"z":               z,
		"iterations":      iterations,
		"overround":       overround,
	}).Info("Race de-margined")
}

// LogRaceFailed logs a race that could not be de-margined.
func (sl *SolverLogger) LogRaceFailed(raceID string, err error) {
	sl.WithFields(logrus.Fields{
		"race_id": raceID,
	}).WithError(err).Warn("Race de-margining failed")
}

// LogCacheStats logs result cache statistics.
func (sl *SolverLogger) LogCacheStats(hits, misses uint64, ratio float64, items int) {
	sl.WithFields(logrus.Fields{
		"cache_hits":      hits,
		"cache_misses":    misses,
		"cache_hit_ratio": ratio,
		"cache_items":     items,
	}).Info("Result cache statistics")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
