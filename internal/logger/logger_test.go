package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &bytes.Buffer{}

	log := NewLoggerWithOutput(buf, "debug", "development")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)

	log = NewLoggerWithOutput(buf, "nonsense", "production")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
	assert.Contains(t, buf.String(), "Invalid log level")
}

func TestSolverLoggerSolve(t *testing.T) {
	log, buf := setupTestLogger()
	solverLogger := NewSolverLogger(log)

	solverLogger.LogSolve(3, 0.0169, 1e-13, 426, false, 0.02)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "shin", logEntry["component"])
	assert.Equal(t, float64(3), logEntry["outcomes"])
	assert.Equal(t, float64(426), logEntry["iterations"])
	assert.Equal(t, false, logEntry["cached"])
}

func TestSolverLoggerNonFinite(t *testing.T) {
	log, buf := setupTestLogger()
	solverLogger := NewSolverLogger(log)

	solverLogger.LogNonFinite(2, 1.1, math.NaN(), math.Inf(1), 3)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry, "non-finite values must still produce valid JSON")
	assert.Equal(t, "NaN", logEntry["z"])
	assert.Equal(t, "+Inf", logEntry["delta"])
	assert.Equal(t, "warning", logEntry["level"])
}

func TestSolverLoggerRaceEvents(t *testing.T) {
	log, buf := setupTestLogger()
	solverLogger := NewSolverLogger(log)

	solverLogger.LogRaceDemargined("race_123", 8, 1, 0.021, 12, 0.14)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "race_123", logEntry["race_id"])
	assert.Equal(t, float64(1), logEntry["runners_skipped"])

	buf.Reset()
	solverLogger.LogRaceFailed("race_456", errors.New("no prices"))

	logEntry = parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "no prices", logEntry["error"])
}

func TestAccessLoggerRequest(t *testing.T) {
	log, buf := setupTestLogger()
	accessLogger := NewAccessLogger(log)

	accessLogger.LogRequest("req-1", "POST", "/v1/implied-probabilities", 200, 1.5, "127.0.0.1:5000")

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "api", logEntry["component"])
	assert.Equal(t, "info", logEntry["level"])

	buf.Reset()
	accessLogger.LogRequest("req-2", "POST", "/v1/implied-probabilities", 500, 1.5, "127.0.0.1:5000")

	logEntry = parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
}
