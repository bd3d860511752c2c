// Package logger provides HTTP access logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AccessLogger records API requests.
type AccessLogger struct {
	*logrus.Entry
}

// NewAccessLogger creates a new access logger.
func NewAccessLogger(baseLogger *logrus.Logger) *AccessLogger {
	return &AccessLogger{
		Entry: baseLogger.WithField("component", "api"),
	}
}

// LogRequest logs a served request.
func (al *AccessLogger) LogRequest(requestID, method, path string, status int, durationMs float64, remoteAddr string) {
	entry := al.WithFields(logrus.Fields{
		"request_id":  requestID,
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": durationMs,
		"remote_addr": remoteAddr,
	})
	if status >= 500 {
		entry.Error("Request failed")
		return
	}
	entry.Info("Request served")
}

// LogRateLimited logs a rejected request.
func (al *AccessLogger) LogRateLimited(requestID, path, remoteAddr string) {
	al.WithFields(logrus.Fields{
		"request_id":  requestID,
		"path":        path,
		"remote_addr": remoteAddr,
	}).Warn("Request rate limited")
}
