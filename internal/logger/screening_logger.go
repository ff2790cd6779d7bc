// Package logger provides screening logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ScreeningLogger provides dedicated logging for live screening runs.
type ScreeningLogger struct {
	*logrus.Entry
}

// NewScreeningLogger creates a new screening logger.
func NewScreeningLogger(baseLogger *logrus.Logger) *ScreeningLogger {
	return &ScreeningLogger{
		Entry: baseLogger.WithField("component", "screening"),
	}
}

// LogCandidate logs a candidate that passed the filters.
func (sl *ScreeningLogger) LogCandidate(symbol string, score float64, signals, warnings []string) {
	sl.WithFields(logrus.Fields{
		"symbol":   symbol,
		"score":    score,
		"signals":  signals,
		"warnings": warnings,
	}).Info("Screening candidate")
}

// LogFiltered logs a symbol dropped by a filter.
func (sl *ScreeningLogger) LogFiltered(symbol, reason string) {
	sl.WithFields(logrus.Fields{
		"symbol": symbol,
		"reason": reason,
	}).Debug("Symbol filtered out")
}

// LogRunCompleted logs the summary of a screening run.
func (sl *ScreeningLogger) LogRunCompleted(asOf time.Time, evaluated, passed int, duration time.Duration) {
	sl.WithFields(logrus.Fields{
		"as_of":       asOf.Format("2006-01-02"),
		"evaluated":   evaluated,
		"passed":      passed,
		"duration_ms": duration.Milliseconds(),
	}).Info("Screening run completed")
}
