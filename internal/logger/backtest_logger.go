// Package logger provides backtest logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// BacktestLogger records simulated fills and run lifecycle events.
type BacktestLogger struct {
	*logrus.Entry
}

// NewBacktestLogger creates a new backtest logger.
func NewBacktestLogger(baseLogger *logrus.Logger) *BacktestLogger {
	return &BacktestLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogEntry logs an opened position.
func (bl *BacktestLogger) LogEntry(symbol string, date time.Time, price float64, shares int64, score float64, signals []string) {
	bl.WithFields(logrus.Fields{
		"symbol":      symbol,
		"date":        date.Format("2006-01-02"),
		"entry_price": price,
		"shares":      shares,
		"score":       score,
		"signals":     signals,
	}).Info("Position opened")
}

// LogExit logs a closed position.
func (bl *BacktestLogger) LogExit(symbol string, date time.Time, price, pnl, pnlPct float64, reason string) {
	bl.WithFields(logrus.Fields{
		"symbol":         symbol,
		"date":           date.Format("2006-01-02"),
		"exit_price":     price,
		"pnl":            pnl,
		"pnl_percentage": pnlPct,
		"exit_reason":    reason,
	}).Info("Position closed")
}

// LogRejectedEntry logs an entry that could not be funded.
func (bl *BacktestLogger) LogRejectedEntry(symbol string, date time.Time, required, cash float64) {
	bl.WithFields(logrus.Fields{
		"symbol":   symbol,
		"date":     date.Format("2006-01-02"),
		"required": required,
		"cash":     cash,
	}).Debug("Entry rejected: insufficient cash")
}

// LogDailyEquity logs the mark-to-market valuation for a trading day.
func (bl *BacktestLogger) LogDailyEquity(date time.Time, cash, equity float64, openPositions int) {
	bl.WithFields(logrus.Fields{
		"date":           date.Format("2006-01-02"),
		"cash":           cash,
		"equity":         equity,
		"open_positions": openPositions,
	}).Debug("Daily equity recorded")
}

// LogRunStarted logs the start of a backtest run.
func (bl *BacktestLogger) LogRunStarted(start, end time.Time, symbols int, initialCapital float64) {
	bl.WithFields(logrus.Fields{
		"start_date":      start.Format("2006-01-02"),
		"end_date":        end.Format("2006-01-02"),
		"symbols":         symbols,
		"initial_capital": initialCapital,
	}).Info("Backtest started")
}

// LogRunCompleted logs the headline numbers of a finished run.
func (bl *BacktestLogger) LogRunCompleted(finalCapital, totalReturn float64, trades int, duration time.Duration) {
	bl.WithFields(logrus.Fields{
		"final_capital": finalCapital,
		"total_return":  totalReturn,
		"total_trades":  trades,
		"duration_ms":   duration.Milliseconds(),
	}).Info("Backtest completed")
}

// LogDataUnavailable logs a symbol dropped for lack of history.
func (bl *BacktestLogger) LogDataUnavailable(symbol string, err error) {
	bl.WithFields(logrus.Fields{
		"symbol": symbol,
		"error":  err,
	}).Warn("Market data unavailable, skipping symbol")
}
