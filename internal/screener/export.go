package screener

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/kabu-screener/internal/models"
)

// ReportStore persists the ranked candidates of one run atomically
type ReportStore interface {
	SaveScreening(ctx context.Context, rows []models.ScreeningResult) error
}

// ToRecords flattens the ranked candidates into rows sharing one run ID
func (r *Report) ToRecords(runID uuid.UUID, now time.Time) []models.ScreeningResult {
	rows := make([]models.ScreeningResult, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		row := models.ScreeningResult{
			RunID:        runID,
			AsOf:         r.AsOf,
			Rank:         c.Rank,
			Symbol:       c.Result.Symbol,
			TotalScore:   c.Result.Total,
			CurrentPrice: c.Snapshot.CurrentPrice,
			GapRatio:     c.Snapshot.GapRatio,
			VolumeRatio:  c.Snapshot.VolumeRatio,
			MarketCap:    c.Snapshot.MarketCap,
			Signals:      append([]string{}, c.Result.Signals...),
			Warnings:     append([]string{}, c.Result.Warnings...),
			RiskLevel:    string(c.Risk.Level),
			CreatedAt:    now,
		}
		if t := c.Snapshot.Technical; t != nil && t.RSI != nil {
			rsi := t.RSI.Value
			row.RSI = &rsi
		}
		rows = append(rows, row)
	}
	return rows
}

// SaveReport stores the report's candidates under a new run ID and returns it.
// A report with no candidates is not stored and returns uuid.Nil.
func SaveReport(ctx context.Context, store ReportStore, r *Report) (uuid.UUID, error) {
	if store == nil {
		return uuid.Nil, fmt.Errorf("report store is required")
	}
	if len(r.Candidates) == 0 {
		return uuid.Nil, nil
	}
	runID := uuid.New()
	if err := store.SaveScreening(ctx, r.ToRecords(runID, time.Now().UTC())); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save screening run %s: %w", runID, err)
	}
	return runID, nil
}
