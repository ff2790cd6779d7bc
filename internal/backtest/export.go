package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/kabu-screener/internal/models"
)

// ResultStore is the persistence boundary for finished runs.
// SaveBacktest stores the record and its trades atomically.
type ResultStore interface {
	SaveBacktest(ctx context.Context, result *models.BacktestResult, trades []models.Trade) error
}

// ToRecord flattens a result into the persisted record. Money is rounded to whole yen.
func ToRecord(r *Result, testName string) (*models.BacktestResult, error) {
	params, err := json.Marshal(r.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	return &models.BacktestResult{
		ID:               uuid.New(),
		TestName:         testName,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		InitialCapital:   roundYen(r.InitialCapital),
		FinalCapital:     roundYen(r.FinalCapital),
		TotalReturn:      r.TotalReturn,
		AnnualizedReturn: r.AnnualizedReturn,
		Volatility:       r.Volatility,
		SharpeRatio:      r.SharpeRatio,
		MaxDrawdown:      r.MaxDrawdown,
		WinRate:          r.WinRate,
		ProfitFactor:     r.ProfitFactor,
		TotalTrades:      r.TotalTrades,
		WinningTrades:    r.WinningTrades,
		LosingTrades:     r.LosingTrades,
		Parameters:       params,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// ExportToDatabase saves the result record with its trade log and returns the new ID.
// On failure nothing is persisted and the ID is uuid.Nil.
func ExportToDatabase(ctx context.Context, store ResultStore, r *Result, testName string) (uuid.UUID, error) {
	if store == nil {
		return uuid.Nil, fmt.Errorf("result store is required")
	}
	record, err := ToRecord(r, testName)
	if err != nil {
		return uuid.Nil, err
	}
	if err := store.SaveBacktest(ctx, record, r.Trades); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save backtest %s: %w", record.ID, err)
	}
	return record.ID, nil
}

func roundYen(v float64) float64 {
	return decimal.NewFromFloat(v).Round(0).InexactFloat64()
}
