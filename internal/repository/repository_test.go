package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kabu-screener/internal/backtest"
	"github.com/yourusername/kabu-screener/internal/database"
	"github.com/yourusername/kabu-screener/internal/models"
	"github.com/yourusername/kabu-screener/internal/screener"
)

var (
	_ backtest.ResultStore = (*PostgresBacktestResultRepository)(nil)
	_ screener.ReportStore = (*PostgresScreeningResultRepository)(nil)
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func sampleRecord() *models.BacktestResult {
	return &models.BacktestResult{
		ID:               uuid.New(),
		TestName:         "january",
		StartDate:        date("2023-01-01"),
		EndDate:          date("2023-01-31"),
		InitialCapital:   1_000_000,
		FinalCapital:     1_042_910,
		TotalReturn:      0.04291,
		AnnualizedReturn: 0.61,
		Volatility:       0.12,
		SharpeRatio:      5.1,
		MaxDrawdown:      -0.015,
		WinRate:          0.5,
		ProfitFactor:     2.3,
		TotalTrades:      2,
		WinningTrades:    1,
		LosingTrades:     1,
		Parameters:       json.RawMessage(`{"max_positions":5}`),
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func sampleTrades() []models.Trade {
	exit1 := date("2023-01-06")
	exit2 := date("2023-01-13")
	return []models.Trade{
		{Symbol: "7203.T", EntryDate: date("2023-01-04"), ExitDate: &exit1, EntryPrice: 1001, ExitPrice: 1088.91,
			Shares: 500, PositionValue: 500500, PnL: 42910.05, PnLPercentage: 8.57, ExitReason: models.ExitReasonTakeProfit,
			Score: 90, Signals: []string{"volume_surge", "gap_up_moderate"}, CommissionPaid: 1044.96, SlippageCost: 1045},
		{Symbol: "6758.T", EntryDate: date("2023-01-10"), ExitDate: &exit2, EntryPrice: 2502.5, ExitPrice: 2372.63,
			Shares: 100, PositionValue: 250250, PnL: -13474.27, PnLPercentage: -5.38, ExitReason: models.ExitReasonStopLoss,
			Score: 74},
	}
}

func sampleScreening() []models.ScreeningResult {
	runID := uuid.New()
	marketCap := 3.5e13
	rsi := 71.2
	created := time.Now().UTC().Truncate(time.Microsecond)
	return []models.ScreeningResult{
		{RunID: runID, AsOf: date("2024-03-15"), Rank: 1, Symbol: "7203.T", TotalScore: 94, CurrentPrice: 1060,
			GapRatio: 0.03, VolumeRatio: 4, MarketCap: &marketCap, RSI: &rsi,
			Signals: []string{"volume_surge", "gap_up_moderate"}, RiskLevel: "medium", CreatedAt: created},
		{RunID: runID, AsOf: date("2024-03-15"), Rank: 2, Symbol: "6758.T", TotalScore: 74, CurrentPrice: 12850.5,
			GapRatio: 0.01, VolumeRatio: 1.6, Warnings: []string{"abnormal_volume"}, RiskLevel: "low", CreatedAt: created},
	}
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func TestBacktestResultRoundTrip(t *testing.T) {
	db := database.SetupTestDB(t)
	database.TruncateTables(t, db, "backtest_results")

	repos, err := NewRepositories(db)
	require.NoError(t, err)
	repo := repos.BacktestResult

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record := sampleRecord()
	require.NoError(t, repo.SaveBacktest(ctx, record, sampleTrades()))

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.TestName, got.TestName)
	assert.Equal(t, record.FinalCapital, got.FinalCapital)
	assert.Equal(t, record.MaxDrawdown, got.MaxDrawdown)
	assert.JSONEq(t, string(record.Parameters), string(got.Parameters))

	trades, err := repo.GetTradeLog(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "7203.T", trades[0].Symbol)
	assert.Equal(t, models.ExitReasonStopLoss, trades[1].ExitReason)
	assert.InDelta(t, -13474.27, trades[1].PnL, 1e-9)
	assert.Equal(t, []string{"volume_surge", "gap_up_moderate"}, trades[0].Signals)
	assert.Empty(t, trades[1].Signals)

	latest, err := repo.GetLatest(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, record.ID, latest[0].ID)

	err = repo.SaveBacktest(ctx, record, nil)
	assert.True(t, errors.Is(err, models.ErrDuplicateKey))
}

func TestSaveBacktestRollsBackOnTradeFailure(t *testing.T) {
	db := database.SetupTestDB(t)
	repo := NewPostgresBacktestResultRepository(db)
	ctx := context.Background()

	record := sampleRecord()
	trades := sampleTrades()
	trades[1].Shares = 0 // violates shares > 0

	err := repo.SaveBacktest(ctx, record, trades)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert trade 1")

	_, err = repo.GetByID(ctx, record.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	saved, err := repo.GetTradeLog(ctx, record.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestGetByIDNotFound(t *testing.T) {
	db := database.SetupTestDB(t)
	repo := NewPostgresBacktestResultRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExportThroughRepository(t *testing.T) {
	db := database.SetupTestDB(t)
	repo := NewPostgresBacktestResultRepository(db)

	exit := date("2023-01-06")
	result := &backtest.Result{
		StartDate: date("2023-01-01"), EndDate: date("2023-01-10"),
		InitialCapital: 1_000_000, FinalCapital: 1_000_500.4,
		TotalTrades: 1, WinningTrades: 1, WinRate: 1,
		Parameters: map[string]any{"lot_size": 100},
		Trades: []models.Trade{{Symbol: "7203.T", EntryDate: date("2023-01-02"), ExitDate: &exit,
			EntryPrice: 1001, ExitPrice: 1010, Shares: 100, PositionValue: 100100, PnL: 500.4,
			ExitReason: models.ExitReasonBacktestEnd}},
	}

	id, err := backtest.ExportToDatabase(context.Background(), repo, result, "smoke")
	require.NoError(t, err)

	saved, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1_000_500.0, saved.FinalCapital)
}

func TestScreeningResultRoundTrip(t *testing.T) {
	db := database.SetupTestDB(t)
	database.TruncateTables(t, db, "screening_results")
	repo := NewPostgresScreeningResultRepository(db)
	ctx := context.Background()

	_, err := repo.GetLatestRun(ctx)
	assert.ErrorIs(t, err, models.ErrNotFound)

	rows := sampleScreening()
	require.NoError(t, repo.SaveScreening(ctx, rows))

	got, err := repo.GetLatestRun(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rows[0].RunID, got[0].RunID)
	assert.Equal(t, "7203.T", got[0].Symbol)
	require.NotNil(t, got[0].MarketCap)
	assert.Equal(t, 3.5e13, *got[0].MarketCap)
	assert.InDelta(t, 71.2, *got[0].RSI, 1e-9)
	assert.Nil(t, got[1].MarketCap)
	assert.Nil(t, got[1].RSI)
	assert.Equal(t, 12850.5, got[1].CurrentPrice)
	assert.Empty(t, got[1].Signals)
	assert.Equal(t, []string{"abnormal_volume"}, got[1].Warnings)

	byID, err := repo.GetRun(ctx, rows[0].RunID)
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	// a duplicate rank aborts the whole run
	dup := sampleScreening()
	dup[1].Rank = 1
	require.Error(t, repo.SaveScreening(ctx, dup))
	stored, err := repo.GetRun(ctx, dup[0].RunID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
