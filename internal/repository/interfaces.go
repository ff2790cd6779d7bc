package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/kabu-screener/internal/models"
)

// BacktestResultRepository defines the interface for backtest result data access
type BacktestResultRepository interface {
	SaveBacktest(ctx context.Context, result *models.BacktestResult, trades []models.Trade) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error)
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error)
	GetTradeLog(ctx context.Context, resultID uuid.UUID) ([]models.Trade, error)
}

// ScreeningResultRepository defines the interface for persisted screening runs
type ScreeningResultRepository interface {
	SaveScreening(ctx context.Context, rows []models.ScreeningResult) error
	GetRun(ctx context.Context, runID uuid.UUID) ([]models.ScreeningResult, error)
	GetLatestRun(ctx context.Context) ([]models.ScreeningResult, error)
}
