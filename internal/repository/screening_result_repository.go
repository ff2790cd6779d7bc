package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/yourusername/kabu-screener/internal/database"
	"github.com/yourusername/kabu-screener/internal/models"
)

const selectScreeningResult = `
	SELECT run_id, as_of, rank, symbol, total_score, current_price, gap_ratio, volume_ratio,
		market_cap, rsi, signals, warnings, risk_level, created_at
	FROM screening_results`

// PostgresScreeningResultRepository implements ScreeningResultRepository for PostgreSQL
type PostgresScreeningResultRepository struct {
	q  querier
	tx transactor
}

// NewPostgresScreeningResultRepository creates a new screening result repository
func NewPostgresScreeningResultRepository(db *database.DB) *PostgresScreeningResultRepository {
	return &PostgresScreeningResultRepository{q: db.GetPool(), tx: db}
}

// SaveScreening inserts every row of a run in one transaction
func (r *PostgresScreeningResultRepository) SaveScreening(ctx context.Context, rows []models.ScreeningResult) error {
	if len(rows) == 0 {
		return nil
	}
	return r.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		return saveScreeningRows(ctx, tx, rows)
	})
}

func saveScreeningRows(ctx context.Context, q querier, rows []models.ScreeningResult) (err error) {
	const query = `
		INSERT INTO screening_results (
			run_id, as_of, rank, symbol, total_score, current_price, gap_ratio, volume_ratio,
			market_cap, rsi, signals, warnings, risk_level, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	batch := &pgx.Batch{}
	for _, row := range rows {
		var marketCap *decimal.Decimal
		if row.MarketCap != nil {
			v := decimal.NewFromFloat(*row.MarketCap).Round(0)
			marketCap = &v
		}
		batch.Queue(query,
			row.RunID, row.AsOf, row.Rank, row.Symbol, row.TotalScore,
			decimal.NewFromFloat(row.CurrentPrice).Round(4),
			row.GapRatio, row.VolumeRatio, marketCap, row.RSI,
			nonNil(row.Signals), nonNil(row.Warnings), row.RiskLevel, row.CreatedAt,
		)
	}

	br := q.SendBatch(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close screening batch: %w", closeErr)
		}
	}()

	for _, row := range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert rank %d of run %s: %w", row.Rank, row.RunID, err)
		}
	}
	return nil
}

// GetRun retrieves the rows of one run in rank order
func (r *PostgresScreeningResultRepository) GetRun(ctx context.Context, runID uuid.UUID) ([]models.ScreeningResult, error) {
	rows, err := r.q.Query(ctx, selectScreeningResult+` WHERE run_id = $1 ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query screening run: %w", err)
	}
	return collectScreeningRows(rows)
}

// GetLatestRun retrieves the most recently stored run, or models.ErrNotFound
func (r *PostgresScreeningResultRepository) GetLatestRun(ctx context.Context) ([]models.ScreeningResult, error) {
	rows, err := r.q.Query(ctx, selectScreeningResult+`
		WHERE run_id = (SELECT run_id FROM screening_results ORDER BY created_at DESC LIMIT 1)
		ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest screening run: %w", err)
	}
	results, err := collectScreeningRows(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("screening run: %w", models.ErrNotFound)
	}
	return results, nil
}

func collectScreeningRows(rows pgx.Rows) ([]models.ScreeningResult, error) {
	defer rows.Close()

	var results []models.ScreeningResult
	for rows.Next() {
		var (
			s         models.ScreeningResult
			price     decimal.Decimal
			marketCap decimal.NullDecimal
		)
		if err := rows.Scan(
			&s.RunID, &s.AsOf, &s.Rank, &s.Symbol, &s.TotalScore, &price, &s.GapRatio, &s.VolumeRatio,
			&marketCap, &s.RSI, &s.Signals, &s.Warnings, &s.RiskLevel, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan screening result: %w", err)
		}
		s.CurrentPrice = price.InexactFloat64()
		if marketCap.Valid {
			v := marketCap.Decimal.InexactFloat64()
			s.MarketCap = &v
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
