package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/yourusername/kabu-screener/internal/database"
	"github.com/yourusername/kabu-screener/internal/models"
)

const (
	errScanBacktestResult = "failed to scan backtest result: %w"

	uniqueViolation = "23505"

	selectBacktestResult = `
		SELECT id, test_name, start_date, end_date, initial_capital, final_capital,
			total_return, annualized_return, volatility, sharpe_ratio, max_drawdown,
			win_rate, profit_factor, total_trades, winning_trades, losing_trades,
			parameters, created_at
		FROM backtest_results`
)

// PostgresBacktestResultRepository implements BacktestResultRepository for PostgreSQL
type PostgresBacktestResultRepository struct {
	q  querier
	tx transactor
}

// NewPostgresBacktestResultRepository creates a new backtest result repository
func NewPostgresBacktestResultRepository(db *database.DB) *PostgresBacktestResultRepository {
	return &PostgresBacktestResultRepository{q: db.GetPool(), tx: db}
}

// SaveBacktest stores a result and its trade log in one transaction.
// Either both are persisted or neither is.
func (r *PostgresBacktestResultRepository) SaveBacktest(ctx context.Context, result *models.BacktestResult, trades []models.Trade) error {
	return r.tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := saveResult(ctx, tx, result); err != nil {
			return err
		}
		return saveTradeLog(ctx, tx, result.ID, trades)
	})
}

func saveResult(ctx context.Context, q querier, result *models.BacktestResult) error {
	query := `
		INSERT INTO backtest_results (
			id, test_name, start_date, end_date, initial_capital, final_capital,
			total_return, annualized_return, volatility, sharpe_ratio, max_drawdown,
			win_rate, profit_factor, total_trades, winning_trades, losing_trades,
			parameters, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`

	_, err := q.Exec(ctx, query,
		result.ID, result.TestName, result.StartDate, result.EndDate,
		decimal.NewFromFloat(result.InitialCapital), decimal.NewFromFloat(result.FinalCapital),
		result.TotalReturn, result.AnnualizedReturn, result.Volatility, result.SharpeRatio, result.MaxDrawdown,
		result.WinRate, result.ProfitFactor, result.TotalTrades, result.WinningTrades, result.LosingTrades,
		[]byte(result.Parameters), result.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("backtest result %s: %w", result.ID, models.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to save backtest result: %w", err)
	}
	return nil
}

// saveTradeLog inserts trades in one batch, numbered in the given order
func saveTradeLog(ctx context.Context, q querier, resultID uuid.UUID, trades []models.Trade) (err error) {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO backtest_trades (
			result_id, seq, symbol, entry_date, exit_date, entry_price, exit_price,
			shares, position_value, pnl, pnl_percentage, exit_reason, score, signals,
			commission_paid, slippage_cost
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	for i, t := range trades {
		var exitPrice *decimal.Decimal
		if t.ExitDate != nil {
			p := decimal.NewFromFloat(t.ExitPrice).Round(4)
			exitPrice = &p
		}
		var exitReason *string
		if t.ExitReason != "" {
			reason := string(t.ExitReason)
			exitReason = &reason
		}
		signals := t.Signals
		if signals == nil {
			signals = []string{}
		}
		batch.Queue(query,
			resultID, i, t.Symbol, t.EntryDate, t.ExitDate,
			decimal.NewFromFloat(t.EntryPrice).Round(4), exitPrice,
			t.Shares,
			decimal.NewFromFloat(t.PositionValue).Round(2),
			decimal.NewFromFloat(t.PnL).Round(2),
			t.PnLPercentage, exitReason, t.Score, signals,
			decimal.NewFromFloat(t.CommissionPaid).Round(2),
			decimal.NewFromFloat(t.SlippageCost).Round(2),
		)
	}

	br := q.SendBatch(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close trade batch: %w", closeErr)
		}
	}()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert trade %d of result %s: %w", i, resultID, err)
		}
	}
	return nil
}

// GetByID retrieves one backtest result
func (r *PostgresBacktestResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestResult, error) {
	result, err := scanBacktestResult(r.q.QueryRow(ctx, selectBacktestResult+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("backtest result %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf(errScanBacktestResult, err)
	}
	return result, nil
}

// GetLatest retrieves latest backtest results
func (r *PostgresBacktestResultRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestResult, error) {
	rows, err := r.q.Query(ctx, selectBacktestResult+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest results: %w", err)
	}
	defer rows.Close()

	var results []*models.BacktestResult
	for rows.Next() {
		result, err := scanBacktestResult(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanBacktestResult, err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// GetTradeLog retrieves the trades of a result in their original order
func (r *PostgresBacktestResultRepository) GetTradeLog(ctx context.Context, resultID uuid.UUID) ([]models.Trade, error) {
	query := `
		SELECT symbol, entry_date, exit_date, entry_price, exit_price, shares, position_value,
			pnl, pnl_percentage, COALESCE(exit_reason, ''), score, signals, commission_paid, slippage_cost
		FROM backtest_trades WHERE result_id = $1 ORDER BY seq
	`
	rows, err := r.q.Query(ctx, query, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade log: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var reason string
		var entryPrice, positionValue, pnl, comm, slip decimal.Decimal
		var exitPrice decimal.NullDecimal
		if err := rows.Scan(
			&t.Symbol, &t.EntryDate, &t.ExitDate, &entryPrice, &exitPrice, &t.Shares, &positionValue,
			&pnl, &t.PnLPercentage, &reason, &t.Score, &t.Signals, &comm, &slip,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.ExitReason = models.ExitReason(reason)
		t.EntryPrice = entryPrice.InexactFloat64()
		if exitPrice.Valid {
			t.ExitPrice = exitPrice.Decimal.InexactFloat64()
		}
		t.PositionValue = positionValue.InexactFloat64()
		t.PnL = pnl.InexactFloat64()
		t.CommissionPaid = comm.InexactFloat64()
		t.SlippageCost = slip.InexactFloat64()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanBacktestResult(row pgx.Row) (*models.BacktestResult, error) {
	var (
		result         models.BacktestResult
		initial, final decimal.Decimal
		params         []byte
	)
	if err := row.Scan(
		&result.ID, &result.TestName, &result.StartDate, &result.EndDate, &initial, &final,
		&result.TotalReturn, &result.AnnualizedReturn, &result.Volatility, &result.SharpeRatio, &result.MaxDrawdown,
		&result.WinRate, &result.ProfitFactor, &result.TotalTrades, &result.WinningTrades, &result.LosingTrades,
		&params, &result.CreatedAt,
	); err != nil {
		return nil, err
	}
	result.InitialCapital = initial.InexactFloat64()
	result.FinalCapital = final.InexactFloat64()
	result.Parameters = params
	return &result, nil
}
