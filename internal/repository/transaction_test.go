package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx buffers writes until its transactor commits them.
// Methods not overridden panic through the nil embedded interface.
type fakeTx struct {
	pgx.Tx
	pending   []string
	failTrade int
}

func (f *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.pending = append(f.pending, "backtest_results")
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	table := "backtest_trades"
	if len(b.QueuedQueries) > 0 && strings.Contains(b.QueuedQueries[0].SQL, "screening_results") {
		table = "screening_results"
	}
	return &fakeBatch{tx: f, table: table}
}

type fakeBatch struct {
	pgx.BatchResults
	tx    *fakeTx
	table string
	n     int
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) {
	b.n++
	if b.n == b.tx.failTrade {
		return pgconn.CommandTag{}, fmt.Errorf(`new row violates check constraint "%s_check"`, b.table)
	}
	b.tx.pending = append(b.tx.pending, b.table)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *fakeBatch) Close() error { return nil }

type fakeTransactor struct {
	committed  []string
	failTrade  int
	rolledBack bool
}

func (f *fakeTransactor) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx := &fakeTx{failTrade: f.failTrade}
	if err := fn(tx); err != nil {
		f.rolledBack = true
		return err
	}
	f.committed = append(f.committed, tx.pending...)
	return nil
}

func TestSaveBacktestIsAtomic(t *testing.T) {
	tests := []struct {
		name       string
		failTrade  int
		wantErr    bool
		wantStored []string
	}{
		{"all rows committed", 0, false, []string{"backtest_results", "backtest_trades", "backtest_trades"}},
		{"first trade fails", 1, true, nil},
		{"last trade fails", 2, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &fakeTransactor{failTrade: tt.failTrade}
			repo := &PostgresBacktestResultRepository{tx: tx}

			err := repo.SaveBacktest(context.Background(), sampleRecord(), sampleTrades())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "check constraint")
				assert.True(t, tx.rolledBack)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStored, tx.committed)
		})
	}
}

func TestSaveBacktestWithoutTrades(t *testing.T) {
	tx := &fakeTransactor{}
	repo := &PostgresBacktestResultRepository{tx: tx}

	require.NoError(t, repo.SaveBacktest(context.Background(), sampleRecord(), nil))
	assert.Equal(t, []string{"backtest_results"}, tx.committed)
}

func TestSaveScreeningIsAtomic(t *testing.T) {
	rows := sampleScreening()

	tx := &fakeTransactor{}
	repo := &PostgresScreeningResultRepository{tx: tx}
	require.NoError(t, repo.SaveScreening(context.Background(), rows))
	assert.Equal(t, []string{"screening_results", "screening_results"}, tx.committed)

	tx = &fakeTransactor{failTrade: 2}
	repo = &PostgresScreeningResultRepository{tx: tx}
	err := repo.SaveScreening(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rank 2")
	assert.True(t, tx.rolledBack)
	assert.Empty(t, tx.committed)

	tx = &fakeTransactor{}
	repo = &PostgresScreeningResultRepository{tx: tx}
	require.NoError(t, repo.SaveScreening(context.Background(), nil))
	assert.False(t, tx.rolledBack)
	assert.Empty(t, tx.committed)
}
