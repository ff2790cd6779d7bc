package backtest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kabu-screener/internal/models"
)

func sampleResult() *Result {
	exit := d("2023-01-06")
	return &Result{
		StartDate:        d("2023-01-01"),
		EndDate:          d("2023-01-10"),
		InitialCapital:   1_000_000,
		FinalCapital:     1_042_910.045,
		TotalReturn:      0.042910045,
		AnnualizedReturn: 4.1,
		MaxDrawdown:      -0.012,
		TotalTrades:      1,
		WinningTrades:    1,
		WinRate:          1,
		AverageWin:       42910.045,
		LargestWin:       42910.045,
		TotalCommission:  1044.955,
		TotalSlippage:    1045,
		Parameters:       scenarioConfig("7203.T").Parameters(),
		Trades: []models.Trade{{
			Symbol: "7203.T", EntryDate: d("2023-01-02"), ExitDate: &exit,
			EntryPrice: 1001, ExitPrice: 1088.91, Shares: 500, PositionValue: 500500,
			PnL: 42910.045, PnLPercentage: 8.573, ExitReason: models.ExitReasonTakeProfit,
			Signals: []string{"volume_surge", "gap_up"}, Score: 90, CommissionPaid: 1044.955, SlippageCost: 1045,
		}},
		DailyEquity: curve(1_000_000, 1_010_000, 1_040_000),
	}
}

func TestFormatYen(t *testing.T) {
	tests := map[float64]string{
		0:            "0",
		999:          "999",
		1000:         "1,000",
		1_042_910.04: "1,042,910",
		-31940.03:    "-31,940",
		-0.2:         "0",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, formatYen(in), "formatYen(%v)", in)
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	report := GenerateConsoleReport(sampleResult())

	assert.Contains(t, report, "Range:            2023-01-01 to 2023-01-10")
	assert.Contains(t, report, "Final Capital:    ¥1,042,910")
	assert.Contains(t, report, "Total Return:     4.29%")
	assert.Contains(t, report, "Max Drawdown:     -1.20%")
	assert.Contains(t, report, "Winning:          1 (100.0%)")
	assert.Contains(t, report, "max_positions:")

	empty := sampleResult()
	empty.TotalTrades = 0
	assert.NotContains(t, GenerateConsoleReport(empty), "[Trades]")
}

func TestSaveDetailedReport(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2023, 1, 11, 15, 4, 5, 0, time.UTC)

	files, err := SaveDetailedReport(sampleResult(), filepath.Join(dir, "out"), now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "trades_20230111_150405.csv"), files.Trades)

	f, err := os.Open(files.Trades)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "symbol", rows[0][0])
	assert.Equal(t, []string{"7203.T", "2023-01-02", "2023-01-06", "1001.00", "1088.91", "500"}, rows[1][:6])
	assert.Equal(t, "take_profit", rows[1][8])
	assert.Equal(t, "volume_surge, gap_up", rows[1][10])

	equity, err := os.ReadFile(files.Equity)
	require.NoError(t, err)
	assert.Contains(t, string(equity), "2023-01-04,1040000.00,1040000.00,0")

	data, err := os.ReadFile(files.JSON)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1042910.045, decoded["final_capital"])
	assert.Len(t, decoded["trades"], 1)

	summary, err := os.ReadFile(files.Summary)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Backtest Summary")
}

func TestSaveDetailedReportWithoutTrades(t *testing.T) {
	r := sampleResult()
	r.Trades = nil

	files, err := SaveDetailedReport(r, t.TempDir(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, files.Trades)
	assert.FileExists(t, files.Equity)
}

type failingWriter struct{ err error }

func (w failingWriter) Write(p []byte) (int, error) { return 0, w.err }

func TestWriteTradesCSVPropagatesWriteErrors(t *testing.T) {
	diskFull := errors.New("no space left on device")
	err := WriteTradesCSV(failingWriter{err: diskFull}, sampleResult())
	assert.ErrorIs(t, err, diskFull)
}

func TestGenerateTradesCSVUnwritablePath(t *testing.T) {
	// a regular file where the parent directory should be
	parent := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(parent, nil, 0o644))

	assert.Error(t, GenerateTradesCSV(sampleResult(), filepath.Join(parent, "trades.csv")))
}

func TestExportToJSONRequiresPath(t *testing.T) {
	assert.Error(t, ExportToJSON(sampleResult(), ""))
}

// memoryStore commits a result and its trades together, or nothing on failure
type memoryStore struct {
	saved   *models.BacktestResult
	trades  map[uuid.UUID][]models.Trade
	failing error
}

func (m *memoryStore) SaveBacktest(ctx context.Context, result *models.BacktestResult, trades []models.Trade) error {
	if m.failing != nil {
		return m.failing
	}
	if m.trades == nil {
		m.trades = make(map[uuid.UUID][]models.Trade)
	}
	m.saved = result
	m.trades[result.ID] = trades
	return nil
}

func TestToRecord(t *testing.T) {
	record, err := ToRecord(sampleResult(), "january")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, "january", record.TestName)
	assert.Equal(t, 1_042_910.0, record.FinalCapital)
	assert.Equal(t, 1_000_000.0, record.InitialCapital)
	assert.Equal(t, 1, record.WinningTrades)

	var params map[string]any
	require.NoError(t, json.Unmarshal(record.Parameters, &params))
	assert.Equal(t, "2023-01-01", params["start_date"])
	assert.Equal(t, []any{"7203.T"}, params["universe"])
}

func TestExportToDatabase(t *testing.T) {
	store := &memoryStore{}
	id, err := ExportToDatabase(context.Background(), store, sampleResult(), "january")
	require.NoError(t, err)

	require.NotNil(t, store.saved)
	assert.Equal(t, id, store.saved.ID)
	assert.Len(t, store.trades[id], 1)

	_, err = ExportToDatabase(context.Background(), nil, sampleResult(), "x")
	assert.Error(t, err)

	failing := &memoryStore{failing: errors.New("batch insert failed")}
	id, err = ExportToDatabase(context.Background(), failing, sampleResult(), "x")
	require.Error(t, err)
	assert.ErrorContains(t, err, "batch insert failed")
	assert.Equal(t, uuid.Nil, id, "a failed save must not hand back an ID")
	assert.Nil(t, failing.saved)
	assert.Empty(t, failing.trades)
}
