package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GenerateConsoleReport formats a result summary for terminal output
func GenerateConsoleReport(r *Result) string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	b.WriteString(rule + "\n")
	b.WriteString("Backtest Summary\n")
	b.WriteString(rule + "\n\n")

	b.WriteString("[Period]\n")
	fmt.Fprintf(&b, "Range:            %s to %s\n", r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "Initial Capital:  ¥%s\n", formatYen(r.InitialCapital))
	fmt.Fprintf(&b, "Final Capital:    ¥%s\n\n", formatYen(r.FinalCapital))

	b.WriteString("[Performance]\n")
	fmt.Fprintf(&b, "Total Return:     %.2f%%\n", r.TotalReturn*100)
	fmt.Fprintf(&b, "Annualized:       %.2f%%\n", r.AnnualizedReturn*100)
	fmt.Fprintf(&b, "Volatility:       %.2f%%\n", r.Volatility*100)
	fmt.Fprintf(&b, "Sharpe Ratio:     %.2f\n", r.SharpeRatio)
	fmt.Fprintf(&b, "Max Drawdown:     %.2f%%\n\n", r.MaxDrawdown*100)

	if r.TotalTrades > 0 {
		b.WriteString("[Trades]\n")
		fmt.Fprintf(&b, "Total:            %d\n", r.TotalTrades)
		fmt.Fprintf(&b, "Winning:          %d (%.1f%%)\n", r.WinningTrades, r.WinRate*100)
		fmt.Fprintf(&b, "Losing:           %d\n", r.LosingTrades)
		fmt.Fprintf(&b, "Average Win:      ¥%s\n", formatYen(r.AverageWin))
		fmt.Fprintf(&b, "Average Loss:     ¥%s\n", formatYen(r.AverageLoss))
		fmt.Fprintf(&b, "Largest Win:      ¥%s\n", formatYen(r.LargestWin))
		fmt.Fprintf(&b, "Largest Loss:     ¥%s\n", formatYen(r.LargestLoss))
		fmt.Fprintf(&b, "Profit Factor:    %.2f\n", r.ProfitFactor)
		fmt.Fprintf(&b, "Costs:            commission ¥%s, slippage ¥%s\n\n", formatYen(r.TotalCommission), formatYen(r.TotalSlippage))
	}

	b.WriteString("[Parameters]\n")
	for _, key := range []string{"max_positions", "position_size", "stop_loss_pct", "take_profit_pct", "holding_period_limit_days", "entry_threshold"} {
		if v, ok := r.Parameters[key]; ok {
			fmt.Fprintf(&b, "%-26s %v\n", key+":", v)
		}
	}
	b.WriteString("\n" + rule + "\n")
	return b.String()
}

// formatYen renders v rounded to whole yen with thousands separators
func formatYen(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if s == "0" {
		sign = ""
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return sign + string(out)
}

// GenerateTradesCSV writes the trade list
func GenerateTradesCSV(r *Result, outputPath string) (err error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", outputPath, cerr)
		}
	}()
	return WriteTradesCSV(f, r)
}

// WriteTradesCSV writes the trade list as CSV with a header row
func WriteTradesCSV(out io.Writer, r *Result) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"symbol", "entry_date", "exit_date", "entry_price", "exit_price", "shares",
		"pnl", "pnl_percentage", "exit_reason", "score", "signals", "commission_paid", "slippage_cost"}); err != nil {
		return err
	}
	for _, t := range r.Trades {
		exit := ""
		if t.ExitDate != nil {
			exit = t.ExitDate.Format("2006-01-02")
		}
		if err := w.Write([]string{
			t.Symbol,
			t.EntryDate.Format("2006-01-02"),
			exit,
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			strconv.FormatInt(t.Shares, 10),
			formatFloat(t.PnL),
			formatFloat(t.PnLPercentage),
			string(t.ExitReason),
			formatFloat(t.Score),
			strings.Join(t.Signals, ", "),
			formatFloat(t.CommissionPaid),
			formatFloat(t.SlippageCost),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// GenerateEquityCSV writes the daily equity series
func GenerateEquityCSV(r *Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte(r.DailyEquity.ToCSV()), 0o644)
}

// ExportToJSON writes the full result, trades and equity included
func ExportToJSON(r *Result, outputPath string) error {
	if outputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// ReportFiles lists what SaveDetailedReport wrote
type ReportFiles struct {
	Trades  string
	Equity  string
	Summary string
	JSON    string
}

// SaveDetailedReport writes trades, equity, summary and JSON files stamped with now
func SaveDetailedReport(r *Result, outputDir string, now time.Time) (ReportFiles, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return ReportFiles{}, fmt.Errorf("failed to create output directory: %w", err)
	}
	stamp := now.Format("20060102_150405")
	files := ReportFiles{
		Equity:  filepath.Join(outputDir, "equity_curve_"+stamp+".csv"),
		Summary: filepath.Join(outputDir, "summary_"+stamp+".txt"),
		JSON:    filepath.Join(outputDir, "result_"+stamp+".json"),
	}

	if len(r.Trades) > 0 {
		files.Trades = filepath.Join(outputDir, "trades_"+stamp+".csv")
		if err := GenerateTradesCSV(r, files.Trades); err != nil {
			return files, fmt.Errorf("failed to write trades: %w", err)
		}
	}
	if err := GenerateEquityCSV(r, files.Equity); err != nil {
		return files, fmt.Errorf("failed to write equity curve: %w", err)
	}
	if err := os.WriteFile(files.Summary, []byte(GenerateConsoleReport(r)), 0o644); err != nil {
		return files, fmt.Errorf("failed to write summary: %w", err)
	}
	if err := ExportToJSON(r, files.JSON); err != nil {
		return files, err
	}
	return files, nil
}
