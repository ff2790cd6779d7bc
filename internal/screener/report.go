package screener

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/yourusername/kabu-screener/internal/scoring"
)

// WriteTable renders the ranked candidates followed by filtered and failed symbols
func (r *Report) WriteTable(w io.Writer) error {
	fmt.Fprintf(w, "Screening as of %s: %d evaluated, %d ranked\n\n", r.AsOf.Format(dateLayout), r.Evaluated, len(r.Candidates))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSYMBOL\tSCORE\tPRICE\tGAP\tVOL RATIO\tRSI\tMACD H\t%B\tATR%\tADX\tRISK\tSTOP\tTARGET\tSIGNALS")
	for _, c := range r.Candidates {
		signals := strings.Join(c.Result.Signals, ",")
		if len(c.Result.Warnings) > 0 {
			signals += " !" + strings.Join(c.Result.Warnings, ",!")
		}
		rsi, macd, pctB, atr, adx := oscillatorColumns(c.Snapshot.Technical)
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%.1f\t%+.2f%%\t%.2f\t%s\t%s\t%s\t%s\t%s\t%s\t%.1f\t%.1f\t%s\n",
			c.Rank,
			c.Result.Symbol,
			c.Result.Total,
			c.Snapshot.CurrentPrice,
			c.Snapshot.GapRatio*100,
			c.Snapshot.VolumeRatio,
			rsi, macd, pctB, atr, adx,
			c.Risk.Level,
			c.Risk.StopLossPrice,
			c.Risk.TakeProfitPrice,
			signals,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Filtered) > 0 {
		fmt.Fprintln(w, "\nFiltered:")
		symbols := make([]string, 0, len(r.Filtered))
		for s := range r.Filtered {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		for _, s := range symbols {
			fmt.Fprintf(w, "  %s: %s\n", s, r.Filtered[s])
		}
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "\nNo data: %s\n", strings.Join(r.Failed, ", "))
	}
	return nil
}

// oscillatorColumns formats the indicator readings, with "-" for any not yet seeded
func oscillatorColumns(t *scoring.Technical) (rsi, macd, pctB, atr, adx string) {
	rsi, macd, pctB, atr, adx = "-", "-", "-", "-", "-"
	if t == nil {
		return
	}
	if t.RSI != nil {
		rsi = fmt.Sprintf("%.1f", t.RSI.Value)
	}
	if t.MACD != nil {
		macd = fmt.Sprintf("%+.2f", t.MACD.Histogram)
	}
	if t.Bollinger != nil {
		pctB = fmt.Sprintf("%.2f", t.Bollinger.Position)
	}
	if t.ATR != nil {
		atr = fmt.Sprintf("%.2f%%", t.ATR.Percent*100)
	}
	if t.ADX != nil {
		adx = fmt.Sprintf("%.1f", t.ADX.Value)
	}
	return
}

// WriteJSON writes the report as indented JSON
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
