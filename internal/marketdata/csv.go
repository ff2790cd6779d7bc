package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/kabu-screener/internal/models"
)

const csvSourceName = "csv"

// CSVProvider reads <dir>/<symbol>.csv files with a Date,Open,High,Low,Close,Volume header
type CSVProvider struct {
	dir string
}

// NewCSVProvider creates a provider rooted at dir
func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

// Name returns the name of the provider
func (p *CSVProvider) Name() string {
	return csvSourceName
}

// History loads and clips the symbol's file
func (p *CSVProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewProviderError(csvSourceName, ErrCodeNotFound, "no file for "+symbol, ErrDataUnavailable)
		}
		return nil, NewProviderError(csvSourceName, ErrCodeNetworkError, "failed to open "+path, err)
	}
	defer f.Close()

	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, NewProviderError(csvSourceName, ErrCodeInvalidData, path, err)
	}

	bars = clip(bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s %s: %w", csvSourceName, symbol, ErrDataUnavailable)
	}
	return bars, nil
}

// ReadBarsCSV parses daily bars from r. Column order is taken from the header row.
func ReadBarsCSV(r io.Reader) ([]models.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var bars []models.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		date, err := time.Parse("2006-01-02", rec[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date: %w", line, err)
		}
		var prices [4]float64
		for i, name := range []string{"open", "high", "low", "close"} {
			prices[i], err = strconv.ParseFloat(rec[cols[name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %w", line, name, err)
			}
		}
		volume, err := strconv.ParseFloat(rec[cols["volume"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid volume: %w", line, err)
		}

		bars = append(bars, models.Bar{
			Date:   date,
			Open:   prices[0],
			High:   prices[1],
			Low:    prices[2],
			Close:  prices[3],
			Volume: int64(volume),
		})
	}
	return bars, nil
}
