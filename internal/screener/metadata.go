package screener

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yourusername/kabu-screener/internal/scoring"
)

// Metadata is the static reference data of one listed company
type Metadata struct {
	Name       string
	Sector     string
	MarketCap  *float64
	Marginable *bool
}

// MetadataEnricher fills name, sector, market cap and margin eligibility from a reference table.
// Symbols missing from the table keep the snapshot defaults.
type MetadataEnricher struct {
	bySymbol map[string]Metadata
}

var _ Enricher = (*MetadataEnricher)(nil)

// NewMetadataEnricher creates an enricher over a symbol-keyed table
func NewMetadataEnricher(table map[string]Metadata) *MetadataEnricher {
	return &MetadataEnricher{bySymbol: table}
}

// LoadMetadataEnricher reads a symbol,name,sector,market_cap,marginable CSV file
func LoadMetadataEnricher(path string) (*MetadataEnricher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	table, err := ReadMetadataCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewMetadataEnricher(table), nil
}

// Enrich copies the symbol's reference data into s
func (e *MetadataEnricher) Enrich(ctx context.Context, s *scoring.Snapshot) error {
	m, ok := e.bySymbol[s.Symbol]
	if !ok {
		return nil
	}
	if m.Name != "" {
		s.Name = m.Name
	}
	if m.Sector != "" {
		s.Sector = m.Sector
	}
	if m.MarketCap != nil {
		capValue := *m.MarketCap
		s.MarketCap = &capValue
	}
	if m.Marginable != nil {
		s.Marginable = *m.Marginable
	}
	return nil
}

// ReadMetadataCSV parses reference rows keyed by symbol.
// Only the symbol column is required; empty cells mean unknown.
func ReadMetadataCSV(r io.Reader) (map[string]Metadata, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["symbol"]; !ok {
		return nil, fmt.Errorf("missing column %q", "symbol")
	}
	cell := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	table := make(map[string]Metadata)
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		symbol := cell(rec, "symbol")
		if symbol == "" {
			continue
		}
		m := Metadata{Name: cell(rec, "name"), Sector: cell(rec, "sector")}
		if v := cell(rec, "market_cap"); v != "" {
			capValue, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid market_cap: %w", line, err)
			}
			m.MarketCap = &capValue
		}
		if v := cell(rec, "marginable"); v != "" {
			marginable, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid marginable: %w", line, err)
			}
			m.Marginable = &marginable
		}
		table[symbol] = m
	}
	return table, nil
}
