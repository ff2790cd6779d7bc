package screener

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/kabu-screener/internal/marketdata"
	"github.com/yourusername/kabu-screener/internal/models"
	"github.com/yourusername/kabu-screener/internal/scoring"
)

const metadataCSV = `symbol,name,sector,market_cap,marginable
7203.T,トヨタ自動車,輸送用機器,45000000000000,true
7267.T,本田技研工業,輸送用機器,8000000000000,
6758.T,ソニーグループ,電気機器,,false
`

func TestReadMetadataCSV(t *testing.T) {
	table, err := ReadMetadataCSV(strings.NewReader(metadataCSV))
	require.NoError(t, err)
	require.Len(t, table, 3)

	toyota := table["7203.T"]
	assert.Equal(t, "輸送用機器", toyota.Sector)
	require.NotNil(t, toyota.MarketCap)
	assert.Equal(t, 45e12, *toyota.MarketCap)
	require.NotNil(t, toyota.Marginable)
	assert.True(t, *toyota.Marginable)

	assert.Nil(t, table["7267.T"].Marginable)
	assert.Nil(t, table["6758.T"].MarketCap)

	_, err = ReadMetadataCSV(strings.NewReader("name,sector\nfoo,bar\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = ReadMetadataCSV(strings.NewReader("symbol,market_cap\n7203.T,lots\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestMetadataEnricher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.csv")
	require.NoError(t, os.WriteFile(path, []byte(metadataCSV), 0o644))
	e, err := LoadMetadataEnricher(path)
	require.NoError(t, err)

	sony := scoring.Snapshot{Symbol: "6758.T", Marginable: true}
	require.NoError(t, e.Enrich(context.Background(), &sony))
	assert.Equal(t, "ソニーグループ", sony.Name)
	assert.False(t, sony.Marginable)
	assert.Nil(t, sony.MarketCap)

	unknown := scoring.Snapshot{Symbol: "9999.T", Marginable: true}
	require.NoError(t, e.Enrich(context.Background(), &unknown))
	assert.Equal(t, scoring.Snapshot{Symbol: "9999.T", Marginable: true}, unknown)

	_, err = LoadMetadataEnricher(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestScreenScoresSectorMomentum(t *testing.T) {
	provider := marketdata.NewStaticProvider(map[string][]models.Bar{
		"6758.T": history(30, asOf, 1000, nil),
		"7203.T": history(30, asOf, 1000, surgeBar()),
		"7267.T": history(30, asOf, 1000, nil),
	})
	table, err := ReadMetadataCSV(strings.NewReader(metadataCSV))
	require.NoError(t, err)

	svc, err := NewService(testConfig("6758.T", "7203.T", "7267.T"), provider, nil,
		WithEnricher(NewMetadataEnricher(table)))
	require.NoError(t, err)
	report, err := svc.Screen(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, report.Candidates, 3)

	bySymbol := make(map[string]scoring.Candidate)
	for _, c := range report.Candidates {
		bySymbol[c.Result.Symbol] = c
	}

	// transport equipment averages (+6% + 0%) / 2 = +3%
	honda := bySymbol["7267.T"]
	require.NotNil(t, honda.Snapshot.SectorPerformance)
	assert.InDelta(t, 0.03, *honda.Snapshot.SectorPerformance, 1e-12)
	assert.Equal(t, []string{scoring.SignalSectorMomentum}, honda.Result.Signals)
	assert.Equal(t, "本田技研工業", honda.Snapshot.Name)

	sony := bySymbol["6758.T"]
	assert.Nil(t, sony.Snapshot.SectorPerformance, "a single-member sector has no peer average")
	assert.Equal(t, scoring.BaseScore, sony.Result.Total)
}
