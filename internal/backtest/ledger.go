package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/yourusername/kabu-screener/internal/logger"
	"github.com/yourusername/kabu-screener/internal/models"
)

// PriceLookup returns the quote for symbol on the valuation day, if any
type PriceLookup func(symbol string) (float64, bool)

// PositionLedger tracks cash, open positions and closed trade history.
// It is not safe for concurrent use; one ledger belongs to one run.
type PositionLedger struct {
	cfg    BacktestConfig
	cash   float64
	open   map[string]*models.Trade
	closed []models.Trade
	equity EquityCurve

	lastPrice       map[string]float64
	totalCommission float64
	totalSlippage   float64

	log *logger.BacktestLogger
}

// NewPositionLedger creates a ledger holding cfg.InitialCapital in cash
func NewPositionLedger(cfg BacktestConfig, log *logger.BacktestLogger) *PositionLedger {
	if cfg.LotSize <= 0 {
		cfg.LotSize = models.LotSize
	}
	return &PositionLedger{
		cfg:       cfg,
		cash:      cfg.InitialCapital,
		open:      make(map[string]*models.Trade),
		lastPrice: make(map[string]float64),
		log:       log,
	}
}

// Cash returns available capital
func (l *PositionLedger) Cash() float64 {
	return l.cash
}

// OpenCount returns the number of open positions
func (l *PositionLedger) OpenCount() int {
	return len(l.open)
}

// IsOpen reports whether symbol has an open position
func (l *PositionLedger) IsOpen(symbol string) bool {
	_, ok := l.open[symbol]
	return ok
}

// Position returns a copy of the open trade for symbol
func (l *PositionLedger) Position(symbol string) (models.Trade, bool) {
	t, ok := l.open[symbol]
	if !ok {
		return models.Trade{}, false
	}
	return *t, true
}

// OpenSymbols returns open symbols in lexical order
func (l *PositionLedger) OpenSymbols() []string {
	symbols := make([]string, 0, len(l.open))
	for s := range l.open {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// ClosedTrades returns closed trades in close order
func (l *PositionLedger) ClosedTrades() []models.Trade {
	return append([]models.Trade(nil), l.closed...)
}

// EquityCurve returns the daily equity snapshots recorded so far
func (l *PositionLedger) EquityCurve() EquityCurve {
	return append(EquityCurve(nil), l.equity...)
}

// TotalCommission returns commission paid on all legs so far
func (l *PositionLedger) TotalCommission() float64 {
	return l.totalCommission
}

// TotalSlippage returns slippage cost on all legs so far
func (l *PositionLedger) TotalSlippage() float64 {
	return l.totalSlippage
}

// CanOpen reports whether there is capacity for another position
func (l *PositionLedger) CanOpen() bool {
	return len(l.open) < l.cfg.MaxPositions
}

// PositionSize returns the whole-lot share count for a quote, at least one lot,
// or 0 when cash cannot cover a single lot.
func (l *PositionLedger) PositionSize(price float64) int64 {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	lot := l.cfg.LotSize
	if l.cash < price*float64(lot) {
		return 0
	}
	budget := l.cash * l.cfg.PositionSize
	shares := int64(math.Floor(budget/price/float64(lot))) * lot
	if shares < lot {
		shares = lot
	}
	return shares
}

// Open opens a position at the quoted price plus slippage.
// It returns false without mutating anything when the symbol is already open,
// capacity is full, no lot is affordable or cash cannot cover cost plus commission.
func (l *PositionLedger) Open(symbol string, date time.Time, price float64, signals []string, score float64) bool {
	if !l.CanOpen() || l.IsOpen(symbol) {
		return false
	}
	shares := l.PositionSize(price)
	if shares == 0 {
		if l.log != nil {
			l.log.LogRejectedEntry(symbol, date, price*float64(l.cfg.LotSize), l.cash)
		}
		return false
	}

	entryPrice := price * (1 + l.cfg.SlippageRate)
	positionValue := entryPrice * float64(shares)
	commission := positionValue * l.cfg.CommissionRate
	if positionValue+commission > l.cash {
		if l.log != nil {
			l.log.LogRejectedEntry(symbol, date, positionValue+commission, l.cash)
		}
		return false
	}

	slippage := price * float64(shares) * l.cfg.SlippageRate
	trade := &models.Trade{
		Symbol:         symbol,
		EntryDate:      date,
		EntryPrice:     entryPrice,
		Shares:         shares,
		PositionValue:  positionValue,
		Signals:        append([]string(nil), signals...),
		Score:          score,
		CommissionPaid: commission,
		SlippageCost:   slippage,
	}

	l.open[symbol] = trade
	l.cash -= positionValue + commission
	l.totalCommission += commission
	l.totalSlippage += slippage
	l.lastPrice[symbol] = price

	if l.log != nil {
		l.log.LogEntry(symbol, date, entryPrice, shares, score, trade.Signals)
	}
	return true
}

// Close exits symbol at the quoted price minus slippage. It is a no-op when
// the symbol is not open.
func (l *PositionLedger) Close(symbol string, date time.Time, price float64, reason models.ExitReason) (models.Trade, bool) {
	trade, ok := l.open[symbol]
	if !ok {
		return models.Trade{}, false
	}

	exitPrice := price * (1 - l.cfg.SlippageRate)
	exitValue := exitPrice * float64(trade.Shares)
	commission := exitValue * l.cfg.CommissionRate
	slippage := price * float64(trade.Shares) * l.cfg.SlippageRate

	exitDate := date
	trade.ExitDate = &exitDate
	trade.ExitPrice = exitPrice
	trade.PnL = exitValue - trade.PositionValue - commission - trade.CommissionPaid
	trade.PnLPercentage = trade.PnL / trade.PositionValue * 100
	trade.ExitReason = reason
	trade.CommissionPaid += commission
	trade.SlippageCost += slippage

	l.cash += exitValue - commission
	l.totalCommission += commission
	l.totalSlippage += slippage
	l.lastPrice[symbol] = price

	delete(l.open, symbol)
	l.closed = append(l.closed, *trade)

	if l.log != nil {
		l.log.LogExit(symbol, date, exitPrice, trade.PnL, trade.PnLPercentage, string(reason))
	}
	return *trade, true
}

// MarkToMarket values every open position and appends a daily snapshot.
// A symbol missing from prices is valued at its last known quote.
func (l *PositionLedger) MarkToMarket(date time.Time, prices PriceLookup) EquityPoint {
	total := l.cash
	for _, symbol := range l.OpenSymbols() {
		trade := l.open[symbol]
		if px, ok := prices(symbol); ok {
			l.lastPrice[symbol] = px
		}
		px, ok := l.lastPrice[symbol]
		if !ok {
			px = trade.EntryPrice
		}
		total += px * float64(trade.Shares)
	}

	point := EquityPoint{
		Date:          date,
		Cash:          l.cash,
		TotalValue:    total,
		OpenPositions: len(l.open),
	}
	l.equity = append(l.equity, point)

	if l.log != nil {
		l.log.LogDailyEquity(date, l.cash, total, len(l.open))
	}
	return point
}

// Reconcile returns cash + open cost basis − realized pnl − initial capital.
// Open cost basis includes entry commission, so the result is zero up to rounding.
func (l *PositionLedger) Reconcile() float64 {
	sum := l.cash
	for _, t := range l.open {
		sum += t.PositionValue + t.CommissionPaid
	}
	for _, t := range l.closed {
		sum -= t.PnL
	}
	return sum - l.cfg.InitialCapital
}
