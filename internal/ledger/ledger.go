// Package ledger owns the cash balance, open positions and trade history
// of one paper-trading session. It is pure computation over price inputs;
// it never talks to an exchange or a data feed.
package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptopaper/internal/errors"
	"cryptopaper/internal/models"
)

// DefaultMaxTrades is the default trade history cap.
const DefaultMaxTrades = 50

// Ledger tracks cash, positions and the capped trade history.
type Ledger struct {
	cashBalance float64
	positions   map[string]*models.Position
	trades      []models.Trade // newest at index 0
	maxTrades   int
	logger      zerolog.Logger
}

// New creates a ledger with the given starting cash balance.
func New(cashBalance float64, maxTrades int, logger zerolog.Logger) *Ledger {
	if maxTrades <= 0 {
		maxTrades = DefaultMaxTrades
	}
	return &Ledger{
		cashBalance: cashBalance,
		positions:   make(map[string]*models.Position),
		maxTrades:   maxTrades,
		logger:      logger,
	}
}

// Restore rebuilds a ledger from persisted state.
func Restore(cashBalance float64, positions []models.Position, trades []models.Trade, maxTrades int, logger zerolog.Logger) *Ledger {
	l := New(cashBalance, maxTrades, logger)
	for i := range positions {
		p := positions[i]
		l.positions[p.Symbol] = &p
	}
	if len(trades) > l.maxTrades {
		trades = trades[:l.maxTrades]
	}
	l.trades = append([]models.Trade(nil), trades...)
	l.updateAllocations()
	return l
}

// OpenPosition creates an initial position by spending amount of cash at
// the given price. Used when a session starts, one call per selected coin.
func (l *Ledger) OpenPosition(symbol, market string, amount, price float64) error {
	if price <= 0 {
		return errors.NewValidationError("price", price, "must be positive")
	}
	if amount <= 0 {
		return errors.NewValidationError("amount", amount, "must be positive")
	}
	if amount > l.cashBalance {
		return errors.NewInsufficientFundsError(symbol, amount, l.cashBalance)
	}

	pos := &models.Position{
		Symbol:       symbol,
		Market:       market,
		Quantity:     amount / price,
		AvgPrice:     price,
		CurrentPrice: price,
	}
	pos.Recalculate()
	l.positions[symbol] = pos
	l.cashBalance -= amount
	l.updateAllocations()
	return nil
}

// Revalue updates every open position that has a matching entry in the
// price map. Positions without an update are left unchanged. Non-positive
// prices are skipped with a warning rather than applied.
func (l *Ledger) Revalue(prices map[string]float64) {
	for symbol, pos := range l.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		if price <= 0 {
			l.logger.Warn().
				Str("symbol", symbol).
				Float64("price", price).
				Msg("Skipping non-positive price in revaluation")
			continue
		}
		pos.CurrentPrice = price
		pos.Recalculate()
	}
	l.updateAllocations()
}

// RecordTrade validates and applies a trade, then appends it to the capped
// history. On a buy the cash balance is debited and the position's average
// price is volume-weighted; on a sell the position is reduced or removed
// and realized profit is credited.
func (l *Ledger) RecordTrade(trade models.Trade) (models.Trade, error) {
	if trade.Quantity <= 0 {
		return models.Trade{}, errors.NewValidationError("quantity", trade.Quantity, "must be positive")
	}
	if trade.Price <= 0 {
		return models.Trade{}, errors.NewValidationError("price", trade.Price, "must be positive")
	}

	if trade.ID == "" {
		trade.ID = uuid.NewString()
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}
	trade.Total = trade.Price * trade.Quantity

	switch trade.Action {
	case models.ActionBuy:
		if err := l.applyBuy(&trade); err != nil {
			return models.Trade{}, err
		}
	case models.ActionSell:
		if err := l.applySell(&trade); err != nil {
			return models.Trade{}, err
		}
	default:
		return models.Trade{}, errors.NewValidationError("action", trade.Action, "must be BUY or SELL")
	}

	l.appendTrade(trade)
	l.updateAllocations()
	return trade, nil
}

func (l *Ledger) applyBuy(trade *models.Trade) error {
	if trade.Total > l.cashBalance {
		return errors.NewInsufficientFundsError(trade.Symbol, trade.Total, l.cashBalance)
	}

	pos, exists := l.positions[trade.Symbol]
	if !exists {
		pos = &models.Position{
			Symbol: trade.Symbol,
			Market: trade.Symbol,
		}
		l.positions[trade.Symbol] = pos
	}

	// Volume-weighted average price across the existing lot and this buy.
	invested := pos.AvgPrice*pos.Quantity + trade.Total
	pos.Quantity += trade.Quantity
	pos.AvgPrice = invested / pos.Quantity
	pos.CurrentPrice = trade.Price
	pos.Recalculate()

	l.cashBalance -= trade.Total
	return nil
}

func (l *Ledger) applySell(trade *models.Trade) error {
	pos, exists := l.positions[trade.Symbol]
	if !exists {
		return errors.ErrPositionNotFound
	}
	if trade.Quantity > pos.Quantity {
		return errors.NewValidationError("quantity", trade.Quantity, "exceeds held quantity")
	}

	trade.Profit = (trade.Price - pos.AvgPrice) * trade.Quantity

	pos.Quantity -= trade.Quantity
	pos.CurrentPrice = trade.Price
	if pos.Quantity <= 0 {
		delete(l.positions, trade.Symbol)
	} else {
		pos.Recalculate()
	}

	l.cashBalance += trade.Total
	return nil
}

// appendTrade prepends the trade and evicts the oldest beyond the cap.
func (l *Ledger) appendTrade(trade models.Trade) {
	l.trades = append([]models.Trade{trade}, l.trades...)
	if len(l.trades) > l.maxTrades {
		l.trades = l.trades[:l.maxTrades]
	}
}

// updateAllocations recomputes each position's share of total value.
func (l *Ledger) updateAllocations() {
	total := l.TotalValue()
	if total <= 0 {
		return
	}
	for _, pos := range l.positions {
		pos.AllocationPct = (pos.Value / total) * 100
	}
}

// CashBalance returns the current cash balance.
func (l *Ledger) CashBalance() float64 {
	return l.cashBalance
}

// TotalValue returns cash plus the value of all open positions.
func (l *Ledger) TotalValue() float64 {
	total := l.cashBalance
	for _, pos := range l.positions {
		total += pos.Value
	}
	return total
}

// Position returns a copy of the position for a symbol.
func (l *Ledger) Position(symbol string) (models.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, sorted by symbol.
func (l *Ledger) Positions() []models.Position {
	out := make([]models.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Trades returns a copy of the trade history, newest first.
func (l *Ledger) Trades() []models.Trade {
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Summary returns a consolidated view of the ledger.
func (l *Ledger) Summary() models.PortfolioSummary {
	s := models.PortfolioSummary{
		CashBalance: l.cashBalance,
	}
	for _, pos := range l.positions {
		s.PositionCount++
		s.InvestedValue += pos.AvgPrice * pos.Quantity
		s.CurrentValue += pos.Value
		s.TotalPnL += pos.UnrealizedPnL
	}
	s.TotalValue = s.CashBalance + s.CurrentValue
	if s.InvestedValue > 0 {
		s.TotalPnLPct = (s.TotalPnL / s.InvestedValue) * 100
	}
	return s
}
