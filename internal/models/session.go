package models

import "time"

// TradingSession represents one run of the paper-trading simulation.
type TradingSession struct {
	ID            string
	StartedAt     time.Time
	InitialAmount float64
	CashBalance   float64
	Status        SessionStatus
	Coins         []string
}

// Position represents a held simulated quantity of one coin within a session.
type Position struct {
	Symbol        string
	Market        string
	Quantity      float64
	AvgPrice      float64
	CurrentPrice  float64
	Value         float64
	UnrealizedPnL float64
	PnLPercent    float64
	AllocationPct float64
}

// Recalculate updates the derived fields from quantity and prices.
func (p *Position) Recalculate() {
	p.Value = p.Quantity * p.CurrentPrice
	invested := p.Quantity * p.AvgPrice
	p.UnrealizedPnL = p.Value - invested
	if invested > 0 {
		p.PnLPercent = (p.UnrealizedPnL / invested) * 100
	} else {
		p.PnLPercent = 0
	}
}

// Trade represents a completed simulated trade.
type Trade struct {
	ID        string
	Timestamp time.Time
	Symbol    string
	Action    TradeAction
	Price     float64
	Quantity  float64
	Total     float64
	Profit    float64
	Reason    string
}

// Signal represents a ranked buy or sell signal for one symbol.
type Signal struct {
	ID             string
	Symbol         string
	Type           SignalType
	TotalScore     float64
	Recommendation Recommendation
	Confidence     Confidence
	Price          float64
	Timestamp      time.Time
	Executed       bool
	Reason         string
	Components     map[string]float64
}

// Notification represents a user-facing alert produced by the core.
type Notification struct {
	ID        string
	Message   string
	Level     NotificationLevel
	Timestamp time.Time
}

// PortfolioSummary represents a consolidated view of a session's holdings.
type PortfolioSummary struct {
	CashBalance   float64
	InvestedValue float64
	CurrentValue  float64
	TotalValue    float64
	TotalPnL      float64
	TotalPnLPct   float64
	PositionCount int
}
