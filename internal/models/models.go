// Package models provides domain models for the paper-trading core.
package models

import (
	"time"
)

// SessionStatus represents the lifecycle state of a trading session.
type SessionStatus string

const (
	StatusStopped SessionStatus = "STOPPED"
	StatusRunning SessionStatus = "RUNNING"
	StatusPaused  SessionStatus = "PAUSED"
)

// TradeAction represents the side of a simulated trade.
type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

// SignalType represents the direction of a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
)

// Recommendation represents the tiered action derived from a composite score.
type Recommendation string

const (
	StrongBuy Recommendation = "STRONG_BUY"
	Buy       Recommendation = "BUY"
	Hold      Recommendation = "HOLD"
	Sell      Recommendation = "SELL"
)

// Confidence represents the coarse reliability bucket of a signal.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// NotificationLevel represents the severity of a notification.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Candle represents OHLCV data for a time period, oldest to newest.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Tick represents a real-time price update for one market.
type Tick struct {
	Symbol    string
	Price     float64
	Volume24h float64
	Timestamp time.Time
}
