// Package config provides configuration management for the paper-trading core.
package config

import (
	"math"

	"cryptopaper/internal/errors"
)

// allocationEpsilon is the tolerance for allocation fractions summing to 1.
const allocationEpsilon = 1e-6

// AllocationPolicy selects how the investable amount is split across coins.
type AllocationPolicy string

const (
	// AllocationEqualSplit divides the investable amount evenly per coin.
	AllocationEqualSplit AllocationPolicy = "equal_split"
	// AllocationScoreWeighted divides by relative signal score.
	AllocationScoreWeighted AllocationPolicy = "score_weighted"
)

// PortfolioAllocation holds allocation fractions by risk bucket.
// Fractions must sum to 1 after normalization.
type PortfolioAllocation struct {
	Cash  float64 `mapstructure:"cash"`
	Tier1 float64 `mapstructure:"tier1"`
	Tier2 float64 `mapstructure:"tier2"`
	Tier3 float64 `mapstructure:"tier3"`
}

// Sum returns the total of all allocation fractions.
func (a PortfolioAllocation) Sum() float64 {
	return a.Cash + a.Tier1 + a.Tier2 + a.Tier3
}

// BuyConditions holds the thresholds that gate buy signals.
type BuyConditions struct {
	MinScore               float64 `mapstructure:"min_score"`
	RSIOversold            float64 `mapstructure:"rsi_oversold"`
	StrongBuyScore         float64 `mapstructure:"strong_buy_score"`
	BuyThreshold           float64 `mapstructure:"buy_threshold"`
	RequireMultipleSignals bool    `mapstructure:"require_multiple_signals"`
}

// SellConditions holds the thresholds that gate sell signals and exits.
type SellConditions struct {
	ProfitTarget1     float64 `mapstructure:"profit_target_1"`
	ProfitTarget2     float64 `mapstructure:"profit_target_2"`
	ProfitTarget3     float64 `mapstructure:"profit_target_3"`
	StopLoss          float64 `mapstructure:"stop_loss"`
	SellThreshold     float64 `mapstructure:"sell_threshold"`
	RSIOverbought     float64 `mapstructure:"rsi_overbought"`
	TimeBasedExitDays int     `mapstructure:"time_based_exit_days"`
}

// RiskManagement holds portfolio-level risk limits.
type RiskManagement struct {
	MaxPositions              int     `mapstructure:"max_positions"`
	ReserveCashRatio          float64 `mapstructure:"reserve_cash_ratio"`
	MaxSinglePositionPct      float64 `mapstructure:"max_single_position_pct"`
	DailyTradeLimit           int     `mapstructure:"daily_trade_limit"`
	VolumeThresholdMultiplier float64 `mapstructure:"volume_threshold_multiplier"`
}

// StrategyConfiguration describes allocation percentages and buy/sell/risk
// thresholds for one session. It is treated as immutable once a session
// starts; edited copies must be normalized before use.
type StrategyConfiguration struct {
	Name                string              `mapstructure:"name"`
	Coins               []string            `mapstructure:"coins"`
	InitialAmount       float64             `mapstructure:"initial_amount"`
	AllocationPolicy    AllocationPolicy    `mapstructure:"allocation_policy"`
	PortfolioAllocation PortfolioAllocation `mapstructure:"portfolio_allocation"`
	BuyConditions       BuyConditions       `mapstructure:"buy_conditions"`
	SellConditions      SellConditions      `mapstructure:"sell_conditions"`
	RiskManagement      RiskManagement      `mapstructure:"risk_management"`
}

// Normalize returns a copy with allocation fractions rescaled to sum to 1
// while preserving their relative ratios. A zero-sum allocation falls back
// to the balanced preset allocation.
func (s StrategyConfiguration) Normalize() StrategyConfiguration {
	out := s
	sum := s.PortfolioAllocation.Sum()
	if sum <= 0 {
		out.PortfolioAllocation = BalancedStrategy().PortfolioAllocation
		return out
	}
	if math.Abs(sum-1) <= allocationEpsilon {
		return out
	}
	out.PortfolioAllocation.Cash = s.PortfolioAllocation.Cash / sum
	out.PortfolioAllocation.Tier1 = s.PortfolioAllocation.Tier1 / sum
	out.PortfolioAllocation.Tier2 = s.PortfolioAllocation.Tier2 / sum
	out.PortfolioAllocation.Tier3 = s.PortfolioAllocation.Tier3 / sum
	return out
}

// Validate checks that the configuration can start a session.
func (s StrategyConfiguration) Validate() error {
	if len(s.Coins) == 0 {
		return errors.NewValidationError("coins", s.Coins, "at least one coin must be selected")
	}
	if s.InitialAmount <= 0 {
		return errors.NewValidationError("initial_amount", s.InitialAmount, "must be positive")
	}
	if s.RiskManagement.ReserveCashRatio < 0 || s.RiskManagement.ReserveCashRatio >= 1 {
		return errors.NewValidationError("reserve_cash_ratio", s.RiskManagement.ReserveCashRatio, "must be in [0, 1)")
	}
	if s.RiskManagement.MaxPositions < 0 {
		return errors.NewValidationError("max_positions", s.RiskManagement.MaxPositions, "must be non-negative")
	}
	if s.BuyConditions.MinScore < 0 || s.BuyConditions.MinScore > 10 {
		return errors.NewValidationError("min_score", s.BuyConditions.MinScore, "must be in [0, 10]")
	}
	return nil
}

// ConservativeStrategy returns a preset favouring cash and large caps.
func ConservativeStrategy() StrategyConfiguration {
	return StrategyConfiguration{
		Name:             "conservative",
		AllocationPolicy: AllocationEqualSplit,
		PortfolioAllocation: PortfolioAllocation{
			Cash:  0.40,
			Tier1: 0.40,
			Tier2: 0.15,
			Tier3: 0.05,
		},
		BuyConditions: BuyConditions{
			MinScore:               8.0,
			RSIOversold:            25,
			StrongBuyScore:         9.0,
			BuyThreshold:           8.0,
			RequireMultipleSignals: true,
		},
		SellConditions: SellConditions{
			ProfitTarget1:     5,
			ProfitTarget2:     10,
			ProfitTarget3:     20,
			StopLoss:          -5,
			SellThreshold:     3.0,
			RSIOverbought:     75,
			TimeBasedExitDays: 30,
		},
		RiskManagement: RiskManagement{
			MaxPositions:              5,
			ReserveCashRatio:          0.40,
			MaxSinglePositionPct:      20,
			DailyTradeLimit:           3,
			VolumeThresholdMultiplier: 2.0,
		},
	}
}

// BalancedStrategy returns the default preset.
func BalancedStrategy() StrategyConfiguration {
	return StrategyConfiguration{
		Name:             "balanced",
		AllocationPolicy: AllocationEqualSplit,
		PortfolioAllocation: PortfolioAllocation{
			Cash:  0.20,
			Tier1: 0.40,
			Tier2: 0.25,
			Tier3: 0.15,
		},
		BuyConditions: BuyConditions{
			MinScore:               7.0,
			RSIOversold:            30,
			StrongBuyScore:         9.0,
			BuyThreshold:           7.0,
			RequireMultipleSignals: false,
		},
		SellConditions: SellConditions{
			ProfitTarget1:     10,
			ProfitTarget2:     20,
			ProfitTarget3:     35,
			StopLoss:          -8,
			SellThreshold:     3.5,
			RSIOverbought:     70,
			TimeBasedExitDays: 60,
		},
		RiskManagement: RiskManagement{
			MaxPositions:              8,
			ReserveCashRatio:          0.20,
			MaxSinglePositionPct:      30,
			DailyTradeLimit:           5,
			VolumeThresholdMultiplier: 1.5,
		},
	}
}

// AggressiveStrategy returns a preset chasing momentum with little reserve.
func AggressiveStrategy() StrategyConfiguration {
	return StrategyConfiguration{
		Name:             "aggressive",
		AllocationPolicy: AllocationScoreWeighted,
		PortfolioAllocation: PortfolioAllocation{
			Cash:  0.10,
			Tier1: 0.30,
			Tier2: 0.30,
			Tier3: 0.30,
		},
		BuyConditions: BuyConditions{
			MinScore:               6.5,
			RSIOversold:            35,
			StrongBuyScore:         8.5,
			BuyThreshold:           6.5,
			RequireMultipleSignals: false,
		},
		SellConditions: SellConditions{
			ProfitTarget1:     15,
			ProfitTarget2:     30,
			ProfitTarget3:     50,
			StopLoss:          -12,
			SellThreshold:     4.0,
			RSIOverbought:     80,
			TimeBasedExitDays: 90,
		},
		RiskManagement: RiskManagement{
			MaxPositions:              12,
			ReserveCashRatio:          0.10,
			MaxSinglePositionPct:      40,
			DailyTradeLimit:           10,
			VolumeThresholdMultiplier: 1.2,
		},
	}
}

// StrategyByName returns a preset by name, defaulting to balanced.
func StrategyByName(name string) StrategyConfiguration {
	switch name {
	case "conservative":
		return ConservativeStrategy()
	case "aggressive":
		return AggressiveStrategy()
	default:
		return BalancedStrategy()
	}
}
