package config

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "cryptopaper/internal/errors"
)

func TestNormalizeRescalesToUnitSum(t *testing.T) {
	s := BalancedStrategy()
	s.PortfolioAllocation = PortfolioAllocation{Cash: 0.2, Tier1: 0.2, Tier2: 0.2, Tier3: 0.2} // sums to 0.8

	n := s.Normalize()
	if got := n.PortfolioAllocation.Sum(); math.Abs(got-1) > 1e-9 {
		t.Errorf("normalized sum = %v, want 1", got)
	}
	// Equal inputs stay equal.
	if math.Abs(n.PortfolioAllocation.Cash-0.25) > 1e-9 {
		t.Errorf("cash share = %v, want 0.25", n.PortfolioAllocation.Cash)
	}
}

func TestNormalizeZeroSumFallsBackToBalanced(t *testing.T) {
	s := BalancedStrategy()
	s.PortfolioAllocation = PortfolioAllocation{}

	n := s.Normalize()
	if n.PortfolioAllocation != BalancedStrategy().PortfolioAllocation {
		t.Errorf("zero-sum allocation should fall back to the balanced preset, got %+v", n.PortfolioAllocation)
	}
}

func TestValidateRejectsBadConfigurations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StrategyConfiguration)
	}{
		{"no coins", func(s *StrategyConfiguration) { s.Coins = nil }},
		{"zero amount", func(s *StrategyConfiguration) { s.InitialAmount = 0 }},
		{"negative amount", func(s *StrategyConfiguration) { s.InitialAmount = -1 }},
		{"reserve ratio one", func(s *StrategyConfiguration) { s.RiskManagement.ReserveCashRatio = 1 }},
		{"negative reserve", func(s *StrategyConfiguration) { s.RiskManagement.ReserveCashRatio = -0.1 }},
		{"negative max positions", func(s *StrategyConfiguration) { s.RiskManagement.MaxPositions = -1 }},
		{"min score out of scale", func(s *StrategyConfiguration) { s.BuyConditions.MinScore = 11 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := BalancedStrategy()
			s.Coins = []string{"KRW-BTC"}
			s.InitialAmount = 1_000_000
			tc.mutate(&s)

			err := s.Validate()
			if !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range []string{"conservative", "balanced", "aggressive"} {
		s := StrategyByName(name)
		s.Coins = []string{"KRW-BTC"}
		s.InitialAmount = 1_000_000

		if s.Name != name {
			t.Errorf("StrategyByName(%q).Name = %q", name, s.Name)
		}
		if err := s.Normalize().Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
		if got := s.PortfolioAllocation.Sum(); math.Abs(got-1) > 1e-9 {
			t.Errorf("preset %s allocation sum = %v, want 1", name, got)
		}
	}
}

func TestStrategyByNameDefaultsToBalanced(t *testing.T) {
	if got := StrategyByName("unknown"); got.Name != "balanced" {
		t.Errorf("unknown preset resolved to %q, want balanced", got.Name)
	}
}

func TestProperty_NormalizePreservesRatios(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("normalized allocations sum to 1 and keep ratios", prop.ForAll(
		func(cash, t1, t2, t3 float64) bool {
			s := BalancedStrategy()
			s.PortfolioAllocation = PortfolioAllocation{Cash: cash, Tier1: t1, Tier2: t2, Tier3: t3}

			n := s.Normalize().PortfolioAllocation
			if math.Abs(n.Sum()-1) > 1e-9 {
				return false
			}
			// Ratios between any two non-zero components are preserved.
			if t1 > 0 && t2 > 0 {
				before := s.PortfolioAllocation.Tier1 / s.PortfolioAllocation.Tier2
				after := n.Tier1 / n.Tier2
				if math.Abs(before-after) > 1e-6 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.01, 10),
		gen.Float64Range(0.01, 10),
		gen.Float64Range(0.01, 10),
		gen.Float64Range(0.01, 10),
	))

	properties.Property("normalize is idempotent", prop.ForAll(
		func(cash, t1 float64) bool {
			s := BalancedStrategy()
			s.PortfolioAllocation = PortfolioAllocation{Cash: cash, Tier1: t1}

			once := s.Normalize()
			twice := once.Normalize()
			return math.Abs(once.PortfolioAllocation.Sum()-twice.PortfolioAllocation.Sum()) < 1e-9
		},
		gen.Float64Range(0.01, 10),
		gen.Float64Range(0.01, 10),
	))

	properties.TestingRun(t)
}
