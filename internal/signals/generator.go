package signals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"

	"cryptopaper/internal/models"
)

// Sub-score weights for the composite score. They sum to 1.
const (
	WeightTechnical   = 0.30
	WeightSentiment   = 0.25
	WeightFundamental = 0.25
	WeightVolume      = 0.20
)

// Volume bucket breakpoints on 24h traded value.
const (
	volumeHighBreak    = 1e9
	volumeMedHighBreak = 1e8
	volumeMediumBreak  = 1e7
)

// DefaultMaxSignals is the default cap on surfaced signals.
const DefaultMaxSignals = 5

// Config holds scoring thresholds for the generator.
type Config struct {
	MinBuyScore    float64
	StrongBuyScore float64
	SellThreshold  float64
	MaxSignals     int
}

// DefaultConfig returns the default generator thresholds.
func DefaultConfig() Config {
	return Config{
		MinBuyScore:    7.0,
		StrongBuyScore: 9.0,
		SellThreshold:  3.5,
		MaxSignals:     DefaultMaxSignals,
	}
}

// Generator produces ranked buy/sell signals from provided sub-scores.
type Generator struct {
	provider AnalysisProvider
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

// NewGenerator creates a signal generator over the given analysis provider.
func NewGenerator(provider AnalysisProvider, cfg Config, logger zerolog.Logger) *Generator {
	if cfg.MaxSignals <= 0 {
		cfg.MaxSignals = DefaultMaxSignals
	}
	return &Generator{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate scores each symbol and returns buy/sell signals sorted by score
// descending, ties broken most-recent first, capped at MaxSignals. Symbols
// whose analysis fails are skipped; symbols scoring in the hold band
// produce no signal.
func (g *Generator) Generate(ctx context.Context, symbols []string, prices map[string]float64) []models.Signal {
	var out []models.Signal

	for _, symbol := range symbols {
		sub, err := g.provider.Analyze(ctx, symbol)
		if err != nil {
			g.logger.Warn().Err(err).Str("symbol", symbol).Msg("Analysis failed, skipping symbol")
			continue
		}

		score, components := Composite(sub)
		rec := g.recommendation(score)
		if rec == models.Hold {
			continue
		}

		sig := models.Signal{
			ID:             uuid.NewString(),
			Symbol:         symbol,
			TotalScore:     score,
			Recommendation: rec,
			Confidence:     g.confidence(sub),
			Price:          prices[symbol],
			Timestamp:      g.now(),
			Components:     components,
		}
		switch rec {
		case models.Sell:
			sig.Type = models.SignalSell
			sig.Reason = fmt.Sprintf("composite score %.2f below sell threshold %.2f", score, g.cfg.SellThreshold)
		default:
			sig.Type = models.SignalBuy
			sig.Reason = fmt.Sprintf("composite score %.2f above buy threshold %.2f", score, g.cfg.MinBuyScore)
		}
		out = append(out, sig)
	}

	SortSignals(out)
	if len(out) > g.cfg.MaxSignals {
		out = out[:g.cfg.MaxSignals]
	}
	return out
}

// Composite computes the weighted composite score on a 0-10 scale and
// returns the individual weighted components for display.
func Composite(sub SubScores) (float64, map[string]float64) {
	volScore := VolumeScore(sub.Volume24h)
	components := map[string]float64{
		"technical":   clamp(sub.Technical, 0, 10),
		"sentiment":   clamp(sub.Sentiment, 0, 10),
		"fundamental": clamp(sub.Fundamental, 0, 10),
		"volume":      volScore,
	}

	score := components["technical"]*WeightTechnical +
		components["sentiment"]*WeightSentiment +
		components["fundamental"]*WeightFundamental +
		volScore*WeightVolume

	return clamp(score, 0, 10), components
}

// VolumeScore maps a 24h traded value onto the 0-10 sub-score scale with
// fixed breakpoints.
func VolumeScore(volume24h float64) float64 {
	switch {
	case volume24h >= volumeHighBreak:
		return 9
	case volume24h >= volumeMedHighBreak:
		return 7
	case volume24h >= volumeMediumBreak:
		return 5
	default:
		return 3
	}
}

// recommendation tiers the composite score.
func (g *Generator) recommendation(score float64) models.Recommendation {
	switch {
	case score >= g.cfg.StrongBuyScore:
		return models.StrongBuy
	case score >= g.cfg.MinBuyScore:
		return models.Buy
	case score < g.cfg.SellThreshold:
		return models.Sell
	default:
		return models.Hold
	}
}

// confidence buckets an explicit upstream confidence when present, and
// otherwise derives one from sub-score dispersion: tightly agreeing
// sub-scores are more reliable than scattered ones.
func (g *Generator) confidence(sub SubScores) models.Confidence {
	conf := sub.Confidence
	if conf < 0 {
		sd, err := stats.StandardDeviation([]float64{
			clamp(sub.Technical, 0, 10),
			clamp(sub.Sentiment, 0, 10),
			clamp(sub.Fundamental, 0, 10),
			VolumeScore(sub.Volume24h),
		})
		if err != nil {
			return models.ConfidenceLow
		}
		conf = clamp(1-sd/5, 0, 1)
	}

	switch {
	case conf >= 0.8:
		return models.ConfidenceHigh
	case conf >= 0.5:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// SortSignals orders signals by score descending, ties most-recent first.
func SortSignals(sigs []models.Signal) {
	sort.SliceStable(sigs, func(i, j int) bool {
		if sigs[i].TotalScore != sigs[j].TotalScore {
			return sigs[i].TotalScore > sigs[j].TotalScore
		}
		return sigs[i].Timestamp.After(sigs[j].Timestamp)
	})
}

// MergeSignals folds fresh signals into an existing history, keeping the
// result sorted and capped.
func MergeSignals(history, fresh []models.Signal, limit int) []models.Signal {
	merged := append(append([]models.Signal(nil), history...), fresh...)
	SortSignals(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// clamp restricts a value to the given range.
func clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
