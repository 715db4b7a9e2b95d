package signals

import (
	"context"
	"fmt"

	"cryptopaper/internal/marketdata"
	"cryptopaper/internal/models"
)

// candleLookback is how many candles the technical score is computed over.
const candleLookback = 60

// CompositeAnalyzer implements AnalysisProvider by combining a technical
// score computed from candles, an optional sentiment scorer, a fundamental
// score table and the symbol's 24h traded value.
type CompositeAnalyzer struct {
	market       marketdata.Provider
	sentiment    SentimentScorer
	fundamentals map[string]float64
}

// SentimentScorer scores news/sentiment for a symbol on a 0-10 scale.
type SentimentScorer interface {
	ScoreSentiment(ctx context.Context, symbol string) (float64, error)
}

// NewCompositeAnalyzer creates an analyzer over the given market data
// provider. Sentiment is optional; without a scorer the sentiment
// sub-score is neutral. Fundamentals default to neutral per symbol.
func NewCompositeAnalyzer(market marketdata.Provider, sentiment SentimentScorer, fundamentals map[string]float64) *CompositeAnalyzer {
	return &CompositeAnalyzer{
		market:       market,
		sentiment:    sentiment,
		fundamentals: fundamentals,
	}
}

// Analyze computes sub-scores for one symbol. Confidence is left unset so
// the generator derives it from dispersion.
func (a *CompositeAnalyzer) Analyze(ctx context.Context, symbol string) (SubScores, error) {
	candles, err := a.market.GetCandles(ctx, symbol, candleLookback)
	if err != nil {
		return SubScores{}, fmt.Errorf("fetching candles for %s: %w", symbol, err)
	}

	sub := SubScores{
		Technical:   TechnicalScore(candles),
		Sentiment:   5,
		Fundamental: 5,
		Volume24h:   a.volume24h(ctx, symbol, candles),
		Confidence:  -1,
	}

	if f, ok := a.fundamentals[symbol]; ok {
		sub.Fundamental = f
	}

	if a.sentiment != nil {
		if s, err := a.sentiment.ScoreSentiment(ctx, symbol); err == nil {
			sub.Sentiment = s
		}
	}

	return sub, nil
}

// TechnicalScore computes a 0-10 technical sub-score from candles using
// RSI zones, moving-average alignment and volume confirmation. With too
// little history it returns a neutral 5.
func TechnicalScore(candles []models.Candle) float64 {
	if len(candles) < 20 {
		return 5
	}

	// Each component contributes a delta around the neutral midpoint.
	score := 5.0

	// RSI: oversold is bullish, overbought is bearish.
	rsi := RSI(candles, 14)
	switch {
	case rsi <= 30:
		score += 2
	case rsi <= 45:
		score += 1
	case rsi >= 70:
		score -= 2
	case rsi >= 55:
		score -= 1
	}

	// Price vs short/long simple moving averages.
	last := candles[len(candles)-1].Close
	smaShort := sma(candles, 7)
	smaLong := sma(candles, 20)
	if last > smaShort {
		score += 1
	} else {
		score -= 1
	}
	if last > smaLong {
		score += 1
	} else {
		score -= 1
	}
	if smaShort > smaLong {
		score += 0.5
	} else {
		score -= 0.5
	}

	// Volume confirmation: an up move on above-average volume strengthens
	// the signal, a down move on heavy volume weakens it.
	n := len(candles)
	var avgVol float64
	for i := n - 20; i < n-1; i++ {
		avgVol += candles[i].Volume
	}
	avgVol /= 19
	if avgVol > 0 {
		ratio := candles[n-1].Volume / avgVol
		change := candles[n-1].Close - candles[n-2].Close
		if ratio > 1.5 {
			if change > 0 {
				score += 0.5
			} else if change < 0 {
				score -= 0.5
			}
		}
	}

	return clamp(score, 0, 10)
}

// RSI computes the relative strength index over the given period using the
// standard Wilder smoothing.
func RSI(candles []models.Candle, period int) float64 {
	if len(candles) <= period {
		return 50
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// sma computes the simple moving average of closes over the last period.
func sma(candles []models.Candle, period int) float64 {
	n := len(candles)
	if n < period || period <= 0 {
		return 0
	}
	var sum float64
	for i := n - period; i < n; i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// volume24h reports the symbol's 24h traded value. Providers that carry a
// real ticker value are preferred; otherwise it is approximated from the
// hourly candles.
func (a *CompositeAnalyzer) volume24h(ctx context.Context, symbol string, candles []models.Candle) float64 {
	if vp, ok := a.market.(marketdata.VolumeProvider); ok {
		if vols, err := vp.GetVolumes(ctx, []string{symbol}); err == nil {
			if v, ok := vols[symbol]; ok && v > 0 {
				return v
			}
		}
	}
	return tradedValue24h(candles)
}

// tradedValue24h approximates 24h traded value from hourly candles.
func tradedValue24h(candles []models.Candle) float64 {
	n := len(candles)
	start := n - 24
	if start < 0 {
		start = 0
	}
	var total float64
	for i := start; i < n; i++ {
		total += candles[i].Volume * candles[i].Close
	}
	return total
}

var _ AnalysisProvider = (*CompositeAnalyzer)(nil)
