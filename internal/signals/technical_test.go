package signals

import (
	"context"
	"testing"
	"time"

	"cryptopaper/internal/marketdata"
	"cryptopaper/internal/models"
)

func makeCandles(closes []float64, volume float64) []models.Candle {
	base := time.Now().Add(-time.Duration(len(closes)) * time.Hour)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    volume,
		}
	}
	return candles
}

func trendCloses(start, step float64, n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + step*float64(i)
	}
	return closes
}

func TestTechnicalScoreNeutralWithLittleHistory(t *testing.T) {
	candles := makeCandles(trendCloses(100, 1, 10), 1)
	if got := TechnicalScore(candles); got != 5 {
		t.Errorf("score with 10 candles = %v, want neutral 5", got)
	}
	if got := TechnicalScore(nil); got != 5 {
		t.Errorf("score with no candles = %v, want neutral 5", got)
	}
}

func TestTechnicalScoreStaysInRange(t *testing.T) {
	for _, closes := range [][]float64{
		trendCloses(100, 5, 60),
		trendCloses(400, -5, 60),
		trendCloses(100, 0, 60),
	} {
		score := TechnicalScore(makeCandles(closes, 10))
		if score < 0 || score > 10 {
			t.Errorf("score %v out of [0,10]", score)
		}
	}
}

func TestTechnicalScoreDowntrendBelowUptrend(t *testing.T) {
	// A steady downtrend must not score above the mirrored uptrend.
	up := TechnicalScore(makeCandles(trendCloses(100, 1, 60), 10))
	down := TechnicalScore(makeCandles(trendCloses(160, -1, 60), 10))
	if down >= up {
		t.Errorf("downtrend score %v >= uptrend score %v", down, up)
	}
}

func TestRSIExtremes(t *testing.T) {
	// All gains: RSI 100. All losses: RSI 0.
	gains := makeCandles(trendCloses(100, 1, 30), 1)
	if got := RSI(gains, 14); got != 100 {
		t.Errorf("RSI of pure gains = %v, want 100", got)
	}
	losses := makeCandles(trendCloses(130, -1, 30), 1)
	if got := RSI(losses, 14); got != 0 {
		t.Errorf("RSI of pure losses = %v, want 0", got)
	}
	// Too little history: neutral 50.
	if got := RSI(gains[:10], 14); got != 50 {
		t.Errorf("RSI with short history = %v, want 50", got)
	}
}

func TestCompositeAnalyzerUsesFundamentalsTable(t *testing.T) {
	market := marketdata.NewStaticProvider(nil)
	market.SetCandles("KRW-BTC", makeCandles(trendCloses(100, 1, 60), 10))

	a := NewCompositeAnalyzer(market, nil, map[string]float64{"KRW-BTC": 8})

	sub, err := a.Analyze(context.Background(), "KRW-BTC")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sub.Fundamental != 8 {
		t.Errorf("fundamental = %v, want 8 from the table", sub.Fundamental)
	}
	if sub.Sentiment != 5 {
		t.Errorf("sentiment without a scorer = %v, want neutral 5", sub.Sentiment)
	}
	if sub.Confidence >= 0 {
		t.Errorf("confidence = %v, want unset (negative)", sub.Confidence)
	}
}

// volumeMarket reports a ticker 24h traded value on top of a static provider.
type volumeMarket struct {
	*marketdata.StaticProvider
	volumes map[string]float64
}

func (m *volumeMarket) GetVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if v, ok := m.volumes[sym]; ok {
			out[sym] = v
		}
	}
	return out, nil
}

func TestCompositeAnalyzerPrefersTickerVolume(t *testing.T) {
	static := marketdata.NewStaticProvider(nil)
	static.SetCandles("KRW-BTC", makeCandles(trendCloses(100, 1, 60), 10))
	market := &volumeMarket{StaticProvider: static, volumes: map[string]float64{"KRW-BTC": 3e9}}

	a := NewCompositeAnalyzer(market, nil, nil)

	sub, err := a.Analyze(context.Background(), "KRW-BTC")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sub.Volume24h != 3e9 {
		t.Errorf("volume = %v, want the ticker value 3e9 over the candle estimate", sub.Volume24h)
	}
}

func TestCompositeAnalyzerEstimatesVolumeFromCandles(t *testing.T) {
	market := marketdata.NewStaticProvider(nil)
	candles := makeCandles(trendCloses(100, 1, 60), 10)
	market.SetCandles("KRW-BTC", candles)

	a := NewCompositeAnalyzer(market, nil, nil)

	sub, err := a.Analyze(context.Background(), "KRW-BTC")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	var want float64
	for _, c := range candles[len(candles)-24:] {
		want += c.Volume * c.Close
	}
	if sub.Volume24h != want {
		t.Errorf("volume = %v, want %v from the last 24 candles", sub.Volume24h, want)
	}
}

type stubSentiment struct{ score float64 }

func (s stubSentiment) ScoreSentiment(ctx context.Context, symbol string) (float64, error) {
	return s.score, nil
}

func TestCompositeAnalyzerUsesSentimentScorer(t *testing.T) {
	market := marketdata.NewStaticProvider(nil)
	market.SetCandles("KRW-ETH", makeCandles(trendCloses(100, 1, 60), 10))

	a := NewCompositeAnalyzer(market, stubSentiment{score: 8.5}, nil)

	sub, err := a.Analyze(context.Background(), "KRW-ETH")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if sub.Sentiment != 8.5 {
		t.Errorf("sentiment = %v, want 8.5 from the scorer", sub.Sentiment)
	}
}
