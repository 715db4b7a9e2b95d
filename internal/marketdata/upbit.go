package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cryptopaper/internal/models"
)

// UpbitClient fetches tickers and candles from an Upbit-style REST API.
type UpbitClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// UpbitConfig holds configuration for the REST client.
type UpbitConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewUpbitClient creates a new Upbit REST client.
func NewUpbitClient(cfg UpbitConfig) *UpbitClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.upbit.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UpbitClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}
}

// tickerResponse mirrors the fields we consume from /ticker.
type tickerResponse struct {
	Market        string  `json:"market"`
	TradePrice    float64 `json:"trade_price"`
	AccTradeValue float64 `json:"acc_trade_price_24h"`
}

// candleResponse mirrors the fields we consume from /candles, newest first.
type candleResponse struct {
	Market       string  `json:"market"`
	CandleTimeMS int64   `json:"timestamp"`
	Open         float64 `json:"opening_price"`
	High         float64 `json:"high_price"`
	Low          float64 `json:"low_price"`
	Close        float64 `json:"trade_price"`
	Volume       float64 `json:"candle_acc_trade_volume"`
}

// GetPrices fetches the latest trade price for each symbol in one call.
// Symbols the API does not know are simply missing from the result.
func (c *UpbitClient) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	endpoint := fmt.Sprintf("%s/ticker?markets=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var tickers []tickerResponse
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("parsing ticker response: %w", err)
	}

	prices := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		if t.TradePrice > 0 {
			prices[t.Market] = t.TradePrice
		}
	}
	return prices, nil
}

// GetCandles fetches up to count minute candles for a symbol, oldest first.
func (c *UpbitClient) GetCandles(ctx context.Context, symbol string, count int) ([]models.Candle, error) {
	if count <= 0 {
		return nil, nil
	}
	if count > 200 {
		count = 200
	}

	endpoint := fmt.Sprintf("%s/candles/minutes/60?market=%s&count=%d", c.baseURL, url.QueryEscape(symbol), count)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var raw []candleResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing candle response: %w", err)
	}

	// API returns newest first; reverse to oldest first.
	candles := make([]models.Candle, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		r := raw[i]
		candles = append(candles, models.Candle{
			Timestamp: time.UnixMilli(r.CandleTimeMS),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	return candles, nil
}

// GetVolumes fetches the 24h traded value per symbol, used for the volume
// sub-score buckets.
func (c *UpbitClient) GetVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	endpoint := fmt.Sprintf("%s/ticker?markets=%s", c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var tickers []tickerResponse
	if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("parsing ticker response: %w", err)
	}

	volumes := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		volumes[t.Market] = t.AccTradeValue
	}
	return volumes, nil
}

func (c *UpbitClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

var (
	_ Provider       = (*UpbitClient)(nil)
	_ VolumeProvider = (*UpbitClient)(nil)
)
