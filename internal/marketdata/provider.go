// Package marketdata provides access to external market data sources.
package marketdata

import (
	"context"
	"sync"

	"cryptopaper/internal/models"
)

// Provider supplies prices and candles for the update loop.
// A failed lookup for a symbol yields an absent entry, not an error, so
// callers must tolerate partial data.
type Provider interface {
	// GetPrices returns the latest price per symbol. Symbols without a
	// known price are absent from the result.
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	// GetCandles returns up to count candles for the symbol, oldest first.
	GetCandles(ctx context.Context, symbol string, count int) ([]models.Candle, error)
}

// VolumeProvider is implemented by providers that can report the 24h traded
// value per symbol. Symbols without a known value are absent.
type VolumeProvider interface {
	GetVolumes(ctx context.Context, symbols []string) (map[string]float64, error)
}

// StaticProvider serves fixed prices and candles. It is used in tests and
// as an offline stand-in for a real feed.
type StaticProvider struct {
	mu      sync.RWMutex
	prices  map[string]float64
	candles map[string][]models.Candle
}

// NewStaticProvider creates a provider with the given prices.
func NewStaticProvider(prices map[string]float64) *StaticProvider {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &StaticProvider{
		prices:  cp,
		candles: make(map[string][]models.Candle),
	}
}

// SetPrice sets the price for a symbol.
func (s *StaticProvider) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

// SetCandles sets the candle history for a symbol, oldest first.
func (s *StaticProvider) SetCandles(symbol string, candles []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol] = candles
}

// GetPrices returns the configured prices for the requested symbols.
func (s *StaticProvider) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if price, ok := s.prices[sym]; ok && price > 0 {
			out[sym] = price
		}
	}
	return out, nil
}

// GetCandles returns the configured candles for a symbol, oldest first.
func (s *StaticProvider) GetCandles(ctx context.Context, symbol string, count int) ([]models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candles := s.candles[symbol]
	if len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

var _ Provider = (*StaticProvider)(nil)
