// Package signals scores candidate symbols and produces ranked buy/sell
// signals from provided sub-scores.
package signals

import (
	"context"
	"sync"
)

// SubScores carries the four analysis inputs for one symbol. The three
// named scores use a 0-10 scale; Volume24h is the raw 24h traded value,
// which the generator maps onto the same scale with fixed breakpoints.
// Confidence is an optional upstream reliability on a 0-1 scale; negative
// means unset, in which case the generator derives it from score
// dispersion.
type SubScores struct {
	Technical   float64
	Sentiment   float64
	Fundamental float64
	Volume24h   float64
	Confidence  float64
}

// AnalysisProvider supplies sub-scores for symbols. The generator is a
// pure function of these inputs; it never invents scores itself.
type AnalysisProvider interface {
	Analyze(ctx context.Context, symbol string) (SubScores, error)
}

// StaticProvider serves fixed sub-scores, for tests and offline use.
type StaticProvider struct {
	mu     sync.RWMutex
	scores map[string]SubScores
}

// NewStaticProvider creates a provider with the given sub-scores.
func NewStaticProvider(scores map[string]SubScores) *StaticProvider {
	cp := make(map[string]SubScores, len(scores))
	for k, v := range scores {
		cp[k] = v
	}
	return &StaticProvider{scores: cp}
}

// SetScores sets the sub-scores for a symbol.
func (s *StaticProvider) SetScores(symbol string, scores SubScores) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[symbol] = scores
}

// Analyze returns the configured sub-scores. Unknown symbols get neutral
// scores with unset confidence.
func (s *StaticProvider) Analyze(ctx context.Context, symbol string) (SubScores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sc, ok := s.scores[symbol]; ok {
		return sc, nil
	}
	return SubScores{Technical: 5, Sentiment: 5, Fundamental: 5, Confidence: -1}, nil
}

var _ AnalysisProvider = (*StaticProvider)(nil)
