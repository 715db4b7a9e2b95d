package signals

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// LLMSentimentScorer scores market sentiment for a symbol via an LLM.
// It is an optional sub-score source; without an API key the analyzer
// simply keeps the neutral sentiment score.
type LLMSentimentScorer struct {
	client *openai.Client
	model  string
}

// NewLLMSentimentScorer creates a sentiment scorer backed by OpenAI.
func NewLLMSentimentScorer(apiKey, model string) *LLMSentimentScorer {
	return &LLMSentimentScorer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

const sentimentSystemPrompt = `You score current market sentiment for a cryptocurrency.
Respond with a single number from 0 to 10, where 0 is extremely bearish,
5 is neutral and 10 is extremely bullish. No other text.`

// ScoreSentiment asks the LLM for a 0-10 sentiment score.
func (s *LLMSentimentScorer) ScoreSentiment(ctx context.Context, symbol string) (float64, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sentimentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Symbol: %s", symbol)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("sentiment completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("no response from sentiment model")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable sentiment score %q: %w", raw, err)
	}
	return clamp(score, 0, 10), nil
}

var _ SentimentScorer = (*LLMSentimentScorer)(nil)
