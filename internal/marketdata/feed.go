package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"cryptopaper/internal/models"
	"cryptopaper/pkg/utils"
)

// Feed streams live tickers over a websocket and caches the last price per
// symbol. GetPrices is served from the cache; candles are delegated to a
// REST fallback so the Feed satisfies the full Provider interface.
type Feed struct {
	url      string
	fallback Provider
	logger   zerolog.Logger

	mu        sync.RWMutex
	prices    map[string]float64
	volumes   map[string]float64
	symbols   []string
	conn      *websocket.Conn
	started   bool
	cancel    context.CancelFunc
	onTick    func(models.Tick)
	retryConf utils.RetryConfig
}

// FeedConfig holds configuration for the websocket feed.
type FeedConfig struct {
	URL      string
	Fallback Provider
	Logger   zerolog.Logger
}

// NewFeed creates a new websocket price feed.
func NewFeed(cfg FeedConfig) *Feed {
	url := cfg.URL
	if url == "" {
		url = "wss://api.upbit.com/websocket/v1"
	}
	return &Feed{
		url:       url,
		fallback:  cfg.Fallback,
		logger:    cfg.Logger,
		prices:    make(map[string]float64),
		volumes:   make(map[string]float64),
		retryConf: utils.DefaultRetryConfig(),
	}
}

// OnTick registers a callback invoked for every received tick.
func (f *Feed) OnTick(fn func(models.Tick)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onTick = fn
}

// Subscribe sets the symbols to stream and (re)sends the subscription if
// the feed is already connected.
func (f *Feed) Subscribe(symbols []string) error {
	f.mu.Lock()
	f.symbols = append([]string(nil), symbols...)
	conn := f.conn
	f.mu.Unlock()

	if conn == nil {
		return nil
	}
	return f.sendSubscription(conn, symbols)
}

// Start connects and begins the read loop. Safe to call once.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	go f.run(ctx)
	return nil
}

// Stop closes the connection and stops the read loop.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.started = false
}

// run dials, subscribes and reads ticks, reconnecting with backoff until
// the context is cancelled.
func (f *Feed) run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := utils.RetryWithResult(ctx, f.retryConf, func() (*websocket.Conn, error) {
			c, _, dialErr := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
			return c, dialErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn().Err(err).Str("url", f.url).Msg("Feed connect failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		f.mu.Lock()
		f.conn = conn
		symbols := append([]string(nil), f.symbols...)
		f.mu.Unlock()

		if len(symbols) > 0 {
			if err := f.sendSubscription(conn, symbols); err != nil {
				f.logger.Warn().Err(err).Msg("Feed subscription failed")
				conn.Close()
				continue
			}
		}

		f.readLoop(ctx, conn)

		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()
		conn.Close()
	}
}

// upbitTicker mirrors the fields we consume from the streaming ticker frame.
type upbitTicker struct {
	Code          string  `json:"code"`
	TradePrice    float64 `json:"trade_price"`
	AccTradeValue float64 `json:"acc_trade_price_24h"`
	TimestampMS   int64   `json:"timestamp"`
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				f.logger.Warn().Err(err).Msg("Feed read failed, reconnecting")
			}
			return
		}

		var t upbitTicker
		if err := json.Unmarshal(data, &t); err != nil || t.Code == "" || t.TradePrice <= 0 {
			continue
		}

		f.mu.Lock()
		f.prices[t.Code] = t.TradePrice
		f.volumes[t.Code] = t.AccTradeValue
		onTick := f.onTick
		f.mu.Unlock()

		if onTick != nil {
			onTick(models.Tick{
				Symbol:    t.Code,
				Price:     t.TradePrice,
				Volume24h: t.AccTradeValue,
				Timestamp: time.UnixMilli(t.TimestampMS),
			})
		}
	}
}

func (f *Feed) sendSubscription(conn *websocket.Conn, symbols []string) error {
	payload := []interface{}{
		map[string]string{"ticket": uuid.NewString()},
		map[string]interface{}{"type": "ticker", "codes": symbols},
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// GetPrices serves the last streamed price per symbol. Symbols never seen
// on the stream fall back to the REST provider when one is configured.
func (f *Feed) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var missing []string

	f.mu.RLock()
	for _, sym := range symbols {
		if price, ok := f.prices[sym]; ok && price > 0 {
			out[sym] = price
		} else {
			missing = append(missing, sym)
		}
	}
	f.mu.RUnlock()

	if len(missing) > 0 && f.fallback != nil {
		rest, err := f.fallback.GetPrices(ctx, missing)
		if err != nil {
			// Partial data is acceptable; the cache already served the rest.
			f.logger.Warn().Err(err).Msg("Feed fallback fetch failed")
			return out, nil
		}
		for sym, price := range rest {
			out[sym] = price
		}
	}
	return out, nil
}

// GetVolumes returns the last streamed 24h traded value per symbol.
// Symbols never seen on the stream fall back to the REST provider when it
// reports volumes.
func (f *Feed) GetVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var missing []string

	f.mu.RLock()
	for _, sym := range symbols {
		if v, ok := f.volumes[sym]; ok {
			out[sym] = v
		} else {
			missing = append(missing, sym)
		}
	}
	f.mu.RUnlock()

	if len(missing) > 0 {
		if vp, ok := f.fallback.(VolumeProvider); ok {
			rest, err := vp.GetVolumes(ctx, missing)
			if err != nil {
				f.logger.Warn().Err(err).Msg("Feed volume fallback fetch failed")
				return out, nil
			}
			for sym, v := range rest {
				out[sym] = v
			}
		}
	}
	return out, nil
}

// GetCandles delegates to the REST fallback; the stream carries no history.
func (f *Feed) GetCandles(ctx context.Context, symbol string, count int) ([]models.Candle, error) {
	if f.fallback == nil {
		return nil, nil
	}
	return f.fallback.GetCandles(ctx, symbol, count)
}

var (
	_ Provider       = (*Feed)(nil)
	_ VolumeProvider = (*Feed)(nil)
)
