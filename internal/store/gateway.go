package store

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"cryptopaper/internal/config"
	"cryptopaper/internal/errors"
	"cryptopaper/internal/models"
)

// Stable snapshot keys. Each slice of state is persisted independently so
// corruption in one key never blocks restoration of the others.
const (
	KeySession       = "cryptopaper:session"
	KeyStrategy      = "cryptopaper:strategy"
	KeyPositions     = "cryptopaper:positions"
	KeyTrades        = "cryptopaper:trades"
	KeySignals       = "cryptopaper:signals"
	KeyNotifications = "cryptopaper:notifications"
)

// Snapshot is the full persisted state of the simulation core.
type Snapshot struct {
	Session       *models.TradingSession
	Strategy      *config.StrategyConfiguration
	Positions     []models.Position
	Trades        []models.Trade
	Signals       []models.Signal
	Notifications []models.Notification
}

// Gateway serializes session state to a KVStore and restores it on init.
type Gateway struct {
	kv     KVStore
	logger zerolog.Logger
}

// NewGateway creates a persistence gateway over the given store.
func NewGateway(kv KVStore, logger zerolog.Logger) *Gateway {
	return &Gateway{kv: kv, logger: logger}
}

// Save persists the full snapshot. Each key is written independently; the
// first write error is returned but later keys are still attempted.
func (g *Gateway) Save(snap Snapshot) error {
	var firstErr error
	record := func(key string, value interface{}) {
		if err := g.set(key, value); err != nil {
			g.logger.Error().Err(err).Str("key", key).Msg("Snapshot write failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Absent pointers clear their key instead of persisting a JSON null.
	if snap.Session != nil {
		record(KeySession, snap.Session)
	} else if err := g.kv.Remove(KeySession); err != nil && firstErr == nil {
		firstErr = err
	}
	if snap.Strategy != nil {
		record(KeyStrategy, snap.Strategy)
	} else if err := g.kv.Remove(KeyStrategy); err != nil && firstErr == nil {
		firstErr = err
	}
	record(KeyPositions, snap.Positions)
	record(KeyTrades, snap.Trades)
	record(KeySignals, snap.Signals)
	record(KeyNotifications, snap.Notifications)
	return firstErr
}

// ClearSession removes the live session record, keeping history keys.
func (g *Gateway) ClearSession() error {
	return g.kv.Remove(KeySession)
}

// Restore reads every key independently. A missing or corrupt key is
// logged as a warning and yields that slice's zero value; it never blocks
// restoration of the other keys.
func (g *Gateway) Restore() Snapshot {
	var snap Snapshot

	var session models.TradingSession
	if g.get(KeySession, &session) && session.ID != "" {
		snap.Session = &session
	}
	var strategy config.StrategyConfiguration
	if g.get(KeyStrategy, &strategy) {
		snap.Strategy = &strategy
	}
	g.get(KeyPositions, &snap.Positions)
	g.get(KeyTrades, &snap.Trades)
	g.get(KeySignals, &snap.Signals)
	g.get(KeyNotifications, &snap.Notifications)

	return snap
}

func (g *Gateway) set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &errors.PersistenceError{Key: key, Err: err}
	}
	if err := g.kv.Set(key, string(data)); err != nil {
		return &errors.PersistenceError{Key: key, Err: err}
	}
	return nil
}

// get unmarshals one key into target, reporting whether it succeeded.
func (g *Gateway) get(key string, target interface{}) bool {
	raw, ok, err := g.kv.Get(key)
	if err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("Snapshot read failed, using default")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		g.logger.Warn().Err(err).Str("key", key).Msg("Corrupt snapshot record, using default")
		return false
	}
	return true
}

// Open creates the KVStore backend named by the configuration.
func Open(backend, sqlitePath, redisAddr, redisPassword string) (KVStore, error) {
	switch backend {
	case "redis":
		return NewRedisStore(redisAddr, redisPassword)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return NewSQLiteStore(sqlitePath)
	}
}
