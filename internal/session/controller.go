package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cryptopaper/internal/config"
	"cryptopaper/internal/errors"
	"cryptopaper/internal/ledger"
	"cryptopaper/internal/logging"
	"cryptopaper/internal/marketdata"
	"cryptopaper/internal/models"
	"cryptopaper/internal/notify"
	"cryptopaper/internal/signals"
	"cryptopaper/internal/store"
)

// fetchTimeout bounds the market data I/O inside one tick or command.
const fetchTimeout = 15 * time.Second

// ControllerConfig holds the collaborators of a session controller.
type ControllerConfig struct {
	App      *config.Config
	Market   marketdata.Provider
	Analysis signals.AnalysisProvider
	Gateway  *store.Gateway
	Feed     *notify.Feed
	Logger   zerolog.Logger
}

// Controller owns one trading session: its strategy, ledger and scheduler.
// All mutation goes through the controller's mutex, so ticks and commands
// are atomic with respect to the ledger's in-memory state.
type Controller struct {
	mu sync.Mutex

	appCfg   *config.Config
	market   marketdata.Provider
	analysis signals.AnalysisProvider
	gateway  *store.Gateway
	feed     *notify.Feed
	events   *Events
	logger   zerolog.Logger

	strategy   config.StrategyConfiguration
	session    *models.TradingSession
	book       *ledger.Ledger
	generator  *signals.Generator
	signalHist []models.Signal

	sched *Scheduler

	// generation invalidates in-flight ticks: a tick commits only if the
	// generation it started under is still current.
	generation uint64

	lastRefresh    time.Time
	tradeDay       string
	tradesToday    int
	targetNotified bool

	now func() time.Time
}

// NewController creates a controller. Call Restore to pick up persisted
// state before issuing commands.
func NewController(cfg ControllerConfig) *Controller {
	app := cfg.App
	if app == nil {
		app = config.Default()
	}
	feed := cfg.Feed
	if feed == nil {
		feed = notify.NewFeed(app.History.MaxNotifications)
	}
	return &Controller{
		appCfg:   app,
		market:   cfg.Market,
		analysis: cfg.Analysis,
		gateway:  cfg.Gateway,
		feed:     feed,
		events:   NewEvents(),
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Events returns the controller's event stream.
func (c *Controller) Events() *Events {
	return c.events
}

// Notifications returns the controller's notification feed.
func (c *Controller) Notifications() *notify.Feed {
	return c.feed
}

// Start validates the strategy, builds the initial positions and starts
// the update loop. Calling Start while already Running is a no-op that
// reports the existing session.
func (c *Controller) Start(strategy config.StrategyConfiguration) errors.Result {
	c.mu.Lock()

	if c.session != nil {
		id, status := c.session.ID, c.session.Status
		c.mu.Unlock()
		if status == models.StatusRunning {
			return errors.OK(fmt.Sprintf("session %s already running", id))
		}
		// A paused session holds positions and history; replacing it
		// silently would discard both. Stop or resume it first.
		return errors.Fail(fmt.Errorf("session %s is paused; resume it or stop it before starting a new one", id))
	}

	strategy = strategy.Normalize()
	if err := strategy.Validate(); err != nil {
		c.mu.Unlock()
		return errors.Fail(err)
	}

	coins := append([]string(nil), strategy.Coins...)
	c.mu.Unlock()

	// Price fetch happens outside the lock; it is the slow part.
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	prices, err := c.market.GetPrices(ctx, coins)
	cancel()
	if err != nil {
		return errors.Fail(&errors.DataFetchError{Symbol: "initial prices", Err: err})
	}

	priced := make([]string, 0, len(coins))
	for _, coin := range coins {
		if prices[coin] > 0 {
			priced = append(priced, coin)
		}
	}
	if len(priced) == 0 {
		return errors.Fail(errors.NewValidationError("coins", coins, "no prices available for selected coins"))
	}

	weights, err := c.allocationWeights(strategy, priced)
	if err != nil {
		return errors.Fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		if c.session.Status == models.StatusRunning {
			return errors.OK(fmt.Sprintf("session %s already running", c.session.ID))
		}
		return errors.Fail(fmt.Errorf("session %s is paused; resume it or stop it before starting a new one", c.session.ID))
	}

	reserve := strategy.InitialAmount * strategy.RiskManagement.ReserveCashRatio
	investable := strategy.InitialAmount - reserve

	book := ledger.New(strategy.InitialAmount, c.appCfg.History.MaxTrades, c.logger)
	for _, coin := range priced {
		amount := investable * weights[coin]
		if amount <= 0 {
			continue
		}
		if err := book.OpenPosition(coin, coin, amount, prices[coin]); err != nil {
			return errors.Fail(err)
		}
	}

	c.strategy = strategy
	c.book = book
	c.signalHist = nil
	c.generator = signals.NewGenerator(c.analysis, signals.Config{
		MinBuyScore:    strategy.BuyConditions.MinScore,
		StrongBuyScore: strategy.BuyConditions.StrongBuyScore,
		SellThreshold:  strategy.SellConditions.SellThreshold,
		MaxSignals:     c.appCfg.History.MaxSignals,
	}, c.logger)
	c.session = &models.TradingSession{
		ID:            uuid.NewString(),
		StartedAt:     c.now(),
		InitialAmount: strategy.InitialAmount,
		CashBalance:   book.CashBalance(),
		Status:        models.StatusRunning,
		Coins:         priced,
	}
	c.tradesToday = 0
	c.tradeDay = c.now().Format("2006-01-02")
	c.targetNotified = false

	c.startSchedulerLocked()

	sess := *c.session
	c.logger.Info().
		Str("session_id", sess.ID).
		Int("positions", len(priced)).
		Float64("initial_amount", strategy.InitialAmount).
		Msg("Session started")

	c.snapshotLocked()
	c.publishAfter(func() {
		c.events.Publish(TopicSessionStarted, sess)
		c.notifyf(models.LevelSuccess, "Paper trading session started with %d coins", len(priced))
	})
	return errors.OK(fmt.Sprintf("session %s started", sess.ID))
}

// allocationWeights returns the per-coin share of the investable amount.
// Equal split is the default; the score-weighted policy splits by relative
// composite score.
func (c *Controller) allocationWeights(strategy config.StrategyConfiguration, coins []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(coins))

	if strategy.AllocationPolicy != config.AllocationScoreWeighted {
		for _, coin := range coins {
			weights[coin] = 1 / float64(len(coins))
		}
		return weights, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var total float64
	scores := make(map[string]float64, len(coins))
	for _, coin := range coins {
		sub, err := c.analysis.Analyze(ctx, coin)
		if err != nil {
			// Fall back to a neutral score so one failed analysis does
			// not block the session start.
			scores[coin] = 5
			total += 5
			continue
		}
		score, _ := signals.Composite(sub)
		if score <= 0 {
			score = 0.1
		}
		scores[coin] = score
		total += score
	}

	for coin, score := range scores {
		weights[coin] = score / total
	}
	return weights, nil
}

// Pause stops the update loop but retains the session and positions.
// No-op unless Running.
func (c *Controller) Pause() errors.Result {
	c.mu.Lock()

	if c.session == nil || c.session.Status != models.StatusRunning {
		c.mu.Unlock()
		return errors.OK("no running session to pause")
	}

	c.stopSchedulerLocked()
	c.session.Status = models.StatusPaused
	sess := *c.session
	c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info().Str("session_id", sess.ID).Msg("Session paused")
	c.events.Publish(TopicSessionPaused, sess)
	c.notifyf(models.LevelInfo, "Session paused")
	return errors.OK("session paused")
}

// Resume restarts the update loop from Paused without touching positions.
func (c *Controller) Resume() errors.Result {
	c.mu.Lock()

	if c.session == nil || c.session.Status != models.StatusPaused {
		c.mu.Unlock()
		return errors.OK("no paused session to resume")
	}

	c.session.Status = models.StatusRunning
	c.startSchedulerLocked()
	sess := *c.session
	c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info().Str("session_id", sess.ID).Msg("Session resumed")
	c.events.Publish(TopicSessionResumed, sess)
	c.notifyf(models.LevelInfo, "Session resumed")
	return errors.OK("session resumed")
}

// Stop ends the session. Historical trades, signals and notifications are
// kept; the live session reference is cleared.
func (c *Controller) Stop() errors.Result {
	c.mu.Lock()

	if c.session == nil || c.session.Status == models.StatusStopped {
		c.mu.Unlock()
		return errors.OK("no active session to stop")
	}

	c.stopSchedulerLocked()
	c.session.Status = models.StatusStopped
	sess := *c.session
	c.session = nil
	c.signalHist = append([]models.Signal(nil), c.signalHist...)

	if c.gateway != nil {
		if err := c.gateway.ClearSession(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear persisted session")
		}
		c.saveHistoryLocked()
	}
	c.mu.Unlock()

	c.logger.Info().Str("session_id", sess.ID).Msg("Session stopped")
	c.events.Publish(TopicSessionStopped, sess)
	c.notifyf(models.LevelInfo, "Session stopped")
	return errors.OK("session stopped")
}

// ManualRefresh runs one immediate update cycle, subject to a cooldown.
// Requests inside the cooldown window are dropped with a logged no-op.
func (c *Controller) ManualRefresh() errors.Result {
	c.mu.Lock()
	if c.session == nil || c.session.Status != models.StatusRunning {
		c.mu.Unlock()
		return errors.Fail(errors.ErrSessionNotFound)
	}

	cooldown := c.appCfg.Scheduler.RefreshCooldown
	if since := c.now().Sub(c.lastRefresh); since < cooldown {
		c.mu.Unlock()
		c.logger.Debug().
			Dur("since_last", since).
			Dur("cooldown", cooldown).
			Msg("Manual refresh dropped by cooldown")
		return errors.Fail(errors.ErrRefreshCooldown)
	}
	c.lastRefresh = c.now()
	sched := c.sched
	c.mu.Unlock()

	if sched != nil && !sched.TryTick() {
		return errors.OK("refresh skipped, update already in progress")
	}
	return errors.OK("refreshed")
}

// Status returns a snapshot of the controller's current state.
type Status struct {
	Session       *models.TradingSession
	Summary       models.PortfolioSummary
	Positions     []models.Position
	Trades        []models.Trade
	Signals       []models.Signal
	Notifications []models.Notification
}

// Status reports the current session, holdings and histories.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Signals:       append([]models.Signal(nil), c.signalHist...),
		Notifications: c.feed.Items(),
	}
	if c.session != nil {
		sess := *c.session
		st.Session = &sess
	}
	if c.book != nil {
		st.Summary = c.book.Summary()
		st.Positions = c.book.Positions()
		st.Trades = c.book.Trades()
	}
	return st
}

// Restore rebuilds controller state from the persistence gateway. A
// session persisted as Running comes back Paused: timer handles do not
// survive a restart, and the user decides when the loop resumes.
func (c *Controller) Restore() {
	if c.gateway == nil {
		return
	}
	snap := c.gateway.Restore()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.signalHist = snap.Signals
	c.feed.Restore(snap.Notifications)

	if snap.Session == nil {
		if len(snap.Trades) > 0 {
			// Keep historical trades visible without a live session.
			c.book = ledger.Restore(0, nil, snap.Trades, c.appCfg.History.MaxTrades, c.logger)
		}
		return
	}

	sess := *snap.Session
	if sess.Status == models.StatusRunning {
		sess.Status = models.StatusPaused
		c.logger.Info().Str("session_id", sess.ID).Msg("Restored running session as paused")
	}
	c.session = &sess
	c.book = ledger.Restore(sess.CashBalance, snap.Positions, snap.Trades, c.appCfg.History.MaxTrades, c.logger)
	if snap.Strategy != nil {
		c.strategy = snap.Strategy.Normalize()
	} else {
		c.strategy = config.BalancedStrategy()
	}
	c.generator = signals.NewGenerator(c.analysis, signals.Config{
		MinBuyScore:    c.strategy.BuyConditions.MinScore,
		StrongBuyScore: c.strategy.BuyConditions.StrongBuyScore,
		SellThreshold:  c.strategy.SellConditions.SellThreshold,
		MaxSignals:     c.appCfg.History.MaxSignals,
	}, c.logger)
}

// notifyf pushes a formatted notification and publishes it as an event.
func (c *Controller) notifyf(level models.NotificationLevel, format string, args ...interface{}) {
	n := c.feed.Push(level, fmt.Sprintf(format, args...))
	logging.LogNotification(c.logger, string(n.Level), n.Message)
	c.events.Publish(TopicNotification, n)
}

// publishAfter releases the lock, runs fn, and re-acquires the lock. The
// caller must hold the mutex and must not rely on state across the call.
func (c *Controller) publishAfter(fn func()) {
	c.mu.Unlock()
	defer c.mu.Lock()
	fn()
}

// snapshotLocked persists the full state. Caller holds the mutex.
func (c *Controller) snapshotLocked() {
	if c.gateway == nil {
		return
	}
	snap := store.Snapshot{
		Signals:       append([]models.Signal(nil), c.signalHist...),
		Notifications: c.feed.Items(),
	}
	if c.session != nil {
		c.session.CashBalance = c.book.CashBalance()
		sess := *c.session
		snap.Session = &sess
		strat := c.strategy
		snap.Strategy = &strat
	}
	if c.book != nil {
		snap.Positions = c.book.Positions()
		snap.Trades = c.book.Trades()
	}
	if err := c.gateway.Save(snap); err != nil {
		c.logger.Warn().Err(err).Msg("Snapshot failed")
	}
}

// saveHistoryLocked persists only the history keys, used after Stop.
func (c *Controller) saveHistoryLocked() {
	snap := store.Snapshot{
		Signals:       append([]models.Signal(nil), c.signalHist...),
		Notifications: c.feed.Items(),
	}
	if c.book != nil {
		snap.Trades = c.book.Trades()
		snap.Positions = c.book.Positions()
	}
	if err := c.gateway.Save(snap); err != nil {
		c.logger.Warn().Err(err).Msg("History snapshot failed")
	}
}
