package session

import (
	"context"
	"fmt"
	"time"

	"cryptopaper/internal/logging"
	"cryptopaper/internal/models"
	"cryptopaper/internal/signals"
)

func (c *Controller) startSchedulerLocked() {
	c.sched = NewScheduler(c.appCfg.Scheduler.TickInterval, c.runTick, c.logger)
	c.sched.Start()
}

// stopSchedulerLocked cancels the timer and bumps the generation so any
// in-flight tick's results are discarded instead of applied.
func (c *Controller) stopSchedulerLocked() {
	c.generation++
	if c.sched != nil {
		c.sched.Stop()
		c.sched = nil
	}
}

// runTick is one update cycle: fetch prices, revalue, refresh signals,
// apply exit rules and strong buy signals, emit events, snapshot. The
// market data I/O runs outside the lock; results are committed only if the
// session is still Running under the same generation.
func (c *Controller) runTick() {
	start := time.Now()

	c.mu.Lock()
	if c.session == nil || c.session.Status != models.StatusRunning {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	sessID := c.session.ID
	symbols := append([]string(nil), c.session.Coins...)
	generator := c.generator
	c.mu.Unlock()

	tickLogger := logging.WithSession(c.logger, sessID)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	prices, err := c.market.GetPrices(ctx, symbols)
	if err != nil {
		tickLogger.Warn().Err(err).Msg("Price fetch failed, tick continues with partial data")
		prices = map[string]float64{}
	}
	fresh := generator.Generate(ctx, symbols, prices)
	cancel()

	var emits []func()

	c.mu.Lock()
	if c.generation != gen || c.session == nil || c.session.Status != models.StatusRunning {
		c.mu.Unlock()
		tickLogger.Debug().Msg("Tick results discarded after cancellation")
		return
	}

	if len(prices) > 0 {
		c.book.Revalue(prices)
		c.session.CashBalance = c.book.CashBalance()
		positions := c.book.Positions()
		emits = append(emits, func() {
			c.events.Publish(TopicPositionsRevalued, positions)
		})
	}

	if len(fresh) > 0 {
		c.signalHist = signals.MergeSignals(c.signalHist, fresh, c.appCfg.History.MaxSignals)
		for _, sig := range fresh {
			sig := sig
			logging.LogSignal(tickLogger, sig.Symbol, string(sig.Type), sig.TotalScore, string(sig.Confidence))
			emits = append(emits, func() {
				c.events.Publish(TopicSignalGenerated, sig)
			})
		}
	}

	trades := c.evaluateExitsLocked(&emits)
	trades = append(trades, c.executeBuySignalsLocked(fresh, &emits)...)
	for _, trade := range trades {
		trade := trade
		emits = append(emits, func() {
			c.events.Publish(TopicTradeExecuted, trade)
		})
	}

	c.checkThresholdsLocked(&emits)
	c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range emits {
		fn()
	}
	logging.LogTick(c.logger, sessID, len(symbols), time.Since(start))
}

// allowTradeLocked enforces the daily trade limit.
func (c *Controller) allowTradeLocked() bool {
	day := c.now().Format("2006-01-02")
	if day != c.tradeDay {
		c.tradeDay = day
		c.tradesToday = 0
	}
	limit := c.strategy.RiskManagement.DailyTradeLimit
	return limit <= 0 || c.tradesToday < limit
}

// evaluateExitsLocked sells out positions that hit the stop loss or the
// final profit target.
func (c *Controller) evaluateExitsLocked(emits *[]func()) []models.Trade {
	var executed []models.Trade

	for _, pos := range c.book.Positions() {
		var reason string
		switch {
		case pos.PnLPercent <= c.strategy.SellConditions.StopLoss:
			reason = fmt.Sprintf("stop loss hit at %.2f%%", pos.PnLPercent)
		case pos.PnLPercent >= c.strategy.SellConditions.ProfitTarget3:
			reason = fmt.Sprintf("profit target reached at %.2f%%", pos.PnLPercent)
		default:
			continue
		}
		logger := logging.WithSymbol(c.logger, pos.Symbol)
		if !c.allowTradeLocked() {
			logger.Debug().Msg("Exit blocked by daily trade limit")
			continue
		}

		trade, err := c.book.RecordTrade(models.Trade{
			Symbol:   pos.Symbol,
			Action:   models.ActionSell,
			Price:    pos.CurrentPrice,
			Quantity: pos.Quantity,
			Reason:   reason,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Exit trade rejected")
			continue
		}
		c.tradesToday++
		c.session.CashBalance = c.book.CashBalance()
		executed = append(executed, trade)
		c.notifyInTickLocked(models.LevelWarning, emits, "Sold %s: %s", pos.Symbol, reason)
		logging.LogTrade(c.logger, trade.Symbol, string(trade.Action), trade.Quantity, trade.Price)
	}
	return executed
}

// executeBuySignalsLocked buys into strong buy signals within the risk
// limits: reserved cash is never spent, single positions stay under their
// cap and the daily trade limit applies.
func (c *Controller) executeBuySignalsLocked(fresh []models.Signal, emits *[]func()) []models.Trade {
	var executed []models.Trade

	for _, sig := range fresh {
		if sig.Recommendation != models.StrongBuy || sig.Price <= 0 {
			continue
		}
		if !c.allowTradeLocked() {
			continue
		}

		reserve := c.session.InitialAmount * c.strategy.RiskManagement.ReserveCashRatio
		available := c.book.CashBalance() - reserve
		if available <= 0 {
			continue
		}

		budget := available
		if pct := c.strategy.RiskManagement.MaxSinglePositionPct; pct > 0 {
			maxValue := c.book.TotalValue() * pct / 100
			current, held := c.book.Position(sig.Symbol)
			if held {
				if room := maxValue - current.Value; room < budget {
					budget = room
				}
			} else {
				if maxPos := c.strategy.RiskManagement.MaxPositions; maxPos > 0 && len(c.book.Positions()) >= maxPos {
					continue
				}
				if maxValue < budget {
					budget = maxValue
				}
			}
		}
		if budget <= 0 {
			continue
		}

		trade, err := c.book.RecordTrade(models.Trade{
			Symbol:   sig.Symbol,
			Action:   models.ActionBuy,
			Price:    sig.Price,
			Quantity: budget / sig.Price,
			Reason:   sig.Reason,
		})
		if err != nil {
			symLogger := logging.WithSymbol(c.logger, sig.Symbol)
			symLogger.Warn().Err(err).Msg("Buy signal rejected")
			continue
		}
		c.tradesToday++
		c.session.CashBalance = c.book.CashBalance()
		c.markSignalExecutedLocked(sig.ID)
		executed = append(executed, trade)
		c.notifyInTickLocked(models.LevelSuccess, emits, "Bought %s on strong signal (score %.2f)", sig.Symbol, sig.TotalScore)
		logging.LogTrade(c.logger, trade.Symbol, string(trade.Action), trade.Quantity, trade.Price)
	}
	return executed
}

func (c *Controller) markSignalExecutedLocked(id string) {
	for i := range c.signalHist {
		if c.signalHist[i].ID == id {
			c.signalHist[i].Executed = true
			return
		}
	}
}

// checkThresholdsLocked emits a one-shot notification when the portfolio
// crosses the first profit target.
func (c *Controller) checkThresholdsLocked(emits *[]func()) {
	if c.targetNotified {
		return
	}
	summary := c.book.Summary()
	target := c.strategy.SellConditions.ProfitTarget1
	if target > 0 && summary.TotalPnLPct >= target {
		c.targetNotified = true
		c.notifyInTickLocked(models.LevelSuccess, emits, "Portfolio up %.2f%%, first profit target reached", summary.TotalPnLPct)
	}
}

// notifyInTickLocked pushes a notification while holding the mutex and
// defers the event publish until the lock is released.
func (c *Controller) notifyInTickLocked(level models.NotificationLevel, emits *[]func(), format string, args ...interface{}) {
	n := c.feed.Push(level, fmt.Sprintf(format, args...))
	logging.LogNotification(c.logger, string(n.Level), n.Message)
	*emits = append(*emits, func() {
		c.events.Publish(TopicNotification, n)
	})
}
