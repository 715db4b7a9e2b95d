package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cryptopaper/internal/config"
	"cryptopaper/internal/models"
	"cryptopaper/internal/session"
	"cryptopaper/pkg/utils"
)

// addPaperCommands adds the paper-trading session commands.
func addPaperCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Paper trading session control",
		Long: `Start, pause, resume and stop paper trading sessions.

A session allocates a simulated KRW amount across the selected coins,
revalues positions on every tick and executes trades against generated
signals. State is persisted, so a session survives restarts; a session
that was running comes back paused.`,
	}

	cmd.AddCommand(newPaperStartCmd(app))
	cmd.AddCommand(newPaperPauseCmd(app))
	cmd.AddCommand(newPaperResumeCmd(app))
	cmd.AddCommand(newPaperStopCmd(app))
	cmd.AddCommand(newPaperStatusCmd(app))
	cmd.AddCommand(newPaperRefreshCmd(app))

	rootCmd.AddCommand(cmd)
}

func newPaperStartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new paper trading session",
		Example: `  cryptopaper paper start
  cryptopaper paper start --strategy aggressive --amount 5000000
  cryptopaper paper start --coins KRW-BTC,KRW-ETH,KRW-SOL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			strategyName, _ := cmd.Flags().GetString("strategy")
			amount, _ := cmd.Flags().GetFloat64("amount")
			coinsFlag, _ := cmd.Flags().GetString("coins")

			strategy := config.StrategyByName(strategyName)
			strategy.InitialAmount = amount
			strategy.Coins = resolveCoins(app, coinsFlag)

			if err := startFeed(app, strategy.Coins); err != nil {
				output.Error("Failed to start price feed: %v", err)
				return err
			}

			result := app.Controller.Start(strategy)
			if !result.Success {
				output.Error("%s", result.Message)
				return fmt.Errorf("%s", result.Message)
			}
			output.Success("%s", result.Message)
			output.Printf("  Strategy: %s | Amount: %s | Coins: %d\n",
				strategy.Name, utils.FormatKRW(strategy.InitialAmount), len(strategy.Coins))
			output.Println()

			return watchSession(app, output)
		},
	}

	cmd.Flags().StringP("strategy", "s", "balanced", "Strategy preset (conservative, balanced, aggressive)")
	cmd.Flags().Float64P("amount", "a", 10_000_000, "Initial simulated amount in KRW")
	cmd.Flags().StringP("coins", "c", "", "Comma-separated markets (default: saved watchlist)")

	return cmd
}

func newPaperPauseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			result := app.Controller.Pause()
			if !result.Success {
				output.Error("%s", result.Message)
				return fmt.Errorf("%s", result.Message)
			}
			output.Success("%s", result.Message)
			return nil
		},
	}
}

func newPaperResumeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused session and watch it",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st := app.Controller.Status()
			if st.Session == nil {
				output.Error("No session to resume")
				return fmt.Errorf("no session to resume")
			}

			if err := startFeed(app, st.Session.Coins); err != nil {
				output.Error("Failed to start price feed: %v", err)
				return err
			}

			result := app.Controller.Resume()
			if !result.Success {
				output.Error("%s", result.Message)
				return fmt.Errorf("%s", result.Message)
			}
			output.Success("%s", result.Message)
			return watchSession(app, output)
		},
	}
}

func newPaperStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the session, keeping trade history",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			result := app.Controller.Stop()
			if !result.Success {
				output.Error("%s", result.Message)
				return fmt.Errorf("%s", result.Message)
			}
			output.Success("%s", result.Message)
			return nil
		},
	}
}

func newPaperRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one immediate update cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			result := app.Controller.ManualRefresh()
			if !result.Success {
				output.Warning("%s", result.Message)
				return nil
			}
			output.Success("%s", result.Message)
			printStatus(output, app.Controller.Status())
			return nil
		},
	}
}

func newPaperStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session, holdings and histories",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st := app.Controller.Status()
			if output.IsJSON() {
				return output.JSON(st)
			}
			printStatus(output, st)
			return nil
		},
	}
}

// resolveCoins picks the session markets: the --coins flag wins, then the
// saved watchlist, then a default large-cap set.
func resolveCoins(app *App, coinsFlag string) []string {
	if coinsFlag != "" {
		var coins []string
		for _, c := range strings.Split(coinsFlag, ",") {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				coins = append(coins, c)
			}
		}
		return coins
	}
	if saved := loadWatchlist(app); len(saved) > 0 {
		return saved
	}
	return []string{"KRW-BTC", "KRW-ETH", "KRW-XRP", "KRW-SOL", "KRW-ADA"}
}

// startFeed connects the websocket feed and subscribes the session markets.
func startFeed(app *App, symbols []string) error {
	app.Feed.OnTick(func(t models.Tick) {
		app.Logger.Debug().
			Str("symbol", t.Symbol).
			Float64("price", t.Price).
			Msg("Tick received")
	})
	if err := app.Feed.Start(context.Background()); err != nil {
		return err
	}
	return app.Feed.Subscribe(symbols)
}

// watchSession blocks until Ctrl+C, printing a summary line after every
// revaluation. On exit the session is paused so it restores cleanly.
func watchSession(app *App, output *Output) error {
	events := app.Controller.Events()

	onRevalue := func(positions []models.Position) {
		st := app.Controller.Status()
		output.Printf("[%s] total %s | cash %s | P&L %s\n",
			time.Now().Format("15:04:05"),
			utils.FormatKRW(st.Summary.TotalValue),
			utils.FormatKRW(st.Summary.CashBalance),
			output.FormatPercent(st.Summary.TotalPnLPct))
	}
	events.SubscribeAsync(session.TopicPositionsRevalued, onRevalue)
	defer events.Unsubscribe(session.TopicPositionsRevalued, onRevalue)

	output.Dim("Press Ctrl+C to pause and exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	output.Println()
	result := app.Controller.Pause()
	output.Info("%s", result.Message)
	app.Feed.Stop()
	return nil
}

// printStatus renders the session status view.
func printStatus(output *Output, st session.Status) {
	if st.Session == nil {
		output.Warning("No active session")
	} else {
		output.Bold("Session %s", st.Session.ID)
		output.Printf("  Status:   %s\n", st.Session.Status)
		output.Printf("  Started:  %s\n", st.Session.StartedAt.Format("2006-01-02 15:04:05"))
		output.Printf("  Initial:  %s\n", utils.FormatKRW(st.Session.InitialAmount))
		output.Printf("  Total:    %s (%s)\n",
			utils.FormatKRW(st.Summary.TotalValue), output.FormatPercent(st.Summary.TotalPnLPct))
		output.Printf("  Cash:     %s\n", utils.FormatKRW(st.Summary.CashBalance))
		output.Println()
	}

	if len(st.Positions) > 0 {
		output.Bold("Positions")
		table := NewTable(output, "Symbol", "Qty", "Avg Price", "Current", "Value", "P&L", "Alloc")
		for _, pos := range st.Positions {
			table.AddRow(
				pos.Symbol,
				utils.FormatQuantity(pos.Quantity),
				utils.FormatKRW(pos.AvgPrice),
				utils.FormatKRW(pos.CurrentPrice),
				utils.FormatKRW(pos.Value),
				output.FormatPercent(pos.PnLPercent),
				fmt.Sprintf("%.1f%%", pos.AllocationPct),
			)
		}
		table.Render()
		output.Println()
	}

	if len(st.Signals) > 0 {
		output.Bold("Signals")
		table := NewTable(output, "Symbol", "Score", "Recommendation", "Confidence", "Executed")
		for _, sig := range st.Signals {
			executed := ""
			if sig.Executed {
				executed = "yes"
			}
			table.AddRow(
				sig.Symbol,
				fmt.Sprintf("%.2f", sig.TotalScore),
				output.Recommendation(string(sig.Recommendation)),
				string(sig.Confidence),
				executed,
			)
		}
		table.Render()
		output.Println()
	}

	if len(st.Trades) > 0 {
		output.Bold("Recent Trades")
		table := NewTable(output, "Time", "Symbol", "Action", "Price", "Qty", "Profit")
		limit := len(st.Trades)
		if limit > 10 {
			limit = 10
		}
		for _, trade := range st.Trades[:limit] {
			table.AddRow(
				trade.Timestamp.Format("01-02 15:04"),
				trade.Symbol,
				string(trade.Action),
				utils.FormatKRW(trade.Price),
				utils.FormatQuantity(trade.Quantity),
				output.FormatPnL(trade.Profit),
			)
		}
		table.Render()
		output.Println()
	}

	if len(st.Notifications) > 0 {
		output.Bold("Notifications")
		for _, n := range st.Notifications {
			output.Printf("  [%s] %s\n", n.Timestamp.Format("15:04:05"), n.Message)
		}
	}
}
