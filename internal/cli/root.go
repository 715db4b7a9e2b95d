// Package cli provides the command-line interface for the paper-trading
// application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cryptopaper/internal/config"
	"cryptopaper/internal/marketdata"
	"cryptopaper/internal/notify"
	"cryptopaper/internal/session"
	"cryptopaper/internal/signals"
	"cryptopaper/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.KVStore
	Gateway    *store.Gateway
	Rest       *marketdata.UpbitClient
	Feed       *marketdata.Feed
	Controller *session.Controller
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	kv, err := store.Open(cfg.Store.Backend, cfg.Store.SQLitePath, cfg.Store.RedisAddr, cfg.Store.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Str("backend", cfg.Store.Backend).
			Msg("Failed to open store, falling back to in-memory persistence")
		kv = store.NewMemoryStore()
	}
	app.Store = kv
	app.Gateway = store.NewGateway(kv, logger)

	app.Rest = marketdata.NewUpbitClient(marketdata.UpbitConfig{
		BaseURL: cfg.MarketData.RESTBaseURL,
		Timeout: cfg.MarketData.HTTPTimeout,
		Logger:  logger,
	})
	app.Feed = marketdata.NewFeed(marketdata.FeedConfig{
		URL:      cfg.MarketData.WebsocketURL,
		Fallback: app.Rest,
		Logger:   logger,
	})

	var sentiment signals.SentimentScorer
	if cfg.OpenAI.APIKey != "" {
		sentiment = signals.NewLLMSentimentScorer(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		logger.Debug().Str("model", cfg.OpenAI.Model).Msg("Sentiment scorer initialized")
	}
	analyzer := signals.NewCompositeAnalyzer(app.Feed, sentiment, nil)

	feed := notify.NewFeed(cfg.History.MaxNotifications)
	feed.AddNotifier(notify.NewTerminalNotifier())

	app.Controller = session.NewController(session.ControllerConfig{
		App:      cfg,
		Market:   app.Feed,
		Analysis: analyzer,
		Gateway:  app.Gateway,
		Feed:     feed,
		Logger:   logger,
	})
	app.Controller.Restore()

	rootCmd := &cobra.Command{
		Use:   "cryptopaper",
		Short: "Crypto paper trading simulator",
		Long: `Cryptopaper is a paper-trading simulator for KRW crypto markets.

It streams live Upbit prices, scores coins with a weighted composite
signal model and runs a simulated portfolio with configurable strategies.
No real orders are placed and no exchange credentials are required.

Use 'cryptopaper paper start' to begin a session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/cryptopaper)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addPaperCommands(rootCmd, app)
	addCoinCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("cryptopaper v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Scheduler")
	output.Printf("  Tick Interval:    %s\n", cfg.Scheduler.TickInterval)
	output.Printf("  Feed Interval:    %s\n", cfg.Scheduler.FeedInterval)
	output.Printf("  Refresh Cooldown: %s\n", cfg.Scheduler.RefreshCooldown)
	output.Println()

	output.Bold("History")
	output.Printf("  Max Trades:        %d\n", cfg.History.MaxTrades)
	output.Printf("  Max Signals:       %d\n", cfg.History.MaxSignals)
	output.Printf("  Max Notifications: %d\n", cfg.History.MaxNotifications)
	output.Println()

	output.Bold("Store")
	output.Printf("  Backend:     %s\n", cfg.Store.Backend)
	output.Printf("  SQLite Path: %s\n", cfg.Store.SQLitePath)
	output.Printf("  Redis Addr:  %s\n", cfg.Store.RedisAddr)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  REST Base URL: %s\n", cfg.MarketData.RESTBaseURL)
	output.Printf("  Websocket URL: %s\n", cfg.MarketData.WebsocketURL)
	output.Println()

	output.Bold("Sentiment")
	output.Printf("  Model:   %s\n", cfg.OpenAI.Model)
	output.Printf("  API Key: %v\n", cfg.OpenAI.APIKey != "")

	return nil
}
