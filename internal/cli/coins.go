package cli

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// watchlistKey is where the saved coin selection lives in the KV store.
const watchlistKey = "cryptopaper:watchlist"

// addCoinCommands adds the watchlist management commands.
func addCoinCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "coins",
		Short: "Manage the coin watchlist",
		Long: `Manage the saved coin watchlist used as the default selection for
new sessions. Markets use Upbit notation, e.g. KRW-BTC.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List watchlist coins",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			coins := loadWatchlist(app)
			if output.IsJSON() {
				return output.JSON(coins)
			}
			if len(coins) == 0 {
				output.Dim("Watchlist is empty; sessions use the default large-cap set")
				return nil
			}
			for _, coin := range coins {
				output.Println(coin)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <market>...",
		Short: "Add coins to the watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			coins := loadWatchlist(app)
			seen := make(map[string]bool, len(coins))
			for _, c := range coins {
				seen[c] = true
			}
			for _, arg := range args {
				market := strings.ToUpper(strings.TrimSpace(arg))
				if market == "" || seen[market] {
					continue
				}
				coins = append(coins, market)
				seen[market] = true
			}
			sort.Strings(coins)
			if err := saveWatchlist(app, coins); err != nil {
				output.Error("Failed to save watchlist: %v", err)
				return err
			}
			output.Success("Watchlist now has %d coins", len(coins))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <market>...",
		Short: "Remove coins from the watchlist",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			drop := make(map[string]bool, len(args))
			for _, arg := range args {
				drop[strings.ToUpper(strings.TrimSpace(arg))] = true
			}
			var kept []string
			for _, coin := range loadWatchlist(app) {
				if !drop[coin] {
					kept = append(kept, coin)
				}
			}
			if err := saveWatchlist(app, kept); err != nil {
				output.Error("Failed to save watchlist: %v", err)
				return err
			}
			output.Success("Watchlist now has %d coins", len(kept))
			return nil
		},
	})

	rootCmd.AddCommand(cmd)
}

// loadWatchlist reads the saved watchlist; a missing or corrupt record is
// an empty list.
func loadWatchlist(app *App) []string {
	raw, ok, err := app.Store.Get(watchlistKey)
	if err != nil || !ok {
		return nil
	}
	var coins []string
	if err := json.Unmarshal([]byte(raw), &coins); err != nil {
		app.Logger.Warn().Err(err).Msg("Corrupt watchlist record, ignoring")
		return nil
	}
	return coins
}

func saveWatchlist(app *App, coins []string) error {
	data, err := json.Marshal(coins)
	if err != nil {
		return err
	}
	return app.Store.Set(watchlistKey, string(data))
}
