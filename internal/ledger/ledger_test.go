package ledger

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	apperrors "cryptopaper/internal/errors"
	"cryptopaper/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestOpenPositionDebitsCash(t *testing.T) {
	l := New(1_000_000, 50, testLogger())

	if err := l.OpenPosition("KRW-BTC", "KRW-BTC", 400_000, 50_000_000); err != nil {
		t.Fatalf("OpenPosition failed: %v", err)
	}

	if got := l.CashBalance(); !almostEqual(got, 600_000) {
		t.Errorf("cash balance = %.2f, want 600000", got)
	}
	pos, ok := l.Position("KRW-BTC")
	if !ok {
		t.Fatal("position not found after open")
	}
	if !almostEqual(pos.Quantity, 400_000.0/50_000_000) {
		t.Errorf("quantity = %v, want %v", pos.Quantity, 400_000.0/50_000_000)
	}
	if !almostEqual(l.TotalValue(), 1_000_000) {
		t.Errorf("total value = %.2f, want 1000000 right after open", l.TotalValue())
	}
}

func TestOpenPositionRejectsOverdraft(t *testing.T) {
	l := New(100_000, 50, testLogger())

	err := l.OpenPosition("KRW-ETH", "KRW-ETH", 200_000, 3_000_000)
	if !apperrors.Is(err, apperrors.ErrInsufficientFunds) {
		t.Errorf("expected insufficient funds error, got %v", err)
	}
	if len(l.Positions()) != 0 {
		t.Error("failed open must not create a position")
	}
	if !almostEqual(l.CashBalance(), 100_000) {
		t.Errorf("cash balance changed on rejected open: %.2f", l.CashBalance())
	}
}

func TestBuyAveragesPriceVolumeWeighted(t *testing.T) {
	l := New(1_000_000, 50, testLogger())

	for _, tr := range []models.Trade{
		{Symbol: "KRW-SOL", Action: models.ActionBuy, Price: 100_000, Quantity: 1},
		{Symbol: "KRW-SOL", Action: models.ActionBuy, Price: 200_000, Quantity: 1},
	} {
		if _, err := l.RecordTrade(tr); err != nil {
			t.Fatalf("RecordTrade failed: %v", err)
		}
	}

	pos, ok := l.Position("KRW-SOL")
	if !ok {
		t.Fatal("position not found")
	}
	if !almostEqual(pos.AvgPrice, 150_000) {
		t.Errorf("avg price = %.2f, want 150000", pos.AvgPrice)
	}
	if !almostEqual(pos.Quantity, 2) {
		t.Errorf("quantity = %v, want 2", pos.Quantity)
	}
	if !almostEqual(l.CashBalance(), 700_000) {
		t.Errorf("cash balance = %.2f, want 700000", l.CashBalance())
	}
}

func TestSellRealizesProfitAndRemovesEmptyPosition(t *testing.T) {
	l := New(1_000_000, 50, testLogger())

	if _, err := l.RecordTrade(models.Trade{
		Symbol: "KRW-XRP", Action: models.ActionBuy, Price: 1_000, Quantity: 100,
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	trade, err := l.RecordTrade(models.Trade{
		Symbol: "KRW-XRP", Action: models.ActionSell, Price: 1_200, Quantity: 100,
	})
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if !almostEqual(trade.Profit, 20_000) {
		t.Errorf("profit = %.2f, want 20000", trade.Profit)
	}
	if _, ok := l.Position("KRW-XRP"); ok {
		t.Error("fully sold position should be removed")
	}
	if !almostEqual(l.CashBalance(), 1_020_000) {
		t.Errorf("cash balance = %.2f, want 1020000", l.CashBalance())
	}
}

func TestSellRejectsUnknownAndOversized(t *testing.T) {
	l := New(1_000_000, 50, testLogger())

	_, err := l.RecordTrade(models.Trade{
		Symbol: "KRW-ADA", Action: models.ActionSell, Price: 500, Quantity: 1,
	})
	if !apperrors.Is(err, apperrors.ErrPositionNotFound) {
		t.Errorf("expected position not found, got %v", err)
	}

	if _, err := l.RecordTrade(models.Trade{
		Symbol: "KRW-ADA", Action: models.ActionBuy, Price: 500, Quantity: 10,
	}); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	_, err = l.RecordTrade(models.Trade{
		Symbol: "KRW-ADA", Action: models.ActionSell, Price: 500, Quantity: 11,
	})
	if !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for oversized sell, got %v", err)
	}
}

func TestTradeHistoryCapEvictsOldest(t *testing.T) {
	l := New(100_000_000, 5, testLogger())

	for i := 0; i < 8; i++ {
		if _, err := l.RecordTrade(models.Trade{
			ID:     fmt.Sprintf("t%d", i),
			Symbol: "KRW-BTC", Action: models.ActionBuy, Price: 1_000, Quantity: 1,
		}); err != nil {
			t.Fatalf("trade %d failed: %v", i, err)
		}
	}

	trades := l.Trades()
	if len(trades) != 5 {
		t.Fatalf("history length = %d, want 5", len(trades))
	}
	if trades[0].ID != "t7" {
		t.Errorf("newest trade should be first, got %s", trades[0].ID)
	}
	if trades[4].ID != "t3" {
		t.Errorf("oldest surviving trade = %s, want t3", trades[4].ID)
	}
}

func TestRevalueSkipsMissingAndNonPositivePrices(t *testing.T) {
	l := New(1_000_000, 50, testLogger())
	if err := l.OpenPosition("KRW-BTC", "KRW-BTC", 100_000, 100_000); err != nil {
		t.Fatal(err)
	}
	if err := l.OpenPosition("KRW-ETH", "KRW-ETH", 100_000, 10_000); err != nil {
		t.Fatal(err)
	}

	l.Revalue(map[string]float64{
		"KRW-BTC": 120_000,
		"KRW-ETH": 0, // must be skipped
	})

	btc, _ := l.Position("KRW-BTC")
	eth, _ := l.Position("KRW-ETH")
	if !almostEqual(btc.CurrentPrice, 120_000) {
		t.Errorf("BTC price = %.2f, want 120000", btc.CurrentPrice)
	}
	if !almostEqual(eth.CurrentPrice, 10_000) {
		t.Errorf("ETH price must be unchanged after zero update, got %.2f", eth.CurrentPrice)
	}
	if !almostEqual(btc.PnLPercent, 20) {
		t.Errorf("BTC P&L%% = %.2f, want 20", btc.PnLPercent)
	}
}

func TestRevalueIsIdempotent(t *testing.T) {
	l := New(1_000_000, 50, testLogger())
	if err := l.OpenPosition("KRW-BTC", "KRW-BTC", 500_000, 100_000); err != nil {
		t.Fatal(err)
	}

	prices := map[string]float64{"KRW-BTC": 111_111}
	l.Revalue(prices)
	first := l.Summary()
	l.Revalue(prices)
	second := l.Summary()

	if !almostEqual(first.TotalValue, second.TotalValue) || !almostEqual(first.TotalPnL, second.TotalPnL) {
		t.Errorf("revalue with same prices changed the summary: %+v vs %+v", first, second)
	}
}

func TestAllocationsSumToOneHundred(t *testing.T) {
	l := New(1_000_000, 50, testLogger())
	if err := l.OpenPosition("KRW-BTC", "KRW-BTC", 300_000, 100_000); err != nil {
		t.Fatal(err)
	}
	if err := l.OpenPosition("KRW-ETH", "KRW-ETH", 200_000, 10_000); err != nil {
		t.Fatal(err)
	}

	var sum float64
	for _, pos := range l.Positions() {
		sum += pos.AllocationPct
	}
	// Cash holds the remainder, so positions cover value/total only.
	want := 500_000.0 / l.TotalValue() * 100
	if math.Abs(sum-want) > 1e-6 {
		t.Errorf("allocation sum = %.4f, want %.4f", sum, want)
	}
}

func TestRestoreRebuildsState(t *testing.T) {
	orig := New(1_000_000, 50, testLogger())
	if err := orig.OpenPosition("KRW-BTC", "KRW-BTC", 400_000, 100_000); err != nil {
		t.Fatal(err)
	}
	if _, err := orig.RecordTrade(models.Trade{
		Symbol: "KRW-BTC", Action: models.ActionBuy, Price: 100_000, Quantity: 1, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	restored := Restore(orig.CashBalance(), orig.Positions(), orig.Trades(), 50, testLogger())

	if !almostEqual(restored.CashBalance(), orig.CashBalance()) {
		t.Errorf("cash balance = %.2f, want %.2f", restored.CashBalance(), orig.CashBalance())
	}
	if !almostEqual(restored.TotalValue(), orig.TotalValue()) {
		t.Errorf("total value = %.2f, want %.2f", restored.TotalValue(), orig.TotalValue())
	}
	if len(restored.Trades()) != len(orig.Trades()) {
		t.Errorf("trade count = %d, want %d", len(restored.Trades()), len(orig.Trades()))
	}
}

// Property: at constant prices, buying never creates or destroys value;
// total value stays equal to the starting cash balance.
func TestProperty_BuysConserveTotalValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("buys at current price conserve total value", prop.ForAll(
		func(amounts []float64, price float64) bool {
			start := 10_000_000.0
			l := New(start, 50, testLogger())

			for i, amount := range amounts {
				sym := fmt.Sprintf("KRW-C%d", i)
				if amount > l.CashBalance() {
					continue
				}
				if _, err := l.RecordTrade(models.Trade{
					Symbol: sym, Action: models.ActionBuy, Price: price, Quantity: amount / price,
				}); err != nil {
					return false
				}
			}
			return math.Abs(l.TotalValue()-start) < 1e-3
		},
		gen.SliceOfN(5, gen.Float64Range(1_000, 2_000_000)),
		gen.Float64Range(100, 100_000_000),
	))

	properties.Property("round trip at one price restores the cash balance", prop.ForAll(
		func(amount, price float64) bool {
			start := 10_000_000.0
			l := New(start, 50, testLogger())

			qty := amount / price
			if _, err := l.RecordTrade(models.Trade{
				Symbol: "KRW-BTC", Action: models.ActionBuy, Price: price, Quantity: qty,
			}); err != nil {
				return false
			}
			if _, err := l.RecordTrade(models.Trade{
				Symbol: "KRW-BTC", Action: models.ActionSell, Price: price, Quantity: qty,
			}); err != nil {
				return false
			}
			return math.Abs(l.CashBalance()-start) < 1e-3 && len(l.Positions()) == 0
		},
		gen.Float64Range(1_000, 5_000_000),
		gen.Float64Range(100, 100_000_000),
	))

	properties.TestingRun(t)
}
