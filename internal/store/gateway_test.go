package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cryptopaper/internal/config"
	"cryptopaper/internal/models"
)

func testSnapshot() Snapshot {
	strategy := config.BalancedStrategy()
	return Snapshot{
		Session: &models.TradingSession{
			ID:            "sess-1",
			StartedAt:     time.Now().Truncate(time.Second),
			InitialAmount: 10_000_000,
			CashBalance:   2_000_000,
			Status:        models.StatusRunning,
			Coins:         []string{"KRW-BTC", "KRW-ETH"},
		},
		Strategy: &strategy,
		Positions: []models.Position{
			{Symbol: "KRW-BTC", Quantity: 0.08, AvgPrice: 50_000_000},
		},
		Trades: []models.Trade{
			{ID: "t1", Symbol: "KRW-BTC", Action: models.ActionBuy, Price: 50_000_000, Quantity: 0.08},
		},
		Signals: []models.Signal{
			{ID: "s1", Symbol: "KRW-BTC", TotalScore: 7.5, Recommendation: models.Buy},
		},
		Notifications: []models.Notification{
			{ID: "n1", Message: "session started", Level: models.LevelSuccess},
		},
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	g := NewGateway(NewMemoryStore(), zerolog.Nop())

	if err := g.Save(testSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	snap := g.Restore()
	if snap.Session == nil || snap.Session.ID != "sess-1" {
		t.Fatalf("session not restored: %+v", snap.Session)
	}
	if snap.Strategy == nil || snap.Strategy.Name != "balanced" {
		t.Errorf("strategy not restored: %+v", snap.Strategy)
	}
	if len(snap.Positions) != 1 || snap.Positions[0].Symbol != "KRW-BTC" {
		t.Errorf("positions not restored: %+v", snap.Positions)
	}
	if len(snap.Trades) != 1 || snap.Trades[0].ID != "t1" {
		t.Errorf("trades not restored: %+v", snap.Trades)
	}
	if len(snap.Signals) != 1 || snap.Signals[0].ID != "s1" {
		t.Errorf("signals not restored: %+v", snap.Signals)
	}
	if len(snap.Notifications) != 1 || snap.Notifications[0].ID != "n1" {
		t.Errorf("notifications not restored: %+v", snap.Notifications)
	}
}

func TestRestoreIsolatesCorruptKeys(t *testing.T) {
	kv := NewMemoryStore()
	g := NewGateway(kv, zerolog.Nop())

	if err := g.Save(testSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Corrupt one key; the rest must restore untouched.
	if err := kv.Set(KeySignals, "{not json"); err != nil {
		t.Fatal(err)
	}

	snap := g.Restore()
	if snap.Signals != nil {
		t.Errorf("corrupt signals key should yield the zero value, got %+v", snap.Signals)
	}
	if snap.Session == nil || snap.Session.ID != "sess-1" {
		t.Error("session must survive a corrupt sibling key")
	}
	if len(snap.Trades) != 1 {
		t.Error("trades must survive a corrupt sibling key")
	}
}

func TestRestoreEmptyStore(t *testing.T) {
	g := NewGateway(NewMemoryStore(), zerolog.Nop())

	snap := g.Restore()
	if snap.Session != nil {
		t.Errorf("empty store should restore no session, got %+v", snap.Session)
	}
	if snap.Trades != nil || snap.Signals != nil || snap.Notifications != nil {
		t.Errorf("empty store should restore zero values, got %+v", snap)
	}
}

func TestClearSessionKeepsHistoryKeys(t *testing.T) {
	g := NewGateway(NewMemoryStore(), zerolog.Nop())
	if err := g.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	if err := g.ClearSession(); err != nil {
		t.Fatalf("ClearSession failed: %v", err)
	}

	snap := g.Restore()
	if snap.Session != nil {
		t.Error("session should be cleared")
	}
	if len(snap.Trades) != 1 {
		t.Error("history keys must survive ClearSession")
	}
}

func TestSaveWithoutSessionRemovesSessionKey(t *testing.T) {
	kv := NewMemoryStore()
	g := NewGateway(kv, zerolog.Nop())
	if err := g.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	// A history-only save after Stop must not leave a stale session behind.
	snap := testSnapshot()
	snap.Session = nil
	snap.Strategy = nil
	if err := g.Save(snap); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := kv.Get(KeySession); ok {
		t.Error("session key should be removed when saving without a session")
	}
	restored := g.Restore()
	if restored.Session != nil {
		t.Errorf("restore after history-only save returned a session: %+v", restored.Session)
	}
	if len(restored.Trades) != 1 {
		t.Error("trades must survive a history-only save")
	}
}

func TestMemoryStoreRemove(t *testing.T) {
	kv := NewMemoryStore()
	if err := kv.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	if err := kv.Remove("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := kv.Get("k"); ok {
		t.Error("removed key still present")
	}
	// Removing a missing key is not an error.
	if err := kv.Remove("missing"); err != nil {
		t.Errorf("removing a missing key failed: %v", err)
	}
}
