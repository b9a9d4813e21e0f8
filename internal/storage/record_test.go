package storage

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/economy"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// playedState returns a state that has bought hardware, switched coins and ticked.
func playedState(t *testing.T) *economy.State {
	t.Helper()

	now := testNow
	e := economy.NewEngine(catalog.Default(), coins.Default(), economy.DefaultParams(),
		economy.WithRand(fixedRand(0.05)), economy.WithClock(func() time.Time { return now }))
	e.BuyHardware("cpu_basic")
	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		e.Tick()
	}
	e.SetActiveCoin("DOGE")
	for i := 0; i < 3; i++ {
		now = now.Add(time.Minute)
		e.Tick()
	}
	return e.Export()
}

func deserialize(rec *Record) *economy.State {
	return Deserialize(rec, catalog.Default(), coins.Default(), economy.DefaultParams(), testNow)
}

func TestSerializeRoundTrip(t *testing.T) {
	s := playedState(t)
	got := deserialize(Serialize(s))

	if got.Money != s.Money || got.ActiveCoin != s.ActiveCoin {
		t.Errorf("money/coin = %v/%s, want %v/%s", got.Money, got.ActiveCoin, s.Money, s.ActiveCoin)
	}
	if !reflect.DeepEqual(got.Wallets, s.Wallets) {
		t.Errorf("Wallets = %v, want %v", got.Wallets, s.Wallets)
	}
	if !reflect.DeepEqual(got.Owned, s.Owned) {
		t.Errorf("Owned = %v, want %v", got.Owned, s.Owned)
	}
	if !reflect.DeepEqual(got.Markets, s.Markets) {
		t.Errorf("Markets = %v, want %v", got.Markets, s.Markets)
	}
	if got.SharesAccepted != s.SharesAccepted || got.BlocksFound != s.BlocksFound {
		t.Errorf("counters = %d/%d, want %d/%d", got.SharesAccepted, got.BlocksFound, s.SharesAccepted, s.BlocksFound)
	}
	if !got.StartedAt.Equal(s.StartedAt) || !got.LastTickAt.Equal(s.LastTickAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v", got.StartedAt, got.LastTickAt, s.StartedAt, s.LastTickAt)
	}
	if len(got.History["SHIB"]) != 5 || len(got.History["DOGE"]) != 3 {
		t.Errorf("history lens = %d/%d, want 5/3", len(got.History["SHIB"]), len(got.History["DOGE"]))
	}
	if got.Hashrate != 75000 {
		t.Errorf("Hashrate = %v, want 75000", got.Hashrate)
	}
}

func TestDeserializeIsReconciled(t *testing.T) {
	s := playedState(t)
	first := deserialize(Serialize(s))
	second := first.Clone()
	economy.Reconcile(second, catalog.Default(), coins.Default(), economy.DefaultParams(), testNow)

	if !reflect.DeepEqual(first, second) {
		t.Error("reconciling a deserialized state changed it")
	}
}

func TestDeserializeLegacyRecord(t *testing.T) {
	legacy := `{
		"money": 420.5,
		"crypto": 1234.5,
		"price": 0.00003,
		"difficulty": 0.9,
		"miners_owned": {"cpu_basic": 2, "gpu_6gb": 1},
		"terminal_logs": ["[     1s] mining   SHIB speed 75.00 kH/s +1.00000000 (pool)"],
		"price_history": [[1700000000, 0.00002], [1700000060, 0.000025]],
		"blocks_found": 3,
		"shares_accepted": 10,
		"shares_rejected": 1,
		"started_at": 1699999000.25,
		"reject_rate": 0,
		"some_removed_field": true
	}`

	var rec Record
	if err := json.Unmarshal([]byte(legacy), &rec); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	s := deserialize(&rec)

	if rec.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", rec.Version, CurrentVersion)
	}
	if s.ActiveCoin != "SHIB" {
		t.Errorf("ActiveCoin = %s, want SHIB", s.ActiveCoin)
	}
	if s.Wallets["SHIB"] != 1234.5 {
		t.Errorf("wallet[SHIB] = %v, want 1234.5", s.Wallets["SHIB"])
	}
	if m := s.Markets["SHIB"]; m.Price != 0.00003 || m.Difficulty != 0.9 {
		t.Errorf("Markets[SHIB] = %+v", m)
	}
	if len(s.History["SHIB"]) != 2 {
		t.Errorf("history[SHIB] len = %d, want 2", len(s.History["SHIB"]))
	}
	if s.RejectRate != 0 {
		t.Errorf("RejectRate = %v, want 0", s.RejectRate)
	}
	if s.BlockFindMultiplier != economy.DefaultBlockFindMultiplier {
		t.Errorf("BlockFindMultiplier = %v, want default", s.BlockFindMultiplier)
	}
	if s.Hashrate != 2*75000+12_000_000 {
		t.Errorf("Hashrate = %v, want %v", s.Hashrate, 2*75000+12_000_000)
	}
	if len(s.Logs) != 1 {
		t.Errorf("Logs = %v", s.Logs)
	}
	for _, id := range coins.Default().IDs() {
		if _, ok := s.Markets[id]; !ok {
			t.Errorf("Markets[%s] missing", id)
		}
	}
}

func TestLegacyBalanceDoesNotOverrideWallet(t *testing.T) {
	crypto := 99.0
	rec := &Record{
		ActiveCoin: "doge",
		Wallets:    map[string]float64{"DOGE": 5},
		Crypto:     &crypto,
	}
	s := deserialize(rec)

	if s.ActiveCoin != "DOGE" {
		t.Errorf("ActiveCoin = %s, want DOGE", s.ActiveCoin)
	}
	if s.Wallets["DOGE"] != 5 {
		t.Errorf("wallet[DOGE] = %v, want 5", s.Wallets["DOGE"])
	}
}

func TestDeserializeInvalidActiveCoin(t *testing.T) {
	s := deserialize(&Record{ActiveCoin: "LTC", Money: -3})

	if s.ActiveCoin != coins.DefaultCoin {
		t.Errorf("ActiveCoin = %s, want %s", s.ActiveCoin, coins.DefaultCoin)
	}
	if s.Money != 0 {
		t.Errorf("Money = %v, want 0", s.Money)
	}
}

func TestCanonicalizeCoinKeys(t *testing.T) {
	rec := &Record{
		Version:    1,
		ActiveCoin: " eth",
		Wallets:    map[string]float64{"btc": 1, "BTC": 2, " Btc ": 0.5},
		CoinPrices: map[string]float64{"eth": 10, "ETH": 3000, "doge": -1},
		PriceHistoryByCoin: map[string][]PricePair{
			"xmr": {{1700000060, 2}},
			"XMR": {{1700000000, 1}},
		},
	}
	Migrate(rec, coins.Default())

	if rec.ActiveCoin != "ETH" {
		t.Errorf("ActiveCoin = %q, want ETH", rec.ActiveCoin)
	}
	if !reflect.DeepEqual(rec.Wallets, map[string]float64{"BTC": 3.5}) {
		t.Errorf("Wallets = %v", rec.Wallets)
	}
	if !reflect.DeepEqual(rec.CoinPrices, map[string]float64{"ETH": 3000}) {
		t.Errorf("CoinPrices = %v", rec.CoinPrices)
	}
	hist := rec.PriceHistoryByCoin["XMR"]
	if len(hist) != 2 || hist[0][1] != 1 || hist[1][1] != 2 {
		t.Errorf("history[XMR] = %v", hist)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	crypto, price := 7.0, 0.5
	rec := &Record{
		ActiveCoin:   "doge",
		Crypto:       &crypto,
		Price:        &price,
		Wallets:      map[string]float64{"doge": 0},
		PriceHistory: []PricePair{{1700000000, 0.5}},
	}
	reg := coins.Default()

	Migrate(rec, reg)
	once, _ := json.Marshal(rec)

	rec.Version = 0
	Migrate(rec, reg)
	twice, _ := json.Marshal(rec)

	if string(once) != string(twice) {
		t.Errorf("second migration changed the record:\n%s\n%s", once, twice)
	}
	if rec.Wallets["DOGE"] != 7 {
		t.Errorf("wallet[DOGE] = %v, want 7", rec.Wallets["DOGE"])
	}
}

func TestMigrateLeavesNewerRecords(t *testing.T) {
	rec := &Record{Version: CurrentVersion + 1, ActiveCoin: "doge"}
	Migrate(rec, coins.Default())

	if rec.ActiveCoin != "doge" || rec.Version != CurrentVersion+1 {
		t.Errorf("record changed: %+v", rec)
	}
}
