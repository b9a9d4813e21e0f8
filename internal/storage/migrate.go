package storage

import (
	"sort"

	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/util"
)

type migration struct {
	version int
	name    string
	apply   func(*Record, *coins.Registry)
}

// migrations run in order; each lifts a record to version.
var migrations = []migration{
	{1, "single-coin fields", migrateSingleCoin},
	{2, "canonical coin keys", canonicalizeCoinKeys},
}

// Migrate upgrades rec in place to CurrentVersion. Records without a version
// field are version 0. Newer records are left untouched.
func Migrate(rec *Record, reg *coins.Registry) {
	if rec.Version < 0 {
		rec.Version = 0
	}
	for _, m := range migrations {
		if rec.Version >= m.version {
			continue
		}
		m.apply(rec, reg)
		rec.Version = m.version
		util.Debugf("Migrated save record to v%d (%s)", m.version, m.name)
	}
}

func ensureMaps(rec *Record) {
	if rec.Wallets == nil {
		rec.Wallets = make(map[string]float64)
	}
	if rec.MinersOwned == nil {
		rec.MinersOwned = make(map[string]int)
	}
	if rec.CoinPrices == nil {
		rec.CoinPrices = make(map[string]float64)
	}
	if rec.CoinDifficulties == nil {
		rec.CoinDifficulties = make(map[string]float64)
	}
	if rec.CoinNetworkTargets == nil {
		rec.CoinNetworkTargets = make(map[string]float64)
	}
	if rec.CoinCompetition == nil {
		rec.CoinCompetition = make(map[string]float64)
	}
	if rec.PriceHistoryByCoin == nil {
		rec.PriceHistoryByCoin = make(map[string][]PricePair)
	}
}

// migrateSingleCoin moves the single-coin balance, price, difficulty and
// history of pre-wallet saves into the active coin's per-coin entries.
func migrateSingleCoin(rec *Record, reg *coins.Registry) {
	ensureMaps(rec)

	active := coins.Normalize(rec.ActiveCoin)
	if !reg.IsValid(active) {
		active = coins.DefaultCoin
	}

	if rec.Crypto != nil && *rec.Crypto > 0 && rec.Wallets[active] == 0 {
		rec.Wallets[active] = *rec.Crypto
	}
	if _, ok := rec.CoinPrices[active]; !ok && rec.Price != nil && *rec.Price > 0 {
		rec.CoinPrices[active] = *rec.Price
	}
	if _, ok := rec.CoinDifficulties[active]; !ok && rec.Difficulty != nil && *rec.Difficulty > 0 {
		rec.CoinDifficulties[active] = *rec.Difficulty
	}
	if len(rec.PriceHistory) > 0 && len(rec.PriceHistoryByCoin[active]) == 0 {
		rec.PriceHistoryByCoin[active] = append([]PricePair{}, rec.PriceHistory...)
	}

	rec.Crypto = nil
	rec.Price = nil
	rec.Difficulty = nil
	rec.PriceHistory = nil
}

// canonicalizeCoinKeys normalizes every coin key. Duplicate wallets are summed;
// for market values the exact canonical key wins, then the first in key order.
// Non-positive prices, difficulties and targets are dropped so they get
// backfilled from the registry.
func canonicalizeCoinKeys(rec *Record, _ *coins.Registry) {
	ensureMaps(rec)

	rec.ActiveCoin = coins.Normalize(rec.ActiveCoin)

	sum := func(a, b float64) float64 { return a + b }
	first := func(a, _ float64) float64 { return a }
	positive := func(v float64) bool { return v > 0 }
	always := func(float64) bool { return true }

	rec.Wallets = canonicalFloats(rec.Wallets, sum, always)
	rec.CoinPrices = canonicalFloats(rec.CoinPrices, first, positive)
	rec.CoinDifficulties = canonicalFloats(rec.CoinDifficulties, first, positive)
	rec.CoinNetworkTargets = canonicalFloats(rec.CoinNetworkTargets, first, positive)
	rec.CoinCompetition = canonicalFloats(rec.CoinCompetition, first, always)

	history := make(map[string][]PricePair, len(rec.PriceHistoryByCoin))
	for _, k := range canonicalOrder(rec.PriceHistoryByCoin) {
		id := coins.Normalize(k)
		if id == "" {
			continue
		}
		history[id] = append(history[id], rec.PriceHistoryByCoin[k]...)
	}
	for id, pairs := range history {
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })
		history[id] = pairs
	}
	rec.PriceHistoryByCoin = history
}

func canonicalFloats(in map[string]float64, merge func(a, b float64) float64, keep func(float64) bool) map[string]float64 {
	out := make(map[string]float64, len(in))
	for _, k := range canonicalOrder(in) {
		v := in[k]
		id := coins.Normalize(k)
		if id == "" || !keep(v) {
			continue
		}
		if cur, ok := out[id]; ok {
			out[id] = merge(cur, v)
			continue
		}
		out[id] = v
	}
	return out
}

// canonicalOrder lists keys that are already canonical first, then the rest,
// each group sorted.
func canonicalOrder[V any](m map[string]V) []string {
	var exact, other []string
	for k := range m {
		if k == coins.Normalize(k) {
			exact = append(exact, k)
		} else {
			other = append(other, k)
		}
	}
	sort.Strings(exact)
	sort.Strings(other)
	return append(exact, other...)
}
