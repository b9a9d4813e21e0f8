// Package storage persists the simulation state: a flat JSON record with
// versioned migrations and a blake3 checksum, kept in a file, Redis or SQLite.
package storage

import (
	"sort"
	"time"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/economy"
)

// CurrentVersion is the record version written by Serialize.
const CurrentVersion = 2

// PricePair is one history sample encoded as [unix seconds, price].
type PricePair [2]float64

// Record is the flattened persisted form of economy.State.
type Record struct {
	Version int `json:"version"`

	Money       float64            `json:"money"`
	Wallets     map[string]float64 `json:"wallets"`
	MinersOwned map[string]int     `json:"miners_owned"`
	ActiveCoin  string             `json:"active_coin"`

	CoinPrices         map[string]float64     `json:"coin_prices"`
	CoinDifficulties   map[string]float64     `json:"coin_difficulties"`
	CoinNetworkTargets map[string]float64     `json:"coin_network_targets"`
	CoinCompetition    map[string]float64     `json:"coin_competition"`
	PriceHistoryByCoin map[string][]PricePair `json:"price_history_by_coin"`

	BlocksFound    uint64 `json:"blocks_found"`
	SharesAccepted uint64 `json:"shares_accepted"`
	SharesRejected uint64 `json:"shares_rejected"`

	StartedAt  float64 `json:"started_at"`
	LastTickAt float64 `json:"last_tick_at,omitempty"`

	BlockFindMultiplier float64  `json:"block_find_multiplier"`
	RejectRate          *float64 `json:"reject_rate,omitempty"`

	TerminalLogs []string `json:"terminal_logs"`

	// Single-coin fields from version 0 records. Read only.
	Crypto       *float64    `json:"crypto,omitempty"`
	Price        *float64    `json:"price,omitempty"`
	Difficulty   *float64    `json:"difficulty,omitempty"`
	PriceHistory []PricePair `json:"price_history,omitempty"`

	Checksum string `json:"checksum,omitempty"`
}

// Serialize flattens s into a current-version record.
func Serialize(s *economy.State) *Record {
	rejectRate := s.RejectRate
	rec := &Record{
		Version:             CurrentVersion,
		Money:               s.Money,
		Wallets:             make(map[string]float64, len(s.Wallets)),
		MinersOwned:         make(map[string]int, len(s.Owned)),
		ActiveCoin:          s.ActiveCoin,
		CoinPrices:          make(map[string]float64, len(s.Markets)),
		CoinDifficulties:    make(map[string]float64, len(s.Markets)),
		CoinNetworkTargets:  make(map[string]float64, len(s.Markets)),
		CoinCompetition:     make(map[string]float64, len(s.Markets)),
		PriceHistoryByCoin:  make(map[string][]PricePair, len(s.History)),
		BlocksFound:         s.BlocksFound,
		SharesAccepted:      s.SharesAccepted,
		SharesRejected:      s.SharesRejected,
		StartedAt:           economy.UnixSeconds(s.StartedAt),
		LastTickAt:          economy.UnixSeconds(s.LastTickAt),
		BlockFindMultiplier: s.BlockFindMultiplier,
		RejectRate:          &rejectRate,
		TerminalLogs:        append([]string{}, s.Logs...),
	}

	for id, v := range s.Wallets {
		rec.Wallets[id] = v
	}
	for id, n := range s.Owned {
		rec.MinersOwned[id] = n
	}
	for id, m := range s.Markets {
		rec.CoinPrices[id] = m.Price
		rec.CoinDifficulties[id] = m.Difficulty
		rec.CoinNetworkTargets[id] = m.NetworkTarget
		rec.CoinCompetition[id] = m.Competition
	}
	for id, hist := range s.History {
		pairs := make([]PricePair, 0, len(hist))
		for _, p := range hist {
			pairs = append(pairs, PricePair{economy.UnixSeconds(p.Time), p.Price})
		}
		rec.PriceHistoryByCoin[id] = pairs
	}
	return rec
}

// Deserialize upgrades rec to the current version and builds a reconciled
// state from it. rec is modified by the migrations.
func Deserialize(rec *Record, cat *catalog.Catalog, reg *coins.Registry, params economy.Params, now time.Time) *economy.State {
	Migrate(rec, reg)

	s := &economy.State{
		Money:               rec.Money,
		Wallets:             make(map[string]float64, len(rec.Wallets)),
		Owned:               make(map[string]int, len(rec.MinersOwned)),
		ActiveCoin:          rec.ActiveCoin,
		Markets:             make(map[string]economy.Market),
		History:             make(map[string][]economy.PricePoint, len(rec.PriceHistoryByCoin)),
		BlockFindMultiplier: rec.BlockFindMultiplier,
		RejectRate:          economy.DefaultRejectRate,
		BlocksFound:         rec.BlocksFound,
		SharesAccepted:      rec.SharesAccepted,
		SharesRejected:      rec.SharesRejected,
		StartedAt:           economy.FromUnixSeconds(rec.StartedAt),
		LastTickAt:          economy.FromUnixSeconds(rec.LastTickAt),
		Logs:                append([]string(nil), rec.TerminalLogs...),
	}
	if rec.RejectRate != nil {
		s.RejectRate = *rec.RejectRate
	}

	for id, v := range rec.Wallets {
		s.Wallets[id] = v
	}
	for id, n := range rec.MinersOwned {
		s.Owned[id] = n
	}
	for _, id := range marketKeys(rec) {
		s.Markets[id] = economy.Market{
			Price:         rec.CoinPrices[id],
			Difficulty:    rec.CoinDifficulties[id],
			NetworkTarget: rec.CoinNetworkTargets[id],
			Competition:   rec.CoinCompetition[id],
		}
	}
	for id, pairs := range rec.PriceHistoryByCoin {
		hist := make([]economy.PricePoint, 0, len(pairs))
		for _, p := range pairs {
			t := economy.FromUnixSeconds(p[0])
			if t.IsZero() || !(p[1] > 0) {
				continue
			}
			hist = append(hist, economy.PricePoint{Time: t, Price: p[1]})
		}
		sort.SliceStable(hist, func(i, j int) bool { return hist[i].Time.Before(hist[j].Time) })
		s.History[id] = hist
	}

	economy.Reconcile(s, cat, reg, params, now)
	return s
}

func marketKeys(rec *Record) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range []map[string]float64{rec.CoinPrices, rec.CoinDifficulties, rec.CoinNetworkTargets, rec.CoinCompetition} {
		for id := range m {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return keys
}
