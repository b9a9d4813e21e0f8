package economy

import (
	"math"
	"time"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
)

// Reconcile restores the state invariants in place:
//   - every registered coin has a wallet, market and history entry
//   - the active coin is registered, falling back to the default coin
//   - money, wallets and hardware counts are non-negative and finite
//   - mining knobs are inside their bounds
//   - telemetry buffers are within capacity
//   - the cached hashrate matches the owned hardware
//
// Running it on an already reconciled state changes nothing.
func Reconcile(s *State, cat *catalog.Catalog, reg *coins.Registry, params Params, now time.Time) {
	params = params.withDefaults()

	if s.Wallets == nil {
		s.Wallets = make(map[string]float64)
	}
	if s.Owned == nil {
		s.Owned = make(map[string]int)
	}
	if s.Markets == nil {
		s.Markets = make(map[string]Market)
	}
	if s.History == nil {
		s.History = make(map[string][]PricePoint)
	}

	s.ActiveCoin = coins.Normalize(s.ActiveCoin)
	if !reg.IsValid(s.ActiveCoin) {
		s.ActiveCoin = fallbackCoin(reg)
	}

	for _, def := range reg.All() {
		s.Wallets[def.ID] = nonNegative(s.Wallets[def.ID])

		m, ok := s.Markets[def.ID]
		if !ok {
			m = Market{
				Price:         def.BasePrice,
				Difficulty:    def.BaseDifficulty,
				NetworkTarget: def.NetworkTarget,
			}
		}
		if !positive(m.Price) {
			m.Price = def.BasePrice
		}
		if !positive(m.Difficulty) {
			m.Difficulty = def.BaseDifficulty
		}
		if !positive(m.NetworkTarget) {
			m.NetworkTarget = def.NetworkTarget
		}
		m.Competition = nonNegative(m.Competition)
		s.Markets[def.ID] = m

		hist := s.History[def.ID]
		if hist == nil {
			hist = []PricePoint{}
		}
		if len(hist) > params.HistoryCapacity {
			hist = append([]PricePoint{}, hist[len(hist)-params.HistoryCapacity:]...)
		}
		s.History[def.ID] = hist
	}

	s.Money = nonNegative(s.Money)
	for id, n := range s.Owned {
		if n < 0 {
			s.Owned[id] = 0
		}
	}

	if math.IsNaN(s.BlockFindMultiplier) || s.BlockFindMultiplier == 0 {
		s.BlockFindMultiplier = DefaultBlockFindMultiplier
	}
	s.BlockFindMultiplier = clamp(s.BlockFindMultiplier, MinBlockFindMultiplier, MaxBlockFindMultiplier)
	if math.IsNaN(s.RejectRate) {
		s.RejectRate = DefaultRejectRate
	}
	s.RejectRate = clamp(s.RejectRate, MinRejectRate, MaxRejectRate)

	if s.StartedAt.IsZero() {
		s.StartedAt = now
	}
	if s.LastTickAt.IsZero() {
		s.LastTickAt = now
	}

	if len(s.Logs) > params.LogCapacity {
		s.Logs = append([]string(nil), s.Logs[len(s.Logs)-params.LogCapacity:]...)
	}

	s.Hashrate = cat.TotalHashrate(s.Owned)
}

func fallbackCoin(reg *coins.Registry) string {
	if reg.IsValid(coins.DefaultCoin) {
		return coins.DefaultCoin
	}
	if ids := reg.IDs(); len(ids) > 0 {
		return ids[0]
	}
	return coins.DefaultCoin
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
