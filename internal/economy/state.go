// Package economy implements the mining/economy simulation: hashrate aggregation,
// share and block-reward simulation, price and difficulty evolution, and the
// bounded telemetry shown to the player.
package economy

import (
	"encoding/json"
	"math"
	"time"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
)

// Market is the evolving market state of one coin.
type Market struct {
	Price         float64 `json:"price"`
	Difficulty    float64 `json:"difficulty"`
	NetworkTarget float64 `json:"network_target"`
	Competition   float64 `json:"competition"` // simulated external hashrate
}

// PricePoint is one price-history sample.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// MarshalJSON renders the point as {"t": unix seconds, "price": p}.
func (p PricePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		T     float64 `json:"t"`
		Price float64 `json:"price"`
	}{UnixSeconds(p.Time), p.Price})
}

// State is the complete mutable session state. It carries no locking of its
// own; Engine serializes access.
type State struct {
	Money      float64
	Wallets    map[string]float64
	Owned      map[string]int
	ActiveCoin string
	Markets    map[string]Market

	BlockFindMultiplier float64
	RejectRate          float64

	BlocksFound    uint64
	SharesAccepted uint64
	SharesRejected uint64

	StartedAt  time.Time
	LastTickAt time.Time

	Logs    []string
	History map[string][]PricePoint

	// Hashrate caches TotalHashrate(Owned).
	Hashrate float64
}

// NewState returns a reconciled fresh state holding startMoney.
func NewState(cat *catalog.Catalog, reg *coins.Registry, params Params, now time.Time) *State {
	s := &State{
		Money:               params.StartMoney,
		ActiveCoin:          coins.DefaultCoin,
		BlockFindMultiplier: DefaultBlockFindMultiplier,
		RejectRate:          DefaultRejectRate,
		StartedAt:           now,
		LastTickAt:          now,
	}
	Reconcile(s, cat, reg, params, now)
	return s
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s

	c.Wallets = make(map[string]float64, len(s.Wallets))
	for k, v := range s.Wallets {
		c.Wallets[k] = v
	}
	c.Owned = make(map[string]int, len(s.Owned))
	for k, v := range s.Owned {
		c.Owned[k] = v
	}
	c.Markets = make(map[string]Market, len(s.Markets))
	for k, v := range s.Markets {
		c.Markets[k] = v
	}
	c.Logs = append([]string(nil), s.Logs...)
	c.History = make(map[string][]PricePoint, len(s.History))
	for k, v := range s.History {
		c.History[k] = append([]PricePoint{}, v...)
	}
	return &c
}

// UnixSeconds converts t to fractional Unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromUnixSeconds converts fractional Unix seconds to a time.
func FromUnixSeconds(sec float64) time.Time {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
