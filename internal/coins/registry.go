// Package coins holds the registry of simulated currencies and their reward tiers.
package coins

import "strings"

// DefaultCoin is the coin selected for fresh sessions and invalid saved selections.
const DefaultCoin = "SHIB"

// RewardTier maps a difficulty ceiling to a per-block reward.
type RewardTier struct {
	MaxDifficulty float64 `json:"max_difficulty"`
	Reward        float64 `json:"reward"`
}

// Definition describes one simulated coin. Numbers are gameplay-oriented.
type Definition struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	BasePrice      float64 `json:"base_price"`
	BaseDifficulty float64 `json:"base_difficulty"`

	// NetworkTarget is the hashes needed per block at difficulty 1.
	NetworkTarget float64 `json:"network_target"`

	// RecommendedHashrate is a display hint for the shop.
	RecommendedHashrate float64 `json:"recommended_hashrate"`

	// Tiers are ascending by MaxDifficulty; the last one is the catch-all.
	Tiers []RewardTier `json:"reward_tiers"`
}

// Registry is a read-only set of coin definitions.
type Registry struct {
	coins map[string]Definition
	order []string
}

// NewRegistry builds a registry. Ids are normalized; later duplicates are ignored.
func NewRegistry(defs []Definition) *Registry {
	r := &Registry{coins: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		d.ID = Normalize(d.ID)
		if d.ID == "" {
			continue
		}
		if _, dup := r.coins[d.ID]; dup {
			continue
		}
		r.coins[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r
}

// Default returns the stock registry: SHIB, DOGE, XMR, ETH and BTC.
func Default() *Registry {
	return NewRegistry(defaultCoins)
}

var defaultCoins = []Definition{
	{
		ID: "SHIB", Name: "Shiba Inu", Symbol: "$SHIB",
		BasePrice: 0.00002, BaseDifficulty: 0.35, NetworkTarget: 120_000, RecommendedHashrate: 250,
		Tiers: []RewardTier{{0.50, 5_000_000}, {1.25, 2_500_000}, {3.00, 1_000_000}, {999999, 500_000}},
	},
	{
		ID: "DOGE", Name: "Dogecoin", Symbol: "$DOGE",
		BasePrice: 0.12, BaseDifficulty: 1.25, NetworkTarget: 650_000, RecommendedHashrate: 2_500,
		Tiers: []RewardTier{{1.25, 5.0}, {3.00, 2.0}, {6.00, 1.0}, {999999, 0.5}},
	},
	{
		ID: "XMR", Name: "Monero", Symbol: "$XMR",
		BasePrice: 180, BaseDifficulty: 2.25, NetworkTarget: 1_600_000, RecommendedHashrate: 8_000,
		Tiers: []RewardTier{{2.00, 0.02}, {4.00, 0.01}, {8.00, 0.005}, {999999, 0.002}},
	},
	{
		ID: "ETH", Name: "Ethereum", Symbol: "$ETH",
		BasePrice: 3200, BaseDifficulty: 3.25, NetworkTarget: 2_500_000, RecommendedHashrate: 15_000,
		Tiers: []RewardTier{{3.00, 0.01}, {6.00, 0.005}, {12.00, 0.002}, {999999, 0.001}},
	},
	{
		ID: "BTC", Name: "Bitcoin", Symbol: "$BTC",
		BasePrice: 60000, BaseDifficulty: 5.0, NetworkTarget: 4_000_000, RecommendedHashrate: 40_000,
		Tiers: []RewardTier{{5.00, 0.0010}, {10.0, 0.0005}, {20.0, 0.0002}, {999999, 0.0001}},
	},
}

// Normalize trims and upper-cases a raw coin id.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsValid reports whether id (after normalization) is registered.
func (r *Registry) IsValid(id string) bool {
	_, ok := r.coins[Normalize(id)]
	return ok
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (Definition, bool) {
	d, ok := r.coins[Normalize(id)]
	return d, ok
}

// IDs returns registered ids in registration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.coins[id])
	}
	return out
}

// RewardForDifficulty returns the per-block reward of the first tier whose
// ceiling is at or above difficulty, or the last tier's reward when none is.
// Callers validate the id first; an unknown id yields 0.
func (r *Registry) RewardForDifficulty(id string, difficulty float64) float64 {
	d, ok := r.coins[Normalize(id)]
	if !ok || len(d.Tiers) == 0 {
		return 0
	}
	for _, tier := range d.Tiers {
		if difficulty <= tier.MaxDifficulty {
			return tier.Reward
		}
	}
	return d.Tiers[len(d.Tiers)-1].Reward
}
