package economy

import (
	"math"
	"time"

	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/util"
)

// Snapshot is the active coin's view of the state.
type Snapshot struct {
	Money               float64        `json:"money"`
	ActiveCoin          string         `json:"active_coin"`
	Symbol              string         `json:"symbol"`
	Balance             float64        `json:"balance"`
	Price               float64        `json:"price"`
	Difficulty          float64        `json:"difficulty"`
	NetworkTarget       float64        `json:"network_target"`
	Competition         float64        `json:"competition"`
	Hashrate            float64        `json:"hashrate"`
	Owned               map[string]int `json:"owned"`
	BlocksFound         uint64         `json:"blocks_found"`
	SharesAccepted      uint64         `json:"shares_accepted"`
	SharesRejected      uint64         `json:"shares_rejected"`
	BlockFindMultiplier float64        `json:"block_find_multiplier"`
	RejectRate          float64        `json:"reject_rate"`
	Uptime              int64          `json:"uptime"` // seconds
}

// Rounded returns a copy rounded for display.
func (s Snapshot) Rounded() Snapshot {
	s.Money = round(s.Money, 2)
	s.Balance = round(s.Balance, 6)
	s.Price = round(s.Price, 2)
	s.Difficulty = round(s.Difficulty, 3)
	s.Hashrate = round(s.Hashrate, 2)
	s.Competition = round(s.Competition, 2)
	return s
}

// CoinView is one row of the market overview.
type CoinView struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Symbol              string  `json:"symbol"`
	Balance             float64 `json:"balance"`
	Price               float64 `json:"price"`
	Difficulty          float64 `json:"difficulty"`
	NetworkTarget       float64 `json:"network_target"`
	Competition         float64 `json:"competition"`
	RecommendedHashrate float64 `json:"recommended_hashrate"`
	EstBlockTime        float64 `json:"est_block_time"` // seconds at the current hashrate, 0 when idle
	Active              bool    `json:"active"`
}

// Snapshot projects the active coin's view from the per-coin maps.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	coin := s.ActiveCoin
	m := s.Markets[coin]
	def, _ := e.coins.Get(coin)

	owned := make(map[string]int, len(s.Owned))
	for id, n := range s.Owned {
		owned[id] = n
	}

	return Snapshot{
		Money:               s.Money,
		ActiveCoin:          coin,
		Symbol:              def.Symbol,
		Balance:             s.Wallets[coin],
		Price:               m.Price,
		Difficulty:          m.Difficulty,
		NetworkTarget:       m.NetworkTarget,
		Competition:         m.Competition,
		Hashrate:            s.Hashrate,
		Owned:               owned,
		BlocksFound:         s.BlocksFound,
		SharesAccepted:      s.SharesAccepted,
		SharesRejected:      s.SharesRejected,
		BlockFindMultiplier: s.BlockFindMultiplier,
		RejectRate:          s.RejectRate,
		Uptime:              int64(e.now().Sub(s.StartedAt).Seconds()),
	}
}

// Coins returns the market overview for every registered coin in registry order.
func (e *Engine) Coins() []CoinView {
	e.mu.Lock()
	defer e.mu.Unlock()

	defs := e.coins.All()
	blockTime := e.params.TargetBlockTime
	hashrate := e.state.Hashrate
	out := make([]CoinView, 0, len(defs))
	for _, def := range defs {
		m := e.state.Markets[def.ID]
		total := util.NetworkHashrate(m.NetworkTarget, blockTime) + hashrate + m.Competition
		out = append(out, CoinView{
			ID:                  def.ID,
			Name:                def.Name,
			Symbol:              def.Symbol,
			Balance:             e.state.Wallets[def.ID],
			Price:               m.Price,
			Difficulty:          m.Difficulty,
			NetworkTarget:       m.NetworkTarget,
			Competition:         m.Competition,
			RecommendedHashrate: def.RecommendedHashrate,
			EstBlockTime:        util.EstimatedTimeToBlock(hashrate, total*blockTime),
			Active:              def.ID == e.state.ActiveCoin,
		})
	}
	return out
}

// RecentLogs returns up to limit log lines, most recent last.
func (e *Engine) RecentLogs(limit int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		return []string{}
	}
	logs := e.state.Logs
	if len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	return append([]string{}, logs...)
}

// PriceHistory returns the samples of coin from the last minutes minutes.
// An empty or unknown coin selects the active coin. When no sample falls in the
// window a single point holding the current price is returned.
func (e *Engine) PriceHistory(minutes int, coin string) []PricePoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := coins.Normalize(coin)
	if !e.coins.IsValid(id) {
		id = e.state.ActiveCoin
	}
	if minutes < 1 {
		minutes = 1
	}

	now := e.now()
	cutoff := now.Add(-time.Duration(minutes) * time.Minute)

	var points []PricePoint
	for _, p := range e.state.History[id] {
		if !p.Time.Before(cutoff) {
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return []PricePoint{{Time: now, Price: e.state.Markets[id].Price}}
	}
	return points
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
