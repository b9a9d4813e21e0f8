package economy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/util"
)

// RandSource yields uniform floats in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Engine owns one session State and applies every simulation operation to it.
// All methods are safe for concurrent use; each runs to completion under a
// single lock.
type Engine struct {
	mu      sync.Mutex
	state   *State
	catalog *catalog.Catalog
	coins   *coins.Registry
	params  Params
	rng     RandSource
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source.
func WithRand(r RandSource) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// MiningConfig holds optional mining knob updates. Nil fields are left unchanged.
type MiningConfig struct {
	BlockFindMultiplier *float64 `json:"multiplier,omitempty"`
	RejectRate          *float64 `json:"reject_rate,omitempty"`
	NetworkTarget       *float64 `json:"network_target,omitempty"`
}

// NewEngine creates an engine holding a fresh default state.
func NewEngine(cat *catalog.Catalog, reg *coins.Registry, params Params, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		coins:   reg,
		params:  params.withDefaults(),
		rng:     globalRand{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state = NewState(cat, reg, e.params, e.now())
	return e
}

// Catalog returns the hardware catalog the engine was built with.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Registry returns the coin registry the engine was built with.
func (e *Engine) Registry() *coins.Registry {
	return e.coins
}

// Params returns the effective tuning.
func (e *Engine) Params() Params {
	return e.params
}

// Export returns a deep copy of the current state.
func (e *Engine) Export() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Restore reconciles a copy of s and installs it as the current state.
func (e *Engine) Restore(s *State) {
	c := s.Clone()
	Reconcile(c, e.catalog, e.coins, e.params, e.now())

	e.mu.Lock()
	e.state = c
	e.mu.Unlock()
}

// RecalcHashrate recomputes and caches the total hashrate of owned hardware.
func (e *Engine) RecalcHashrate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recalcHashrate()
}

func (e *Engine) recalcHashrate() float64 {
	e.state.Hashrate = e.catalog.TotalHashrate(e.state.Owned)
	return e.state.Hashrate
}

// Tick advances the simulation by one step: mine, move the market, sample the
// price. It returns the reward credited to the active coin's wallet.
func (e *Engine) Tick() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	reward := e.mine(now)
	e.updateMarketEconomics()
	e.recordPriceHistory(now)
	return reward
}

// BuyHardware buys one unit of hardware id. It fails without mutation if the
// id is unknown or money is insufficient.
func (e *Engine) BuyHardware(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := e.catalog.Lookup(id)
	if !ok || e.state.Money < spec.Cost {
		return false
	}

	e.state.Money -= spec.Cost
	e.state.Owned[id]++
	e.recalcHashrate()

	util.Debugf("Bought %s, hashrate now %s", id, util.FormatHashrate(e.state.Hashrate, 2))
	return true
}

// BuyUpgrade buys upgrade id and applies it to the active coin.
func (e *Engine) BuyUpgrade(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := e.catalog.LookupUpgrade(id)
	if !ok || e.state.Money < spec.Cost {
		return false
	}

	e.state.Money -= spec.Cost
	m := e.state.Markets[e.state.ActiveCoin]
	m.Competition = math.Max(0, m.Competition*spec.CompetitionFactor)
	e.state.Markets[e.state.ActiveCoin] = m
	return true
}

// SellCrypto sells amount of the active coin at its current price.
func (e *Engine) SellCrypto(amount float64) bool {
	_, ok := e.Sell(amount)
	return ok
}

// Sale describes a completed sale.
type Sale struct {
	Coin     string
	Amount   float64
	Price    float64
	Proceeds float64
}

// Sell is SellCrypto that also reports the price the sale was credited at.
func (e *Engine) Sell(amount float64) (Sale, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coin := e.state.ActiveCoin
	balance := e.state.Wallets[coin]
	if !(amount > 0) || math.IsInf(amount, 0) || amount > balance {
		return Sale{}, false
	}

	price := e.state.Markets[coin].Price
	sale := Sale{Coin: coin, Amount: amount, Price: price, Proceeds: amount * price}
	e.state.Wallets[coin] = balance - amount
	e.state.Money += sale.Proceeds
	return sale, true
}

// SetActiveCoin switches mining to coin. Unknown ids are rejected.
func (e *Engine) SetActiveCoin(coin string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := coins.Normalize(coin)
	def, ok := e.coins.Get(id)
	if !ok {
		return false
	}

	e.state.ActiveCoin = id
	e.appendLog(fmt.Sprintf("[config] active coin set to %s (%s)", id, def.Symbol))
	return true
}

// SetMiningConfig applies the provided knobs, each clamped to its range.
// NaN values are ignored. The network target applies to the active coin only.
func (e *Engine) SetMiningConfig(cfg MiningConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v := cfg.BlockFindMultiplier; v != nil && !math.IsNaN(*v) {
		e.state.BlockFindMultiplier = clamp(*v, MinBlockFindMultiplier, MaxBlockFindMultiplier)
	}
	if v := cfg.RejectRate; v != nil && !math.IsNaN(*v) {
		e.state.RejectRate = clamp(*v, MinRejectRate, MaxRejectRate)
	}
	if v := cfg.NetworkTarget; v != nil && !math.IsNaN(*v) {
		m := e.state.Markets[e.state.ActiveCoin]
		m.NetworkTarget = clamp(*v, MinNetworkTarget, MaxNetworkTarget)
		e.state.Markets[e.state.ActiveCoin] = m
	}
}

// Reset restores fixed defaults, clears every balance and all telemetry, and
// grants the reset money.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := NewState(e.catalog, e.coins, e.params, e.now())
	s.Money = e.params.ResetGrant
	e.state = s
}
