// Package game implements the session coordinator. It owns the economy
// engine and its store, drives the auto-tick and autosave loops, and fans
// tick results out to the APM agent and the websocket feed.
package game

import (
	"context"
	"sync"
	"time"

	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/economy"
	"github.com/tos-network/hashfarm/internal/newrelic"
	"github.com/tos-network/hashfarm/internal/storage"
	"github.com/tos-network/hashfarm/internal/util"
)

// SaveTimeout bounds a single persistence call
const SaveTimeout = 10 * time.Second

// Broadcaster receives a snapshot after every tick
type Broadcaster interface {
	Broadcast(s economy.Snapshot)
}

// Game is the session coordinator
type Game struct {
	cfg     *config.GameConfig
	backend string
	engine  *economy.Engine
	store   storage.Store
	agent   *newrelic.Agent

	bcMu        sync.RWMutex
	broadcaster Broadcaster

	// Serializes store writes so an older snapshot never lands after a newer one
	saveMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGame creates a coordinator. agent may be nil.
func NewGame(cfg *config.Config, engine *economy.Engine, store storage.Store, agent *newrelic.Agent) *Game {
	ctx, cancel := context.WithCancel(context.Background())

	return &Game{
		cfg:     &cfg.Game,
		backend: cfg.Storage.Backend,
		engine:  engine,
		store:   store,
		agent:   agent,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetBroadcaster sets the snapshot receiver
func (g *Game) SetBroadcaster(b Broadcaster) {
	g.bcMu.Lock()
	g.broadcaster = b
	g.bcMu.Unlock()
}

// Engine returns the underlying economy engine for read-only views
func (g *Game) Engine() *economy.Engine {
	return g.engine
}

// Start restores the saved session and begins the background loops
func (g *Game) Start() error {
	util.Info("Starting game coordinator...")

	if g.cfg.LoadOnStart {
		g.Load(g.ctx)
	}

	if g.cfg.AutoTickInterval > 0 {
		g.wg.Add(1)
		go g.loop(g.cfg.AutoTickInterval, func() { g.tick() })
	}

	if g.cfg.AutosaveInterval > 0 {
		g.wg.Add(1)
		go g.loop(g.cfg.AutosaveInterval, g.autosave)
	}

	if g.cfg.MetricsInterval > 0 && g.agent.IsEnabled() {
		g.wg.Add(1)
		go g.loop(g.cfg.MetricsInterval, g.updateMetrics)
	}

	util.Info("Game coordinator started")
	return nil
}

// Stop shuts down the loops and writes a final save
func (g *Game) Stop() {
	util.Info("Stopping game coordinator...")
	g.cancel()
	g.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
	defer cancel()
	if err := g.Save(ctx); err != nil {
		util.Errorf("Final save failed: %v", err)
	}
	util.Info("Game coordinator stopped")
}

func (g *Game) loop(interval time.Duration, fn func()) {
	defer g.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (g *Game) autosave() {
	ctx, cancel := context.WithTimeout(g.ctx, SaveTimeout)
	defer cancel()
	if err := g.Save(ctx); err != nil {
		util.Warnf("Autosave failed: %v", err)
	}
}

func (g *Game) updateMetrics() {
	g.agent.UpdateEconomyMetrics(g.engine.Snapshot())
}

// tick advances the simulation and publishes the result
func (g *Game) tick() float64 {
	reward := g.engine.Tick()
	snap := g.engine.Snapshot()

	g.agent.RecordTick(snap.ActiveCoin, reward, snap.Hashrate)

	g.bcMu.RLock()
	b := g.broadcaster
	g.bcMu.RUnlock()
	if b != nil {
		b.Broadcast(snap.Rounded())
	}
	return reward
}

// Mine performs one player-requested tick and persists it
func (g *Game) Mine() float64 {
	reward := g.tick()
	g.persist()
	return reward
}

// Save writes the current state to the store
func (g *Game) Save(ctx context.Context) error {
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	err := storage.SaveState(ctx, g.store, g.engine.Export())
	g.agent.RecordSave(g.backend, err)
	if err != nil {
		return err
	}
	util.Debugf("Saved game state to %s store", g.backend)
	return nil
}

// SavedAt reports when the store last wrote the record. Stores that do not
// track it, and stores never written, give the zero time.
func (g *Game) SavedAt(ctx context.Context) time.Time {
	timer, ok := g.store.(storage.SaveTimer)
	if !ok {
		return time.Time{}
	}
	at, err := timer.SavedAt(ctx)
	if err != nil {
		util.Warnf("Failed to read save time: %v", err)
		return time.Time{}
	}
	return at
}

// Load replaces the current state with the saved one. It reports whether a
// saved record was found; otherwise a fresh state is installed.
func (g *Game) Load(ctx context.Context) bool {
	s, loaded := storage.LoadState(ctx, g.store, g.engine.Catalog(), g.engine.Registry(), g.engine.Params(), time.Now())
	g.engine.Restore(s)
	if loaded {
		util.Infof("Loaded saved game from %s store", g.backend)
	}
	return loaded
}

// Reset starts a new session
func (g *Game) Reset() {
	g.engine.Reset()
	g.agent.RecordReset()
	util.Info("Game state reset")
	g.persist()
}

// BuyHardware purchases one unit of a hardware item
func (g *Game) BuyHardware(id string) bool {
	if !g.engine.BuyHardware(id) {
		return false
	}
	if spec, ok := g.engine.Catalog().Lookup(id); ok {
		g.agent.RecordPurchase("hardware", id, spec.Cost)
	}
	g.persist()
	return true
}

// BuyUpgrade purchases an upgrade
func (g *Game) BuyUpgrade(id string) bool {
	if !g.engine.BuyUpgrade(id) {
		return false
	}
	if spec, ok := g.engine.Catalog().LookupUpgrade(id); ok {
		g.agent.RecordPurchase("upgrade", id, spec.Cost)
	}
	g.persist()
	return true
}

// SellCrypto sells part of the active coin's balance
func (g *Game) SellCrypto(amount float64) bool {
	sale, ok := g.engine.Sell(amount)
	if !ok {
		return false
	}
	g.agent.RecordSale(sale.Coin, sale.Amount, sale.Proceeds)
	g.persist()
	return true
}

// SetActiveCoin switches the mined coin
func (g *Game) SetActiveCoin(coin string) bool {
	if !g.engine.SetActiveCoin(coin) {
		return false
	}
	g.persist()
	return true
}

// SetMiningConfig applies the player's mining tunables
func (g *Game) SetMiningConfig(cfg economy.MiningConfig) {
	g.engine.SetMiningConfig(cfg)
	g.persist()
}

// persist saves after a successful mutation when save_on_change is set
func (g *Game) persist() {
	if !g.cfg.SaveOnChange {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
	defer cancel()
	if err := g.Save(ctx); err != nil {
		util.Warnf("Save after change failed: %v", err)
	}
}

// Snapshot returns the display-rounded view of the active coin
func (g *Game) Snapshot() economy.Snapshot {
	return g.engine.Snapshot().Rounded()
}
