package economy

import (
	"fmt"
	"math"
	"time"

	"github.com/tos-network/hashfarm/internal/util"
)

// mine performs one share submission for the active coin and credits any reward.
func (e *Engine) mine(now time.Time) float64 {
	s := e.state
	dt := clamp(now.Sub(s.LastTickAt).Seconds(), e.params.MinTickDelta, e.params.MaxTickDelta)
	s.LastTickAt = now
	uptime := int64(now.Sub(s.StartedAt).Seconds())

	hashrate := e.recalcHashrate()
	if hashrate <= 0 {
		if e.rng.Float64() < e.params.IdleLogChance {
			e.appendLog(fmt.Sprintf("[%6ds] no active miners. buy rigs in Shop", uptime))
		}
		return 0
	}

	jitter := 1 + e.uniform(-e.params.HashrateJitter, e.params.HashrateJitter)
	effective := math.Max(0, hashrate*jitter)

	coin := s.ActiveCoin
	if e.rng.Float64() < s.RejectRate {
		s.SharesRejected++
		e.appendLog(fmt.Sprintf("[%6ds] rejected %s speed %s diff %.3f a/r %d/%d",
			uptime, coin, util.FormatHashrate(effective, 2), s.Markets[coin].Difficulty,
			s.SharesAccepted, s.SharesRejected))
		return 0
	}

	s.SharesAccepted++
	reward := e.calculateReward(effective, dt)
	if reward > 0 {
		s.Wallets[coin] += reward
		if e.rng.Float64() < e.params.RewardLogChance {
			e.appendLog(fmt.Sprintf("[%6ds] mining   %s speed %s +%.8f (pool)",
				uptime, coin, util.FormatHashrate(effective, 2), reward))
		}
	}
	return reward
}

// calculateReward applies the saturation model: the player's payout is their
// share of total network hashrate, and difficulty tracks total hashrate as a
// multiple of the base network.
func (e *Engine) calculateReward(hashrate, dt float64) float64 {
	if hashrate <= 0 {
		return 0
	}

	s := e.state
	coin := s.ActiveCoin
	m := s.Markets[coin]
	blockTime := e.params.TargetBlockTime

	base := util.NetworkHashrate(m.NetworkTarget, blockTime)
	total := base + hashrate + m.Competition
	share := hashrate / math.Max(1, total)
	expected := (1 / blockTime) * share * dt * s.BlockFindMultiplier

	m.Difficulty = total / math.Max(1, base)
	s.Markets[coin] = m

	reward := expected * e.coins.RewardForDifficulty(coin, m.Difficulty)

	// Display statistic only; the payout above does not depend on it.
	if e.rng.Float64() < expected/math.Max(1, s.BlockFindMultiplier) {
		s.BlocksFound++
	}
	return reward
}

// updateMarketEconomics drifts the active coin's price and occasionally grows
// its simulated competition.
func (e *Engine) updateMarketEconomics() {
	s := e.state
	coin := s.ActiveCoin
	m := s.Markets[coin]

	m.Price = math.Max(e.params.PriceFloor, m.Price+e.uniform(-e.params.PriceDrift, e.params.PriceDrift)*m.Price)

	if e.rng.Float64() < e.params.CompetitionChance {
		target := m.NetworkTarget
		if def, ok := e.coins.Get(coin); ok {
			target = def.NetworkTarget
		}
		m.Competition += m.Difficulty * e.params.CompetitionGrowth * target / e.params.TargetBlockTime
	}
	s.Markets[coin] = m
}

// recordPriceHistory samples the active coin's price at most once per
// HistoryInterval, keeping the newest HistoryCapacity points.
func (e *Engine) recordPriceHistory(now time.Time) {
	s := e.state
	coin := s.ActiveCoin
	hist := s.History[coin]

	if n := len(hist); n > 0 && now.Sub(hist[n-1].Time) < e.params.HistoryInterval {
		return
	}

	hist = append(hist, PricePoint{Time: now, Price: s.Markets[coin].Price})
	if over := len(hist) - e.params.HistoryCapacity; over > 0 {
		hist = append([]PricePoint{}, hist[over:]...)
	}
	s.History[coin] = hist
}

func (e *Engine) appendLog(line string) {
	s := e.state
	s.Logs = append(s.Logs, line)
	if over := len(s.Logs) - e.params.LogCapacity; over > 0 {
		s.Logs = append([]string(nil), s.Logs[over:]...)
	}
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*e.rng.Float64()
}
