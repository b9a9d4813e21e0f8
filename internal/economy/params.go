package economy

import "time"

// Mining knob bounds. Out-of-range inputs are clamped to these.
const (
	MinBlockFindMultiplier = 0.05
	MaxBlockFindMultiplier = 50.0
	MinRejectRate          = 0.0
	MaxRejectRate          = 0.5
	MinNetworkTarget       = 10_000.0
	MaxNetworkTarget       = 50_000_000.0

	DefaultBlockFindMultiplier = 1.0
	DefaultRejectRate          = 0.02
)

// Params are the gameplay tunables of the simulation.
type Params struct {
	TargetBlockTime   float64       `mapstructure:"target_block_time"` // seconds per block
	HashrateJitter    float64       `mapstructure:"hashrate_jitter"`
	MinTickDelta      float64       `mapstructure:"min_tick_delta"` // seconds
	MaxTickDelta      float64       `mapstructure:"max_tick_delta"` // seconds
	PriceDrift        float64       `mapstructure:"price_drift"`
	PriceFloor        float64       `mapstructure:"price_floor"`
	CompetitionChance float64       `mapstructure:"competition_chance"`
	CompetitionGrowth float64       `mapstructure:"competition_growth"`
	IdleLogChance     float64       `mapstructure:"idle_log_chance"`
	RewardLogChance   float64       `mapstructure:"reward_log_chance"`
	LogCapacity       int           `mapstructure:"log_capacity"`
	HistoryInterval   time.Duration `mapstructure:"history_interval"`
	HistoryCapacity   int           `mapstructure:"history_capacity"`
	StartMoney        float64       `mapstructure:"start_money"`
	ResetGrant        float64       `mapstructure:"reset_grant"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		TargetBlockTime:   10.0,
		HashrateJitter:    0.01,
		MinTickDelta:      0.05,
		MaxTickDelta:      5.0,
		PriceDrift:        0.02,
		PriceFloor:        1e-8,
		CompetitionChance: 0.1,
		CompetitionGrowth: 0.001,
		IdleLogChance:     0.05,
		RewardLogChance:   0.1,
		LogCapacity:       400,
		HistoryInterval:   60 * time.Second,
		HistoryCapacity:   720,
		StartMoney:        1000.0,
		ResetGrant:        10000.0,
	}
}

// withDefaults fills zero or invalid fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.TargetBlockTime <= 0 {
		p.TargetBlockTime = d.TargetBlockTime
	}
	if p.HashrateJitter < 0 {
		p.HashrateJitter = d.HashrateJitter
	}
	if p.MinTickDelta <= 0 {
		p.MinTickDelta = d.MinTickDelta
	}
	if p.MaxTickDelta <= 0 {
		p.MaxTickDelta = d.MaxTickDelta
	}
	if p.MaxTickDelta < p.MinTickDelta {
		p.MaxTickDelta = p.MinTickDelta
	}
	if p.PriceFloor <= 0 {
		p.PriceFloor = d.PriceFloor
	}
	if p.LogCapacity <= 0 {
		p.LogCapacity = d.LogCapacity
	}
	if p.HistoryInterval <= 0 {
		p.HistoryInterval = d.HistoryInterval
	}
	if p.HistoryCapacity <= 0 {
		p.HistoryCapacity = d.HistoryCapacity
	}
	if p.StartMoney < 0 {
		p.StartMoney = d.StartMoney
	}
	if p.ResetGrant < 0 {
		p.ResetGrant = d.ResetGrant
	}
	return p
}
