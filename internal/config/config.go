// Package config handles configuration loading and validation for hashfarm.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tos-network/hashfarm/internal/economy"
)

// Storage backends
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config holds all configuration for the game server
type Config struct {
	Game     GameConfig     `mapstructure:"game"`
	Economy  economy.Params `mapstructure:"economy"`
	Storage  StorageConfig  `mapstructure:"storage"`
	API      APIConfig      `mapstructure:"api"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	NewRelic NewRelicConfig `mapstructure:"newrelic"`
	Log      LogConfig      `mapstructure:"log"`
}

// GameConfig defines the session coordinator loops
type GameConfig struct {
	AutoTickInterval time.Duration `mapstructure:"auto_tick_interval"` // 0 disables
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`  // 0 disables
	MetricsInterval  time.Duration `mapstructure:"metrics_interval"`
	SaveOnChange     bool          `mapstructure:"save_on_change"`
	LoadOnStart      bool          `mapstructure:"load_on_start"`
}

// StorageConfig defines where the save record lives
type StorageConfig struct {
	Backend    string      `mapstructure:"backend"`
	Path       string      `mapstructure:"path"`
	SQLitePath string      `mapstructure:"sqlite_path"`
	Slot       string      `mapstructure:"slot"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// APIConfig defines API server settings
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Bind        string   `mapstructure:"bind"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	Websocket   bool     `mapstructure:"websocket"`
	PProf       bool     `mapstructure:"pprof"`
}

// PolicyConfig defines per-IP rate limiting on mutating API routes
type PolicyConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxViolations     int           `mapstructure:"max_violations"`
	BanTimeout        time.Duration `mapstructure:"ban_timeout"`
	ResetInterval     time.Duration `mapstructure:"reset_interval"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	Whitelist         []string      `mapstructure:"whitelist"`
}

// NewRelicConfig defines New Relic APM settings
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hashfarm")
	}

	// Read environment variables, e.g. HASHFARM_STORAGE_BACKEND
	v.SetEnvPrefix("HASHFARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Game defaults
	v.SetDefault("game.auto_tick_interval", "1s")
	v.SetDefault("game.autosave_interval", "30s")
	v.SetDefault("game.metrics_interval", "15s")
	v.SetDefault("game.save_on_change", true)
	v.SetDefault("game.load_on_start", true)

	// Economy defaults
	p := economy.DefaultParams()
	v.SetDefault("economy.target_block_time", p.TargetBlockTime)
	v.SetDefault("economy.hashrate_jitter", p.HashrateJitter)
	v.SetDefault("economy.min_tick_delta", p.MinTickDelta)
	v.SetDefault("economy.max_tick_delta", p.MaxTickDelta)
	v.SetDefault("economy.price_drift", p.PriceDrift)
	v.SetDefault("economy.price_floor", p.PriceFloor)
	v.SetDefault("economy.competition_chance", p.CompetitionChance)
	v.SetDefault("economy.competition_growth", p.CompetitionGrowth)
	v.SetDefault("economy.idle_log_chance", p.IdleLogChance)
	v.SetDefault("economy.reward_log_chance", p.RewardLogChance)
	v.SetDefault("economy.log_capacity", p.LogCapacity)
	v.SetDefault("economy.history_interval", p.HistoryInterval.String())
	v.SetDefault("economy.history_capacity", p.HistoryCapacity)
	v.SetDefault("economy.start_money", p.StartMoney)
	v.SetDefault("economy.reset_grant", p.ResetGrant)

	// Storage defaults
	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.path", "save_data.json")
	v.SetDefault("storage.sqlite_path", "hashfarm.db")
	v.SetDefault("storage.slot", "default")
	v.SetDefault("storage.redis.url", "127.0.0.1:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "hashfarm:")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind", "0.0.0.0:8080")
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.websocket", true)
	v.SetDefault("api.pprof", false)

	// Policy defaults
	v.SetDefault("policy.enabled", true)
	v.SetDefault("policy.requests_per_second", 20.0)
	v.SetDefault("policy.burst", 40)
	v.SetDefault("policy.max_violations", 50)
	v.SetDefault("policy.ban_timeout", "5m")
	v.SetDefault("policy.reset_interval", "1m")
	v.SetDefault("policy.refresh_interval", "5m")

	// New Relic defaults
	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "hashfarm")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file backend")
		}
	case BackendRedis:
		if c.Storage.Redis.URL == "" {
			return fmt.Errorf("storage.redis.url is required for the redis backend")
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of file, redis, sqlite")
	}

	if c.Game.AutoTickInterval < 0 || c.Game.AutosaveInterval < 0 || c.Game.MetricsInterval < 0 {
		return fmt.Errorf("game intervals must not be negative")
	}

	if c.Economy.StartMoney < 0 || c.Economy.ResetGrant < 0 {
		return fmt.Errorf("economy.start_money and economy.reset_grant must not be negative")
	}

	if c.Economy.MinTickDelta > c.Economy.MaxTickDelta {
		return fmt.Errorf("economy.min_tick_delta must be <= max_tick_delta")
	}

	if c.API.Enabled && c.API.Bind == "" {
		return fmt.Errorf("api.bind is required when api is enabled")
	}

	if c.Policy.Enabled {
		if c.Policy.RequestsPerSecond <= 0 {
			return fmt.Errorf("policy.requests_per_second must be positive")
		}
		if c.Policy.Burst < 1 {
			return fmt.Errorf("policy.burst must be at least 1")
		}
	}

	if c.NewRelic.Enabled && c.NewRelic.AppName == "" {
		return fmt.Errorf("newrelic.app_name is required when newrelic is enabled")
	}

	return nil
}

// UsesRedis returns true if the save record is kept in Redis
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis
}
