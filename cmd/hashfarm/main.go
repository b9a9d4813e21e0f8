// hashfarm - idle crypto-mining economy simulation server
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tos-network/hashfarm/internal/api"
	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/economy"
	"github.com/tos-network/hashfarm/internal/game"
	"github.com/tos-network/hashfarm/internal/newrelic"
	"github.com/tos-network/hashfarm/internal/policy"
	"github.com/tos-network/hashfarm/internal/storage"
	"github.com/tos-network/hashfarm/internal/stream"
	"github.com/tos-network/hashfarm/internal/util"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	mode := flag.String("mode", "serve", "Run mode: serve, tick")
	ticks := flag.Int("ticks", 1, "Number of ticks to run in tick mode")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hashfarm v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := util.InitLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Infof("hashfarm v%s starting in %s mode", version, *mode)

	store, err := openStore(cfg)
	if err != nil {
		util.Fatalf("Failed to open %s store: %v", cfg.Storage.Backend, err)
	}
	defer store.Close()

	engine := economy.NewEngine(catalog.Default(), coins.Default(), cfg.Economy)

	switch *mode {
	case "serve":
		serve(cfg, engine, store)
	case "tick":
		runTicks(cfg, engine, store, *ticks)
	default:
		util.Fatalf("Invalid mode: %s", *mode)
	}
}

// openStore connects the configured persistence backend
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		r := cfg.Storage.Redis
		return storage.NewRedisStore(r.URL, r.Password, r.DB, r.Prefix)
	case config.BackendSQLite:
		return storage.NewSQLiteStore(cfg.Storage.SQLitePath, cfg.Storage.Slot)
	default:
		return storage.NewFileStore(cfg.Storage.Path)
	}
}

// runTicks advances a saved session offline and prints the result
func runTicks(cfg *config.Config, engine *economy.Engine, store storage.Store, n int) {
	g := game.NewGame(cfg, engine, store, nil)
	ctx, cancel := context.WithTimeout(context.Background(), game.SaveTimeout)
	defer cancel()

	g.Load(ctx)
	total := 0.0
	for i := 0; i < n; i++ {
		total += g.Mine()
	}
	if err := g.Save(ctx); err != nil {
		util.Fatalf("Failed to save: %v", err)
	}

	for _, line := range engine.RecentLogs(n) {
		fmt.Println(line)
	}
	out, _ := json.MarshalIndent(struct {
		Mined float64          `json:"mined"`
		Stats economy.Snapshot `json:"stats"`
	}{total, g.Snapshot()}, "", "  ")
	fmt.Println(string(out))
}

func serve(cfg *config.Config, engine *economy.Engine, store storage.Store) {
	agent := newrelic.NewAgent(&cfg.NewRelic)
	if err := agent.Start(); err != nil {
		util.Warnf("Failed to start New Relic agent: %v", err)
	}

	g := game.NewGame(cfg, engine, store, agent)

	var policyServer *policy.PolicyServer
	if cfg.Policy.Enabled {
		var lists policy.ListSource
		if cfg.UsesRedis() {
			lists = store.(*storage.RedisStore)
		}
		policyServer = policy.NewPolicyServer(&cfg.Policy, lists)
		policyServer.Start()
	}

	var feed *stream.Server
	var apiServer *api.Server
	if cfg.API.Enabled {
		opts := []api.Option{api.WithAgent(agent)}
		if policyServer != nil {
			opts = append(opts, api.WithPolicy(policyServer))
		}
		if cfg.API.Websocket {
			feed = stream.NewServer(g)
			g.SetBroadcaster(feed)
			if policyServer != nil {
				feed.SetLimiter(policyServer)
			}
			opts = append(opts, api.WithFeed(feed))
		}

		apiServer = api.NewServer(&cfg.API, g, opts...)
	}

	if err := g.Start(); err != nil {
		util.Fatalf("Failed to start game: %v", err)
	}

	if apiServer != nil {
		if err := apiServer.Start(); err != nil {
			util.Fatalf("Failed to start API server: %v", err)
		}
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	util.Info("hashfarm started successfully. Press Ctrl+C to stop.")

	<-sigChan
	util.Info("Shutting down...")

	// Graceful shutdown
	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			util.Warnf("API server shutdown: %v", err)
		}
	}
	if feed != nil {
		feed.Stop()
	}
	g.Stop()
	if policyServer != nil {
		policyServer.Stop()
	}
	agent.Stop()

	util.Info("hashfarm stopped")
}
