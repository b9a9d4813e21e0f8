// Package newrelic provides New Relic APM integration for monitoring.
package newrelic

import (
	"context"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/economy"
	"github.com/tos-network/hashfarm/internal/util"
)

// Agent wraps New Relic APM functionality
type Agent struct {
	cfg *config.NewRelicConfig
	app *newrelic.Application
	mu  sync.RWMutex
}

// NewAgent creates a new New Relic agent
func NewAgent(cfg *config.NewRelicConfig) *Agent {
	return &Agent{
		cfg: cfg,
	}
}

// Start initializes the New Relic agent
func (a *Agent) Start() error {
	if !a.cfg.Enabled {
		util.Info("New Relic APM disabled")
		return nil
	}

	if a.cfg.LicenseKey == "" {
		util.Warn("New Relic license key not configured, APM disabled")
		return nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(a.cfg.AppName),
		newrelic.ConfigLicense(a.cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return err
	}

	if err := app.WaitForConnection(5 * time.Second); err != nil {
		util.Warnf("New Relic connection timeout: %v (will retry in background)", err)
	}

	a.setApplication(app)
	util.Infof("New Relic APM enabled for app: %s", a.cfg.AppName)
	return nil
}

func (a *Agent) setApplication(app *newrelic.Application) {
	a.mu.Lock()
	a.app = app
	a.mu.Unlock()
}

// Stop shuts down the New Relic agent
func (a *Agent) Stop() {
	a.mu.RLock()
	app := a.app
	a.mu.RUnlock()

	if app != nil {
		util.Info("Shutting down New Relic agent")
		app.Shutdown(10 * time.Second)
	}
}

// Application returns the underlying New Relic application (for middleware)
func (a *Agent) Application() *newrelic.Application {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app
}

// IsEnabled returns true if New Relic is enabled and connected
func (a *Agent) IsEnabled() bool {
	return a.Application() != nil
}

// StartTransaction starts a new New Relic transaction
func (a *Agent) StartTransaction(name string) *newrelic.Transaction {
	app := a.Application()
	if app == nil {
		return nil
	}
	return app.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (a *Agent) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if app := a.Application(); app != nil {
		app.RecordCustomEvent(eventType, params)
	}
}

// RecordCustomMetric records a custom metric
func (a *Agent) RecordCustomMetric(name string, value float64) {
	if app := a.Application(); app != nil {
		app.RecordCustomMetric(name, value)
	}
}

// NoticeError records an error
func (a *Agent) NoticeError(txn *newrelic.Transaction, err error) {
	if txn != nil && err != nil {
		txn.NoticeError(err)
	}
}

// NewContext adds transaction to context
func (a *Agent) NewContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}
	return newrelic.NewContext(ctx, txn)
}

// FromContext gets transaction from context
func (a *Agent) FromContext(ctx context.Context) *newrelic.Transaction {
	return newrelic.FromContext(ctx)
}

// RecordTick records one simulation tick
func (a *Agent) RecordTick(coin string, reward, hashrate float64) {
	a.RecordCustomEvent("MiningTick", map[string]interface{}{
		"coin":     coin,
		"reward":   reward,
		"hashrate": hashrate,
		"rewarded": reward > 0,
	})
}

// RecordPurchase records a hardware or upgrade purchase
func (a *Agent) RecordPurchase(kind, id string, cost float64) {
	a.RecordCustomEvent("Purchase", map[string]interface{}{
		"kind": kind,
		"id":   id,
		"cost": cost,
	})
}

// RecordSale records crypto sold for money
func (a *Agent) RecordSale(coin string, amount, proceeds float64) {
	a.RecordCustomEvent("CryptoSale", map[string]interface{}{
		"coin":     coin,
		"amount":   amount,
		"proceeds": proceeds,
	})
}

// RecordReset records a session reset
func (a *Agent) RecordReset() {
	a.RecordCustomEvent("SessionReset", map[string]interface{}{})
}

// RecordSave records a persistence attempt
func (a *Agent) RecordSave(backend string, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	a.RecordCustomEvent("SaveRecord", map[string]interface{}{
		"backend": backend,
		"status":  status,
	})
}

// UpdateEconomyMetrics updates the active coin's economy metrics
func (a *Agent) UpdateEconomyMetrics(s economy.Snapshot) {
	a.RecordCustomMetric("Custom/Economy/Money", s.Money)
	a.RecordCustomMetric("Custom/Economy/Hashrate", s.Hashrate)
	a.RecordCustomMetric("Custom/Economy/Balance", s.Balance)
	a.RecordCustomMetric("Custom/Economy/Price", s.Price)
	a.RecordCustomMetric("Custom/Economy/Difficulty", s.Difficulty)
	a.RecordCustomMetric("Custom/Economy/BlocksFound", float64(s.BlocksFound))
	a.RecordCustomMetric("Custom/Economy/SharesAccepted", float64(s.SharesAccepted))
	a.RecordCustomMetric("Custom/Economy/SharesRejected", float64(s.SharesRejected))
}
