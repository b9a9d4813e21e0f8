package newrelic

import (
	"context"
	"errors"
	"testing"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/economy"
)

func disabledAgent() *Agent {
	return NewAgent(&config.NewRelicConfig{Enabled: false})
}

// offlineAgent has an application that never connects to the collector.
func offlineAgent(t *testing.T) *Agent {
	t.Helper()
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("hashfarm-test"),
		newrelic.ConfigEnabled(false),
	)
	if err != nil {
		t.Fatalf("NewApplication() error = %v", err)
	}
	agent := NewAgent(&config.NewRelicConfig{Enabled: true, AppName: "hashfarm-test"})
	agent.setApplication(app)
	return agent
}

func TestNewAgent(t *testing.T) {
	cfg := &config.NewRelicConfig{
		Enabled:    true,
		AppName:    "hashfarm",
		LicenseKey: "test_key",
	}

	agent := NewAgent(cfg)

	if agent == nil {
		t.Fatal("NewAgent returned nil")
	}
	if agent.cfg != cfg {
		t.Error("Agent.cfg not set correctly")
	}
	if agent.app != nil {
		t.Error("Agent.app should be nil before Start()")
	}
}

func TestStartDisabled(t *testing.T) {
	agent := disabledAgent()

	if err := agent.Start(); err != nil {
		t.Errorf("Start() returned error when disabled: %v", err)
	}
	if agent.IsEnabled() {
		t.Error("agent should not be enabled when disabled in config")
	}
}

func TestStartNoLicenseKey(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{
		Enabled: true,
		AppName: "hashfarm",
	})

	if err := agent.Start(); err != nil {
		t.Errorf("Start() returned error with empty license key: %v", err)
	}
	if agent.IsEnabled() {
		t.Error("agent should not be enabled with empty license key")
	}
}

func TestStartInvalidLicenseKey(t *testing.T) {
	agent := NewAgent(&config.NewRelicConfig{
		Enabled:    true,
		AppName:    "hashfarm",
		LicenseKey: "short",
	})

	if err := agent.Start(); err == nil {
		t.Error("Start() should fail with a malformed license key")
	}
	if agent.IsEnabled() {
		t.Error("agent should not be enabled after a failed start")
	}
}

func TestNotStartedIsNoop(t *testing.T) {
	agent := disabledAgent()

	// None of these should panic
	agent.Stop()
	agent.RecordCustomEvent("TestEvent", map[string]interface{}{"key": "value"})
	agent.RecordCustomMetric("Custom/Test", 123.45)
	agent.RecordTick("SHIB", 12.5, 75000)
	agent.RecordPurchase("hardware", "cpu_basic", 250)
	agent.RecordSale("DOGE", 10, 1.2)
	agent.RecordReset()
	agent.RecordSave("file", errors.New("disk full"))
	agent.UpdateEconomyMetrics(economy.Snapshot{Money: 1000})
	agent.NoticeError(nil, errors.New("boom"))

	if agent.Application() != nil {
		t.Error("Application() should return nil when not started")
	}
	if txn := agent.StartTransaction("test"); txn != nil {
		t.Error("StartTransaction() should return nil when not started")
	}
}

func TestNilAgent(t *testing.T) {
	var agent *Agent

	if agent.IsEnabled() {
		t.Error("nil agent should not be enabled")
	}
	// Should not panic
	agent.RecordTick("SHIB", 1, 1)
	agent.UpdateEconomyMetrics(economy.Snapshot{})
}

func TestNewContextNilTransaction(t *testing.T) {
	agent := disabledAgent()
	ctx := context.Background()

	if got := agent.NewContext(ctx, nil); got != ctx {
		t.Error("NewContext should return original context when txn is nil")
	}
	if txn := agent.FromContext(ctx); txn != nil {
		t.Error("FromContext should return nil for empty context")
	}
}

func TestOfflineApplication(t *testing.T) {
	agent := offlineAgent(t)
	defer agent.Stop()

	if !agent.IsEnabled() {
		t.Fatal("agent with an application should be enabled")
	}

	txn := agent.StartTransaction("POST /api/mine")
	if txn == nil {
		t.Fatal("StartTransaction() returned nil")
	}
	ctx := agent.NewContext(context.Background(), txn)
	if agent.FromContext(ctx) != txn {
		t.Error("FromContext did not return the stored transaction")
	}
	agent.NoticeError(txn, errors.New("insufficient funds"))
	txn.End()

	agent.RecordTick("SHIB", 0, 75000)
	agent.RecordPurchase("upgrade", "efficiency_boost", 500)
	agent.UpdateEconomyMetrics(economy.Snapshot{Money: 1, Hashrate: 2})
}

func TestConcurrentAccess(t *testing.T) {
	agent := disabledAgent()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func() {
			agent.IsEnabled()
			agent.Application()
			agent.StartTransaction("test")
			agent.RecordTick("SHIB", 1, 1)
			agent.RecordCustomMetric("test", 1.0)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
