package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.PolicyConfig {
	return &config.PolicyConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             2,
		MaxViolations:     3,
		BanTimeout:        time.Minute,
		ResetInterval:     time.Minute,
		RefreshInterval:   time.Minute,
	}
}

func newTestServer(cfg *config.PolicyConfig, lists ListSource) (*PolicyServer, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	ps := NewPolicyServer(cfg, lists)
	ps.now = clk.Now
	return ps, clk
}

func TestAllowWithinBurst(t *testing.T) {
	ps, _ := newTestServer(testConfig(), nil)

	for i := 0; i < 2; i++ {
		if v := ps.Allow("10.0.0.1"); !v.Allowed {
			t.Errorf("request %d: Allow() = %+v, want allowed", i, v)
		}
	}

	v := ps.Allow("10.0.0.1")
	if v.Allowed || v.Banned {
		t.Errorf("Allow() past burst = %+v, want limited", v)
	}
	if v.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", v.RetryAfter)
	}

	if v := ps.Allow("10.0.0.2"); !v.Allowed {
		t.Error("limits should be per IP")
	}
}

func TestAllowRefills(t *testing.T) {
	ps, clk := newTestServer(testConfig(), nil)

	ps.Allow("10.0.0.1")
	ps.Allow("10.0.0.1")
	if v := ps.Allow("10.0.0.1"); v.Allowed {
		t.Fatal("third request should be limited")
	}

	clk.Advance(time.Second)
	if v := ps.Allow("10.0.0.1"); !v.Allowed {
		t.Errorf("Allow() after refill = %+v, want allowed", v)
	}
}

func TestBanAfterViolations(t *testing.T) {
	ps, clk := newTestServer(testConfig(), nil)
	ip := "10.0.0.1"

	ps.Allow(ip)
	ps.Allow(ip)
	ps.Allow(ip)
	ps.Allow(ip)
	v := ps.Allow(ip)
	if !v.Banned {
		t.Fatalf("Allow() after %d violations = %+v, want banned", 3, v)
	}
	if v.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", v.RetryAfter)
	}
	if !ps.IsBanned(ip) {
		t.Error("IsBanned() = false, want true")
	}

	clk.Advance(30 * time.Second)
	v = ps.Allow(ip)
	if !v.Banned || v.RetryAfter != 30*time.Second {
		t.Errorf("Allow() during ban = %+v, want banned for 30s", v)
	}

	clk.Advance(31 * time.Second)
	if v := ps.Allow(ip); !v.Allowed {
		t.Errorf("Allow() after ban = %+v, want allowed", v)
	}
}

func TestDisabledAllowsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	ps, _ := newTestServer(cfg, nil)

	for i := 0; i < 100; i++ {
		if v := ps.Allow("10.0.0.1"); !v.Allowed {
			t.Fatalf("request %d denied with policy disabled", i)
		}
	}
	if ps.Tracked() != 0 {
		t.Errorf("Tracked() = %d, want 0", ps.Tracked())
	}
}

func TestConfiguredWhitelist(t *testing.T) {
	cfg := testConfig()
	cfg.Whitelist = []string{"127.0.0.1"}
	ps, _ := newTestServer(cfg, nil)

	ps.BanIP("127.0.0.1")
	for i := 0; i < 10; i++ {
		if v := ps.Allow("127.0.0.1"); !v.Allowed {
			t.Fatalf("whitelisted request %d denied: %+v", i, v)
		}
	}
	if ps.IsBanned("127.0.0.1") {
		t.Error("whitelisted IP should never be banned")
	}
}

func TestBanIP(t *testing.T) {
	ps, _ := newTestServer(testConfig(), nil)

	ps.BanIP("10.0.0.9")
	if v := ps.Allow("10.0.0.9"); !v.Banned {
		t.Errorf("Allow() after BanIP = %+v, want banned", v)
	}
}

func TestResetStats(t *testing.T) {
	ps, clk := newTestServer(testConfig(), nil)

	ps.Allow("10.0.0.1")
	ps.BanIP("10.0.0.2")
	if ps.Tracked() != 2 {
		t.Fatalf("Tracked() = %d, want 2", ps.Tracked())
	}

	clk.Advance(time.Minute)
	ps.resetStats()

	if ps.IsBanned("10.0.0.2") {
		t.Error("ban should have expired")
	}
	if ps.Tracked() != 0 {
		t.Errorf("Tracked() after reset = %d, want 0", ps.Tracked())
	}
}

func TestResetStatsKeepsActiveBans(t *testing.T) {
	ps, clk := newTestServer(testConfig(), nil)

	ps.BanIP("10.0.0.2")
	clk.Advance(30 * time.Second)
	ps.resetStats()

	if !ps.IsBanned("10.0.0.2") {
		t.Error("active ban should survive a reset")
	}
}

type failingLists struct{}

func (failingLists) GetBlacklist(ctx context.Context) ([]string, error) {
	return nil, errors.New("unavailable")
}

func (failingLists) GetWhitelist(ctx context.Context) ([]string, error) {
	return nil, errors.New("unavailable")
}

func TestRefreshListsFailureKeepsConfiguredWhitelist(t *testing.T) {
	cfg := testConfig()
	cfg.Whitelist = []string{"127.0.0.1"}
	ps, _ := newTestServer(cfg, failingLists{})

	ps.refreshLists()

	if !ps.isWhitelisted("127.0.0.1") {
		t.Error("configured whitelist lost after failed refresh")
	}
}

func TestRedisLists(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := storage.NewRedisStore(mr.Addr(), "", 0, "")
	if err != nil {
		t.Fatalf("Failed to create Redis store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	store.AddToBlacklist(ctx, "10.6.6.6")
	store.AddToWhitelist(ctx, "10.1.1.1")

	ps, _ := newTestServer(testConfig(), store)
	ps.Start()
	defer ps.Stop()

	if v := ps.Allow("10.6.6.6"); !v.Banned {
		t.Errorf("blacklisted Allow() = %+v, want banned", v)
	}
	if !ps.IsBanned("10.6.6.6") {
		t.Error("blacklisted IP should report banned")
	}
	for i := 0; i < 10; i++ {
		if v := ps.Allow("10.1.1.1"); !v.Allowed {
			t.Fatalf("whitelisted request %d denied", i)
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	ps, _ := newTestServer(testConfig(), nil)
	ps.Start()
	ps.Stop()
	ps.Stop()
}

func TestConcurrentAllow(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerSecond = 1000
	cfg.Burst = 1000
	ps := NewPolicyServer(cfg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ps.Allow("10.0.0.1")
			}
		}()
	}
	wg.Wait()

	if ps.Tracked() != 1 {
		t.Errorf("Tracked() = %d, want 1", ps.Tracked())
	}
}
