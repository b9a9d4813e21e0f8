// Package policy implements per-IP request policies for the HTTP surface.
// This includes token-bucket rate limiting, temporary bans for repeat
// offenders, and storage-backed black/whitelists.
package policy

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/util"
)

// ListSource provides the persisted IP black/whitelists
type ListSource interface {
	GetBlacklist(ctx context.Context) ([]string, error)
	GetWhitelist(ctx context.Context) ([]string, error)
}

// Verdict is the outcome of a policy check
type Verdict struct {
	Allowed    bool
	Banned     bool
	RetryAfter time.Duration
}

// ipStats tracks per-IP state
type ipStats struct {
	limiter     *rate.Limiter
	lastBeat    time.Time
	violations  int
	bannedUntil time.Time
}

// PolicyServer manages request policies
type PolicyServer struct {
	cfg   *config.PolicyConfig
	lists ListSource
	now   func() time.Time

	statsMu sync.Mutex
	stats   map[string]*ipStats

	listMu    sync.RWMutex
	blacklist map[string]struct{}
	whitelist map[string]struct{}

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPolicyServer creates a new policy server. lists may be nil.
func NewPolicyServer(cfg *config.PolicyConfig, lists ListSource) *PolicyServer {
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, ip := range cfg.Whitelist {
		whitelist[ip] = struct{}{}
	}

	return &PolicyServer{
		cfg:       cfg,
		lists:     lists,
		now:       time.Now,
		stats:     make(map[string]*ipStats),
		blacklist: make(map[string]struct{}),
		whitelist: whitelist,
		quit:      make(chan struct{}),
	}
}

// Start begins the policy server background tasks
func (p *PolicyServer) Start() {
	util.Info("Starting policy server...")

	p.refreshLists()

	if p.cfg.ResetInterval > 0 {
		p.wg.Add(1)
		go p.loop(p.cfg.ResetInterval, p.resetStats)
	}
	if p.lists != nil && p.cfg.RefreshInterval > 0 {
		p.wg.Add(1)
		go p.loop(p.cfg.RefreshInterval, p.refreshLists)
	}

	util.Info("Policy server started")
}

// Stop shuts down the policy server
func (p *PolicyServer) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		util.Info("Policy server stopped")
	})
}

func (p *PolicyServer) loop(interval time.Duration, fn func()) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Allow checks a request from ip against the lists, bans and rate limit
func (p *PolicyServer) Allow(ip string) Verdict {
	if !p.cfg.Enabled || p.isWhitelisted(ip) {
		return Verdict{Allowed: true}
	}
	if p.isBlacklisted(ip) {
		return Verdict{Banned: true, RetryAfter: p.cfg.BanTimeout}
	}

	now := p.now()
	stats := p.getStats(ip, now)

	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	if now.Before(stats.bannedUntil) {
		return Verdict{Banned: true, RetryAfter: stats.bannedUntil.Sub(now)}
	}

	if stats.limiter.AllowN(now, 1) {
		return Verdict{Allowed: true}
	}

	stats.violations++
	if p.cfg.MaxViolations > 0 && stats.violations >= p.cfg.MaxViolations {
		stats.violations = 0
		stats.bannedUntil = now.Add(p.cfg.BanTimeout)
		util.Warnf("Banned %s for %v after repeated rate limit violations", ip, p.cfg.BanTimeout)
		return Verdict{Banned: true, RetryAfter: p.cfg.BanTimeout}
	}

	r := stats.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Verdict{RetryAfter: delay}
}

// BanIP bans an IP for the configured timeout
func (p *PolicyServer) BanIP(ip string) {
	if p.isWhitelisted(ip) {
		return
	}
	now := p.now()
	stats := p.getStats(ip, now)

	p.statsMu.Lock()
	stats.bannedUntil = now.Add(p.cfg.BanTimeout)
	p.statsMu.Unlock()

	util.Warnf("Banned %s for %v", ip, p.cfg.BanTimeout)
}

// IsBanned checks if an IP is currently banned
func (p *PolicyServer) IsBanned(ip string) bool {
	if p.isBlacklisted(ip) && !p.isWhitelisted(ip) {
		return true
	}

	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	stats, ok := p.stats[ip]
	return ok && p.now().Before(stats.bannedUntil)
}

// Tracked returns the number of IPs with live stats
func (p *PolicyServer) Tracked() int {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return len(p.stats)
}

// getStats gets or creates stats for an IP
func (p *PolicyServer) getStats(ip string, now time.Time) *ipStats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	stats, ok := p.stats[ip]
	if !ok {
		stats = &ipStats{
			limiter: rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst),
		}
		p.stats[ip] = stats
	}
	stats.lastBeat = now
	return stats
}

// resetStats expires bans and drops stale entries
func (p *PolicyServer) resetStats() {
	now := p.now()

	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	removed, unbanned := 0, 0
	for ip, stats := range p.stats {
		if !stats.bannedUntil.IsZero() && !now.Before(stats.bannedUntil) {
			stats.bannedUntil = time.Time{}
			unbanned++
			util.Infof("Ban expired for %s", ip)
		}
		if stats.bannedUntil.IsZero() && now.Sub(stats.lastBeat) >= p.cfg.ResetInterval {
			delete(p.stats, ip)
			removed++
		}
	}

	if removed > 0 || unbanned > 0 {
		util.Debugf("Policy stats reset: removed %d stale, unbanned %d IPs", removed, unbanned)
	}
}

// refreshLists reloads the black/whitelists from storage, merging the
// configured whitelist
func (p *PolicyServer) refreshLists() {
	whitelist := make(map[string]struct{}, len(p.cfg.Whitelist))
	for _, ip := range p.cfg.Whitelist {
		whitelist[ip] = struct{}{}
	}

	if p.lists == nil {
		p.listMu.Lock()
		p.whitelist = whitelist
		p.listMu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	blacklist, err := p.lists.GetBlacklist(ctx)
	if err != nil {
		util.Warnf("Failed to load blacklist: %v", err)
	} else {
		set := make(map[string]struct{}, len(blacklist))
		for _, ip := range blacklist {
			set[ip] = struct{}{}
		}
		p.listMu.Lock()
		p.blacklist = set
		p.listMu.Unlock()
	}

	stored, err := p.lists.GetWhitelist(ctx)
	if err != nil {
		util.Warnf("Failed to load whitelist: %v", err)
	}
	for _, ip := range stored {
		whitelist[ip] = struct{}{}
	}
	p.listMu.Lock()
	p.whitelist = whitelist
	p.listMu.Unlock()
}

func (p *PolicyServer) isWhitelisted(ip string) bool {
	p.listMu.RLock()
	defer p.listMu.RUnlock()
	_, ok := p.whitelist[ip]
	return ok
}

func (p *PolicyServer) isBlacklisted(ip string) bool {
	p.listMu.RLock()
	defer p.listMu.RUnlock()
	_, ok := p.blacklist[ip]
	return ok
}
