package api

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/economy"
	"github.com/tos-network/hashfarm/internal/util"
)

// Query defaults
const (
	DefaultLogLimit       = 200
	DefaultHistoryMinutes = 60
)

// MineResponse is the /api/mine response
type MineResponse struct {
	Reward float64          `json:"reward"`
	Stats  economy.Snapshot `json:"stats"`
}

// ShopItem is a hardware entry with ownership
type ShopItem struct {
	catalog.HardwareSpec
	HashrateText string `json:"hashrate_text"`
	CostText     string `json:"cost_text"`
	Owned        int    `json:"owned"`
}

// ShopResponse is the /api/shop response
type ShopResponse struct {
	Money     float64    `json:"money"`
	MoneyText string     `json:"money_text"`
	Hardware  []ShopItem `json:"hardware"`
}

// IDRequest selects a hardware item or upgrade
type IDRequest struct {
	ID string `json:"id"`
}

// SellRequest sells part of the active coin's balance
type SellRequest struct {
	Amount json.RawMessage `json:"amount"`
}

// CoinRequest switches the active coin
type CoinRequest struct {
	Coin string `json:"coin"`
}

// handleStats returns the rounded snapshot
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(200, s.game.Snapshot())
}

// handleMine performs one mining tick
func (s *Server) handleMine(c *gin.Context) {
	reward := s.game.Mine()
	c.JSON(200, MineResponse{Reward: reward, Stats: s.game.Snapshot()})
}

// handleShop lists the hardware catalog with ownership
func (s *Server) handleShop(c *gin.Context) {
	snap := s.game.Snapshot()
	specs := s.game.Engine().Catalog().All()

	items := make([]ShopItem, 0, len(specs))
	for _, spec := range specs {
		items = append(items, ShopItem{
			HardwareSpec: spec,
			HashrateText: util.FormatHashrate(spec.Hashrate, 2),
			CostText:     util.FormatMoney(spec.Cost),
			Owned:        snap.Owned[spec.ID],
		})
	}

	c.JSON(200, ShopResponse{Money: snap.Money, MoneyText: util.FormatMoney(snap.Money), Hardware: items})
}

// handleBuyHardware buys one hardware item
func (s *Server) handleBuyHardware(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}
	if req.ID == "" {
		c.JSON(400, gin.H{"error": "No hardware selected"})
		return
	}

	if !s.game.BuyHardware(req.ID) {
		c.JSON(400, gin.H{"error": "Not enough money or invalid hardware"})
		return
	}

	c.JSON(200, gin.H{"status": "ok", "stats": s.game.Snapshot()})
}

// handleUpgrades lists the upgrades
func (s *Server) handleUpgrades(c *gin.Context) {
	c.JSON(200, gin.H{"upgrades": s.game.Engine().Catalog().Upgrades()})
}

// handleBuyUpgrade buys an upgrade
func (s *Server) handleBuyUpgrade(c *gin.Context) {
	var req IDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}
	if req.ID == "" {
		c.JSON(400, gin.H{"error": "No upgrade selected"})
		return
	}

	if !s.game.BuyUpgrade(req.ID) {
		c.JSON(400, gin.H{"error": "Can't buy upgrade, check funds or id"})
		return
	}

	c.JSON(200, gin.H{"status": "ok", "stats": s.game.Snapshot()})
}

// handleSell sells crypto for money
func (s *Server) handleSell(c *gin.Context) {
	var req SellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok || !s.game.SellCrypto(amount) {
		c.JSON(400, gin.H{"error": "Invalid sell amount"})
		return
	}

	c.JSON(200, gin.H{"status": "ok", "sold": amount, "stats": s.game.Snapshot()})
}

// handleCoins returns the market overview
func (s *Server) handleCoins(c *gin.Context) {
	snap := s.game.Snapshot()
	c.JSON(200, gin.H{"active_coin": snap.ActiveCoin, "coins": s.game.Engine().Coins()})
}

// handleSetCoin switches the active coin
func (s *Server) handleSetCoin(c *gin.Context) {
	var req CoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	if !s.game.SetActiveCoin(req.Coin) {
		c.JSON(400, gin.H{"error": "Unknown coin"})
		return
	}

	c.JSON(200, gin.H{"status": "ok", "stats": s.game.Snapshot()})
}

// handleSetConfig applies mining tunables. Out-of-range values are clamped.
func (s *Server) handleSetConfig(c *gin.Context) {
	var req economy.MiningConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	s.game.SetMiningConfig(req)
	c.JSON(200, gin.H{"status": "ok", "stats": s.game.Snapshot()})
}

// handleLogs returns the most recent game log lines
func (s *Server) handleLogs(c *gin.Context) {
	limit, err := intQuery(c, "limit", DefaultLogLimit)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid limit"})
		return
	}

	c.JSON(200, gin.H{"logs": s.game.Engine().RecentLogs(limit)})
}

// handleHistory returns a coin's price history
func (s *Server) handleHistory(c *gin.Context) {
	minutes, err := intQuery(c, "minutes", DefaultHistoryMinutes)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid minutes"})
		return
	}

	points := s.game.Engine().PriceHistory(minutes, c.Query("coin"))
	c.JSON(200, gin.H{"history": points})
}

// handleSave forces a save
func (s *Server) handleSave(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.game.Save(ctx); err != nil {
		util.Errorf("Save failed: %v", err)
		s.agent.NoticeError(s.agent.FromContext(ctx), err)
		c.JSON(500, gin.H{"error": "Failed to save game"})
		return
	}

	var savedAt int64
	if at := s.game.SavedAt(ctx); !at.IsZero() {
		savedAt = at.Unix()
	}
	c.JSON(200, gin.H{"status": "ok", "saved_at": savedAt})
}

// handleReset starts a new session
func (s *Server) handleReset(c *gin.Context) {
	s.game.Reset()
	c.JSON(200, gin.H{"status": "ok", "stats": s.game.Snapshot()})
}

// parseAmount accepts a JSON number or a numeric string
func parseAmount(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}

	var amount float64
	if err := json.Unmarshal(raw, &amount); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		amount, err = strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, false
		}
	}

	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	return amount, true
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
