// Package api provides the REST API server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tos-network/hashfarm/internal/config"
	"github.com/tos-network/hashfarm/internal/game"
	"github.com/tos-network/hashfarm/internal/newrelic"
	"github.com/tos-network/hashfarm/internal/policy"
	"github.com/tos-network/hashfarm/internal/util"
)

// Server is the API server
type Server struct {
	cfg    *config.APIConfig
	game   *game.Game
	policy *policy.PolicyServer
	agent  *newrelic.Agent
	feed   http.Handler

	router *gin.Engine
	server *http.Server
}

// Option configures optional collaborators
type Option func(*Server)

// WithPolicy rate limits mutating routes
func WithPolicy(p *policy.PolicyServer) Option {
	return func(s *Server) { s.policy = p }
}

// WithAgent wraps requests in New Relic transactions
func WithAgent(a *newrelic.Agent) Option {
	return func(s *Server) { s.agent = a }
}

// WithFeed mounts a WebSocket feed at /ws
func WithFeed(h http.Handler) Option {
	return func(s *Server) { s.feed = h }
}

// NewServer creates a new API server
func NewServer(cfg *config.APIConfig, g *game.Game, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		game:   g,
		router: router,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures API endpoints
func (s *Server) setupRoutes() {
	s.router.Use(requestID(), requestLogger(), s.cors())
	if s.agent.IsEnabled() {
		s.router.Use(s.transaction())
	}

	limited := []gin.HandlerFunc{}
	if s.policy != nil {
		limited = append(limited, s.rateLimit())
	}
	with := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, limited...), h)
	}

	api := s.router.Group("/api")
	{
		api.GET("/stats", s.handleStats)
		api.GET("/shop", s.handleShop)
		api.GET("/upgrades", s.handleUpgrades)
		api.GET("/coins", s.handleCoins)
		api.GET("/logs", s.handleLogs)
		api.GET("/history", s.handleHistory)

		api.POST("/mine", with(s.handleMine)...)
		api.POST("/shop/buy", with(s.handleBuyHardware)...)
		api.POST("/upgrades/buy", with(s.handleBuyUpgrade)...)
		api.POST("/sell", with(s.handleSell)...)
		api.POST("/coin", with(s.handleSetCoin)...)
		api.POST("/config", with(s.handleSetConfig)...)
		api.POST("/save", with(s.handleSave)...)
		api.POST("/reset", with(s.handleReset)...)
	}

	if s.feed != nil && s.cfg.Websocket {
		s.router.GET("/ws", with(gin.WrapH(s.feed))...)
	}

	if s.cfg.PProf {
		registerPprof(s.router)
	}

	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}

// Handler returns the HTTP handler (for tests and embedding)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins the API server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Bind,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	util.Infof("API server listening on %s", s.cfg.Bind)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("API server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts down the API server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
