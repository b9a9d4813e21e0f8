package api

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tos-network/hashfarm/internal/util"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// requestID reuses the caller's request id or assigns a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs every request through the global zap logger
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		util.Desugar().Debug("HTTP request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// cors applies the configured allowed origins
func (s *Server) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	for _, o := range s.cfg.CORSOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowed["*"]:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// transaction records each request as a New Relic web transaction
func (s *Server) transaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.FullPath()
		if name == "" {
			name = "NotFound"
		}
		txn := s.agent.StartTransaction(c.Request.Method + " " + name)
		if txn == nil {
			c.Next()
			return
		}
		defer txn.End()

		txn.SetWebRequestHTTP(c.Request)
		txn.AddAttribute("request_id", c.GetString("request_id"))
		c.Request = c.Request.WithContext(s.agent.NewContext(c.Request.Context(), txn))

		c.Next()

		status := c.Writer.Status()
		txn.AddAttribute("http.statusCode", status)
		if status >= 500 {
			s.agent.NoticeError(txn, fmt.Errorf("%s %s returned %d", c.Request.Method, name, status))
		}
	}
}

// rateLimit enforces the per-IP policy
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		v := s.policy.Allow(c.ClientIP())
		if v.Allowed {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(v.RetryAfter)))
		if v.Banned {
			c.AbortWithStatusJSON(403, gin.H{"error": "Banned"})
			return
		}
		c.AbortWithStatusJSON(429, gin.H{"error": "Too many requests"})
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
