// Package stream pushes live game snapshots to browsers over WebSocket.
package stream

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tos-network/hashfarm/internal/economy"
	"github.com/tos-network/hashfarm/internal/policy"
	"github.com/tos-network/hashfarm/internal/util"
)

// JSON-RPC style error codes
const (
	ErrCodeParse          = -32700
	ErrCodeMethodNotFound = -32601
	ErrCodeBanned         = 403
	ErrCodeRateLimited    = 429
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the API router
	},
}

// Session is the game surface the feed drives
type Session interface {
	Mine() float64
	Snapshot() economy.Snapshot
}

// Limiter decides whether a client address may mutate the game
type Limiter interface {
	Allow(ip string) policy.Verdict
}

// Server handles WebSocket feed connections
type Server struct {
	session   Session
	limiter   Limiter
	clients   sync.Map // clientID -> *Client
	clientSeq uint64

	mu       sync.Mutex // guards quit against wg.Add
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Client represents a WebSocket client
type Client struct {
	ID          uint64
	Conn        *websocket.Conn
	RemoteAddr  string
	ConnectedAt time.Time

	subscribed atomic.Bool
	writeMu    sync.Mutex
}

// Request is a request frame from a client
type Request struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// Response answers a Request
type Response struct {
	ID     interface{} `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  interface{} `json:"error,omitempty"`
}

// Notify is a server push
type Notify struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// MineResult is the result of a mine request
type MineResult struct {
	Reward   float64          `json:"reward"`
	Snapshot economy.Snapshot `json:"snapshot"`
}

// NewServer creates a feed bound to a game session
func NewServer(session Session) *Server {
	return &Server{
		session: session,
		quit:    make(chan struct{}),
	}
}

// SetLimiter applies a per-IP limiter to mine requests. Call before serving.
func (s *Server) SetLimiter(l Limiter) {
	s.limiter = l
}

// Stop closes every client connection
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		s.mu.Unlock()

		s.clients.Range(func(key, value interface{}) bool {
			value.(*Client).Conn.Close()
			return true
		})

		s.wg.Wait()
		util.Info("WebSocket feed stopped")
	})
}

// ServeHTTP upgrades the connection and serves the client
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.quit:
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	client := &Client{
		ID:          atomic.AddUint64(&s.clientSeq, 1),
		Conn:        conn,
		RemoteAddr:  ip,
		ConnectedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		conn.Close()
		return
	default:
	}

	s.clients.Store(client.ID, client)
	util.Debugf("WebSocket client %d connected from %s", client.ID, ip)

	s.wg.Add(1)
	go s.handleClient(client)
}

// handleClient processes messages from a client
func (s *Server) handleClient(client *Client) {
	defer s.wg.Done()
	defer func() {
		client.Conn.Close()
		s.clients.Delete(client.ID)
		util.Debugf("WebSocket client %d disconnected", client.ID)
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			s.sendError(client, nil, ErrCodeParse, "Parse error")
			continue
		}

		s.handleRequest(client, &req)
	}
}

// handleRequest dispatches a request
func (s *Server) handleRequest(client *Client, req *Request) {
	switch req.Method {
	case "subscribe":
		client.subscribed.Store(true)
		s.sendResult(client, req.ID, true)
		s.sendSnapshot(client, s.session.Snapshot())
	case "unsubscribe":
		client.subscribed.Store(false)
		s.sendResult(client, req.ID, true)
	case "snapshot":
		s.sendResult(client, req.ID, s.session.Snapshot())
	case "mine":
		if !s.allow(client, req.ID) {
			return
		}
		reward := s.session.Mine()
		s.sendResult(client, req.ID, MineResult{Reward: reward, Snapshot: s.session.Snapshot()})
	default:
		s.sendError(client, req.ID, ErrCodeMethodNotFound, "Method not found")
	}
}

// allow applies the limiter and answers denied requests with an error tuple
func (s *Server) allow(client *Client, id interface{}) bool {
	if s.limiter == nil {
		return true
	}
	v := s.limiter.Allow(client.RemoteAddr)
	switch {
	case v.Allowed:
		return true
	case v.Banned:
		s.sendError(client, id, ErrCodeBanned, "Banned")
	default:
		s.sendError(client, id, ErrCodeRateLimited, "Too many requests")
	}
	return false
}

// Broadcast sends a snapshot to all subscribed clients
func (s *Server) Broadcast(snap economy.Snapshot) {
	s.clients.Range(func(key, value interface{}) bool {
		client := value.(*Client)
		if client.subscribed.Load() {
			s.sendSnapshot(client, snap)
		}
		return true
	})
}

func (s *Server) sendSnapshot(client *Client, snap economy.Snapshot) {
	s.send(client, Notify{Method: "snapshot", Params: []interface{}{snap}})
}

func (s *Server) sendResult(client *Client, id interface{}, result interface{}) {
	s.send(client, Response{ID: id, Result: result})
}

func (s *Server) sendError(client *Client, id interface{}, code int, message string) {
	s.send(client, Response{ID: id, Error: []interface{}{code, message, nil}})
}

// send writes a message to the client
func (s *Server) send(client *Client, msg interface{}) {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	client.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := client.Conn.WriteJSON(msg); err != nil {
		util.Debugf("WebSocket write error for client %d: %v", client.ID, err)
	}
}

// ClientCount returns number of connected clients
func (s *Server) ClientCount() int {
	count := 0
	s.clients.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}
