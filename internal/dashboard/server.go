// Package dashboard provides a real-time WebSocket feed of events accepted
// by the remote event store.
//
// Every push that stores something is broadcast as an events_saved message
// to all connected clients. Clients get a stats snapshot on connect and can
// ask for a fresh one by sending {"type":"stats"}.
//
// Each client owns a bounded send queue drained by its own writer. A client
// whose queue fills up is disconnected; broadcasts never wait on it.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType names a feed frame.
type MessageType string

const (
	MessageTypeEventsSaved MessageType = "events_saved"
	MessageTypeStats       MessageType = "stats"
)

// Message is one feed frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Config configures the feed listener.
type Config struct {
	Port   int    // 0 picks a free port
	Host   string // empty binds every interface
	Logger *log.Logger
}

// DefaultConfig returns the feed defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8081,
		Logger: log.New(os.Stderr, "[feed] ", log.LstdFlags),
	}
}

const (
	queueSize    = 32
	writeTimeout = 5 * time.Second
)

type client struct {
	conn *websocket.Conn
	addr string
	out  chan []byte

	done     chan struct{}
	dropOnce sync.Once
}

func newClient(conn *websocket.Conn, addr string) *client {
	return &client{
		conn: conn,
		addr: addr,
		out:  make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

func (c *client) drop() {
	c.dropOnce.Do(func() { close(c.done) })
}

// writeLoop sends queued frames until ctx ends or the client is dropped.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			_ = c.conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case frame := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.drop()
			}
		}
	}
}

// Server is the feed endpoint.
type Server struct {
	cfg    Config
	stats  *Stats
	logger *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	ln     net.Listener
	http   *http.Server
	served chan struct{}
}

// NewServer creates a feed server. Call Start to listen, or mount Handler.
func NewServer(cfg *Config) *Server {
	c := *DefaultConfig()
	if cfg != nil {
		c.Port = cfg.Port
		c.Host = cfg.Host
		if cfg.Logger != nil {
			c.Logger = cfg.Logger
		}
	}
	return &Server{
		cfg:     c,
		stats:   newStats(),
		logger:  c.Logger,
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the feed routes: /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveFeed)
	mux.HandleFunc("GET /health", s.serveHealth)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.served = make(chan struct{})

	go func() {
		defer close(s.served)
		s.logger.Printf("Feed listening on %s", ln.Addr())
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("WARNING: feed stopped: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every client and shuts the listener down.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		c.drop()
	}
	clear(s.clients)
	s.mu.Unlock()

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	<-s.served
	if err != nil {
		return fmt.Errorf("failed to shut down feed: %w", err)
	}
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Broadcast queues msg for every client, dropping clients that are full.
func (s *Server) Broadcast(msg Message) {
	frame, err := encode(msg)
	if err != nil {
		s.logger.Printf("WARNING: cannot encode %s message: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.out <- frame:
		default:
			s.logger.Printf("WARNING: dropping %s, %d frames behind", c.addr, queueSize)
			c.drop()
			delete(s.clients, c)
		}
	}
}

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	s.logger.Printf("Client %s connected (%d total)", c.addr, len(s.clients))
	return true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()

	if ok {
		s.logger.Printf("Client %s disconnected (%d total)", c.addr, n)
	}
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn, r.RemoteAddr)
	c.out <- s.statsFrame()
	if !s.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "feed stopping")
		return
	}
	defer s.unregister(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.writeLoop(ctx)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req Message
		if json.Unmarshal(data, &req) == nil && req.Type == MessageTypeStats {
			select {
			case c.out <- s.statsFrame():
			default:
			}
		}
	}
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func (s *Server) statsFrame() []byte {
	frame, _ := encode(s.stats.message())
	return frame
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return json.Marshal(msg)
}
