package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultMaxMessageSize caps one inbound client frame.
const DefaultMaxMessageSize = 512 * 1024

// ServerConfig configures the streaming endpoint.
type ServerConfig struct {
	AuthTimeout    time.Duration
	TaskTimeout    time.Duration
	MaxMessageSize int64
	// AllowedOrigins limits browser origins. Empty allows any origin.
	AllowedOrigins []string
}

// Server upgrades HTTP requests to WebSocket sessions and tracks the live
// ones.
type Server struct {
	disp     Dispatcher
	upgrader websocket.Upgrader
	cfg      atomic.Pointer[ServerConfig]

	mu       sync.RWMutex
	sessions map[string]*Session
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewServer(disp Dispatcher, cfg ServerConfig) *Server {
	s := &Server{
		disp:     disp,
		sessions: make(map[string]*Session),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.UpdateConfig(cfg)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// UpdateConfig applies to sessions opened after the call.
func (s *Server) UpdateConfig(cfg ServerConfig) {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	s.cfg.Store(&cfg)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := s.cfg.Load().AllowedOrigins
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("security.origin_rejected", "origin", origin)
	return false
}

// ServeHTTP upgrades the request and runs the session until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	cfg := s.cfg.Load()
	id := uuid.NewString()
	sess := NewSession(id, newWSConn(id, ws, cfg.MaxMessageSize), s.disp, SessionConfig{
		AuthTimeout: cfg.AuthTimeout,
		TaskTimeout: cfg.TaskTimeout,
	})

	if !s.register(sess) {
		sess.Close()
		return
	}
	defer s.unregister(sess)

	slog.Info("session opened", "session", id, "remote", r.RemoteAddr)
	// sessions outlive the upgrade request's context; Shutdown ends them
	sess.Run(s.ctx)
}

func (s *Server) register(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.sessions[sess.ID()] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID())
	s.mu.Unlock()
	s.wg.Done()
}

// ActiveSessions returns the number of open sessions.
func (s *Server) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// BusySessions returns the number of sessions with a task in flight.
func (s *Server) BusySessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.Busy() {
			n++
		}
	}
	return n
}

// Shutdown cancels every session and waits for them to finish or ctx to
// expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
