// Package boltserver is the TCP listener + connection manager for a Bolt v1 server: it accepts
// connections, applies admission control, and drives one session.ServerSession per connection.
package boltserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/davebshow/asyncbolt/internal/bolt/session"
	"github.com/davebshow/asyncbolt/internal/logger"
)

// Config holds server configuration knobs.
type Config struct {
	ListenAddr        string
	SupportedVersions []uint32
	RunFunc           session.RunFunc
	VerifyAuthFunc    session.VerifyAuthFunc

	// AdmissionRatePerSecond and AdmissionBurst size the token-bucket limiter that gates the
	// accept loop: each inbound connection must draw one token before the Bolt handshake
	// begins. A rate of 0 disables admission control.
	AdmissionRatePerSecond float64
	AdmissionBurst         int
	// AdmissionWait bounds how long Accept will wait for a token before the connection is
	// rejected with a transport error rather than reaching AwaitingHandshake.
	AdmissionWait time.Duration
}

// applyDefaults fills zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":7687"
	}
	if len(c.SupportedVersions) == 0 {
		c.SupportedVersions = []uint32{1}
	}
	if c.AdmissionWait == 0 {
		c.AdmissionWait = 200 * time.Millisecond
	}
}

// Server encapsulates the listener and active session tracking.
type Server struct {
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger

	mu          sync.RWMutex
	l           net.Listener
	sessions    map[net.Conn]struct{}
	acceptingWg sync.WaitGroup
	closing     bool
}

// New creates a new, unstarted Server.
func New(cfg Config) *Server {
	cfg.applyDefaults()
	var limiter *rate.Limiter
	if cfg.AdmissionRatePerSecond > 0 {
		burst := cfg.AdmissionBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.AdmissionRatePerSecond), burst)
	}
	return &Server{
		cfg:      cfg,
		limiter:  limiter,
		log:      logger.Logger().With("component", "bolt_server"),
		sessions: make(map[net.Conn]struct{}),
	}
}

// Start begins listening and launches the accept loop. Safe to call only once.
func (s *Server) Start() error {
	if s == nil {
		return errors.New("nil server")
	}
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("bolt server listening", "addr", ln.Addr().String())
	s.acceptingWg.Add(1)
	go s.acceptLoop()
	return nil
}

// acceptLoop runs until the listener closes. Each accepted connection is admission-checked
// before the handshake, then handed to a per-connection goroutine.
func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		s.mu.RLock()
		l := s.l
		s.mu.RUnlock()
		if l == nil {
			return
		}
		raw, err := l.Accept()
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if closing || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept error", "error", err)
			return
		}

		if !s.admit(raw) {
			continue
		}

		s.mu.Lock()
		s.sessions[raw] = struct{}{}
		s.mu.Unlock()
		s.log.Info("connection accepted", "remote", raw.RemoteAddr().String())

		go s.serveConn(raw)
	}
}

// admit draws one token from the admission limiter before the handshake begins. A connection
// that would block past AdmissionWait is closed immediately and never reaches the handshake.
func (s *Server) admit(conn net.Conn) bool {
	if s.limiter == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AdmissionWait)
	defer cancel()
	if err := s.limiter.Wait(ctx); err != nil {
		s.log.Warn("admission rejected", "remote", conn.RemoteAddr().String(), "error", err)
		_ = conn.Close()
		return false
	}
	return true
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.sessions, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	ss, err := session.NewServerSession(conn, s.cfg.RunFunc, s.cfg.VerifyAuthFunc)
	if err != nil {
		s.log.Warn("handshake/init failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	if err := ss.Serve(context.Background()); err != nil {
		s.log.Debug("session ended", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// Stop gracefully shuts down the server: stops accepting new connections, closes all active
// connections, and waits for the accept loop to exit.
func (s *Server) Stop() error {
	if s == nil {
		return errors.New("nil server")
	}
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	l := s.l
	s.l = nil
	s.mu.Unlock()
	_ = l.Close()

	s.mu.RLock()
	for conn := range s.sessions {
		_ = conn.Close()
	}
	s.mu.RUnlock()

	s.acceptingWg.Wait()
	s.log.Info("bolt server stopped")
	return nil
}

// Addr returns the bound listener address, or nil if not started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// ConnectionCount returns the number of currently tracked sessions.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
