package chat

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Options carries the tunables the server needs from configuration.
type Options struct {
	Listen        string        // TCP listen address
	WSListen      string        // WebSocket listen address, "" disables
	MaxLineBytes  int           // longest accepted input line
	QueueDepth    int           // per-session output queue capacity
	IdleTimeout   time.Duration // 0 disables idle disconnect
	ShutdownGrace time.Duration // how long Stop waits for queues to flush
}

func (o *Options) normalize() {
	if o.Listen == "" {
		o.Listen = ":5555"
	}
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = 4096
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 256
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
}

type Server struct {
	opts   Options
	logger *slog.Logger
	hub    *Hub

	listener   net.Listener
	wsListener net.Listener
	httpSrv    *http.Server

	mu       sync.Mutex
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

func NewServer(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts.normalize()
	return &Server{
		opts:     opts,
		logger:   logger,
		hub:      NewHub(128, logger),
		sessions: make(map[*Session]struct{}),
	}
}

// Start binds the listeners and begins accepting clients. A bind failure is
// returned to the caller; nothing has been started in that case.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Listen, err)
	}
	s.listener = ln

	if s.opts.WSListen != "" {
		wsLn, err := net.Listen("tcp", s.opts.WSListen)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen %s: %w", s.opts.WSListen, err)
		}
		s.wsListener = wsLn

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.handleWS)
		s.httpSrv = &http.Server{Handler: mux}
		go func() {
			if err := s.httpSrv.Serve(wsLn); err != nil && err != http.ErrServerClosed {
				s.logger.Error("websocket listener failed", "error", err)
			}
		}()
		s.logger.Info("websocket listener started", "addr", wsLn.Addr().String())
	}

	go s.hub.Run()
	go s.acceptLoop(ln)

	s.logger.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound TCP address, useful when Listen used port 0.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WSAddr reports the bound WebSocket address, or nil when disabled.
func (s *Server) WSAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// listener closed: normal shutdown
			return
		}

		s.logger.Info("client connected", "peer", conn.RemoteAddr().String())
		s.startSession(newTCPLineConn(conn, s.opts.MaxLineBytes))
	}
}

func (s *Server) startSession(conn lineConn) {
	sess := newSession(conn, s.hub, s.logger, s.opts.QueueDepth, s.opts.IdleTimeout)

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	ConnectedSessions.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		ConnectedSessions.Dec()
	}()
}

// Stop announces the shutdown, closes the listeners and every session, and
// waits up to ShutdownGrace for pending output to flush.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	// The notice goes over the session set, not the registry, so
	// connected-but-anonymous clients see it too.
	notice := Message{Kind: KindSystem, Text: "Server is shutting down.", Time: time.Now()}.Render()
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
		sess.push(notice)
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	if s.httpSrv != nil {
		s.httpSrv.Close()
	}

	for _, sess := range open {
		go sess.close("server shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.opts.ShutdownGrace):
		s.logger.Warn("shutdown grace expired with sessions still open")
	}

	s.hub.Stop()
	s.hub.Wait()

	s.logger.Info("shutdown complete")
}
