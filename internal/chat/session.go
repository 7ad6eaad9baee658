package chat

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

type State int

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

// Session owns one client connection: the line reader, the bounded output
// queue, and the nickname (once claimed). The reader runs on the goroutine
// that calls run; the writer drains the queue on its own goroutine.
type Session struct {
	conn   lineConn
	out    *OutQueue
	hub    *Hub
	logger *slog.Logger

	idleTimeout  time.Duration
	writeTimeout time.Duration
	flushTimeout time.Duration

	mu    sync.Mutex
	nick  string
	state State

	closeOnce  sync.Once
	writerDone chan struct{}
}

func newSession(conn lineConn, hub *Hub, logger *slog.Logger, queueDepth int, idleTimeout time.Duration) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		conn:         conn,
		out:          NewOutQueue(queueDepth),
		hub:          hub,
		logger:       logger,
		idleTimeout:  idleTimeout,
		writeTimeout: 10 * time.Second,
		flushTimeout: 3 * time.Second,
		writerDone:   make(chan struct{}),
	}
}

// Nickname returns the display form of the claimed nickname, or "" while the
// session is anonymous. Written only by the hub goroutine.
func (s *Session) Nickname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick
}

func (s *Session) setNickname(nick string) {
	s.mu.Lock()
	s.nick = nick
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) peer() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "?"
}

// push enqueues one raw line for delivery. Never blocks; returns false once
// the session is closing.
func (s *Session) push(line string) bool {
	return s.out.Push(line)
}

func (s *Session) send(m Message) bool {
	return s.push(m.Render())
}

func (s *Session) sendError(text string) bool {
	return s.send(Message{Kind: KindError, Text: text})
}

// run is the session's read loop: welcome, then parse and dispatch each line
// until the connection drops or the client quits. It owns the session's
// lifetime; when it returns the session is Closed.
func (s *Session) run() {
	go s.writeLoop()

	s.setState(StateActive)
	s.send(Message{Kind: KindWelcome, Text: welcomeText})

	for {
		if s.idleTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		line, err := s.conn.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, ErrLineTooLong), errors.Is(err, ErrBadEncoding):
				s.logger.Warn("protocol error", "peer", s.peer(), "nick", s.Nickname(), "error", err)
				s.sendError(clientText(err))
				continue
			default:
				s.close(disconnectReason(err))
				return
			}
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			s.logger.Warn("rejected input", "peer", s.peer(), "nick", s.Nickname(), "error", err)
			s.sendError(clientText(err))
			continue
		}

		switch c := cmd.(type) {
		case nil:
			// empty line
		case NickCommand:
			if err := s.hub.Claim(s, c.Name); err != nil {
				s.sendError(clientText(err))
			}
		case ListCommand:
			s.hub.List(s)
		case MsgCommand:
			s.hub.Whisper(s, c.To, c.Text)
		case MeCommand:
			s.hub.Emote(s, c.Action)
		case HelpCommand:
			s.push(helpText)
		case QuitCommand:
			s.push("Bye")
			s.close("quit")
			return
		case PublicCommand:
			s.hub.Public(s, c.Text)
		}
	}
}

func disconnectReason(err error) string {
	switch {
	case errors.Is(err, io.EOF):
		return "client closed"
	case isTimeout(err):
		return "idle timeout"
	default:
		return "transport error"
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// close tears the session down exactly once, whatever triggered it: client
// quit, read/write failure, idle timeout or server shutdown. Pending output
// is flushed best-effort within flushTimeout before the socket closes.
func (s *Session) close(reason string) {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.hub.Release(s, reason)
		s.out.Close()
		select {
		case <-s.writerDone:
		case <-time.After(s.flushTimeout):
		}
		s.conn.Close()
		s.setState(StateClosed)
		s.logger.Info("connection closed", "peer", s.peer(), "nick", s.Nickname(), "reason", reason)
	})
}
