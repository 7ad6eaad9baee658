package chat

import (
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The chat protocol carries no credentials or cookies, so cross-origin
	// browser clients are allowed, same as any TCP client would be.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "peer", r.RemoteAddr, "error", err)
		return
	}

	s.logger.Info("client connected", "peer", conn.RemoteAddr().String(), "transport", "websocket")
	s.startSession(newWSLineConn(conn, s.opts.MaxLineBytes))
}

// wsLineConn adapts a WebSocket connection to the session's line transport:
// one text frame in each direction per chat line.
type wsLineConn struct {
	conn    *websocket.Conn
	maxLine int
}

func newWSLineConn(conn *websocket.Conn, maxLine int) *wsLineConn {
	// Hard cap well above maxLine; frames beyond it kill the connection,
	// frames between maxLine and the cap get the recoverable error.
	conn.SetReadLimit(int64(maxLine) * 16)
	return &wsLineConn{conn: conn, maxLine: maxLine}
}

func (c *wsLineConn) ReadLine() (string, error) {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		if len(data) > c.maxLine {
			return "", ErrLineTooLong
		}
		line := strings.TrimRight(string(data), "\r\n")
		if !utf8.ValidString(line) {
			return "", ErrBadEncoding
		}
		return line, nil
	}
}

func (c *wsLineConn) WriteLine(line string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsLineConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *wsLineConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *wsLineConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *wsLineConn) Close() error                       { return c.conn.Close() }
