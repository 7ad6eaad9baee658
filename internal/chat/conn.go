package chat

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf8"
)

// lineConn abstracts a line-oriented client transport so the session loop is
// identical for raw TCP and WebSocket clients.
type lineConn interface {
	// ReadLine returns the next input line without its trailing newline.
	// ErrLineTooLong and ErrBadEncoding are recoverable; the offending line
	// is consumed and the connection stays usable. Any other error is fatal.
	ReadLine() (string, error)
	WriteLine(line string) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

type tcpLineConn struct {
	conn    net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	maxLine int
}

func newTCPLineConn(conn net.Conn, maxLine int) *tcpLineConn {
	return &tcpLineConn{
		conn:    conn,
		r:       bufio.NewReader(conn),
		w:       bufio.NewWriter(conn),
		maxLine: maxLine,
	}
}

func (c *tcpLineConn) ReadLine() (string, error) {
	var buf []byte
	overflow := false
	for {
		chunk, err := c.r.ReadSlice('\n')
		if len(chunk) > 0 && !overflow {
			// The cap counts line content; leave room for "\r\n" and
			// settle the exact boundary after trimming below.
			if len(buf)+len(chunk) > c.maxLine+2 {
				// Too big: forget what we have and keep discarding
				// until the delimiter so the stream stays in sync.
				overflow = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if err == io.EOF && len(buf) > 0 && !overflow {
				break // final line without a newline
			}
			return "", err
		}
		break
	}
	if overflow {
		return "", ErrLineTooLong
	}
	line := strings.TrimRight(string(buf), "\r\n")
	if len(line) > c.maxLine {
		return "", ErrLineTooLong
	}
	if !utf8.ValidString(line) {
		return "", ErrBadEncoding
	}
	return line, nil
}

func (c *tcpLineConn) WriteLine(line string) error {
	if _, err := c.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *tcpLineConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *tcpLineConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
func (c *tcpLineConn) RemoteAddr() net.Addr               { return c.conn.RemoteAddr() }
func (c *tcpLineConn) Close() error                       { return c.conn.Close() }
