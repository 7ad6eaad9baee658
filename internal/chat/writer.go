package chat

import "time"

// writeLoop drains the output queue to the socket in FIFO order. A write
// failure is terminal: the connection is closed to unblock the reader, which
// then runs the session's close path.
func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for {
		line, ok := s.out.Next()
		if !ok {
			return
		}
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := s.conn.WriteLine(line); err != nil {
			s.conn.Close()
			return
		}
	}
}
