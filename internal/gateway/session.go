package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/pro-trader/internal/metrics"
)

// session is one client WebSocket connection.
type session struct {
	id     string
	userID string

	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id, userID string, conn *websocket.Conn, queueSize int, logger *slog.Logger) *session {
	if logger == nil {
		logger = slog.Default()
	}
	return &session{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// enqueue offers a frame to the send queue without blocking. Returns false
// when the queue is full; the caller drops the session in that case.
func (s *session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		metrics.FramesDropped.Inc()
		return false
	}
}

// close marks the session dead and closes the connection. Idempotent.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// closeWithCode sends an application close frame before closing.
func (s *session) closeWithCode(code int, reason string) {
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
	s.close()
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. Runs in its own goroutine per session.
func (s *session) writePump(writeTimeout, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return

		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("session write failed", "session_id", s.id, "error", err)
				return
			}
			metrics.FramesSent.Inc()

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
