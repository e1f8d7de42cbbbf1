package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/pro-trader/internal/metrics"
	"github.com/rickgao/pro-trader/internal/model"
	"github.com/rickgao/pro-trader/internal/store"
	"github.com/rickgao/pro-trader/internal/subindex"
)

// PortfolioProvider resolves portfolio snapshots for get_portfolio.
type PortfolioProvider interface {
	Snapshot(ctx context.Context, userID string) (model.PortfolioSnapshot, error)
}

// SymbolStream is the upstream side of subscription changes: symbols that
// gained their first subscriber go up, symbols that lost their last one
// come down.
type SymbolStream interface {
	Subscribe(symbols []string) error
	Unsubscribe(symbols []string) error
}

// Config configures the gateway.
type Config struct {
	SendQueueSize     int           // Per-session outbound queue capacity
	WriteTimeout      time.Duration // Per-frame write deadline
	HeartbeatInterval time.Duration // Ping cadence to clients
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		SendQueueSize:     256,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Gateway accepts and serves client WebSocket sessions.
type Gateway struct {
	cfg       Config
	hub       *Hub
	index     *subindex.Index
	sessions  store.SessionStore
	positions store.PositionStore
	portfolio PortfolioProvider
	upstream  SymbolStream
	logger    *slog.Logger

	upgrader websocket.Upgrader
}

// New creates a gateway.
func New(
	cfg Config,
	hub *Hub,
	index *subindex.Index,
	sessions store.SessionStore,
	positions store.PositionStore,
	portfolio PortfolioProvider,
	upstream SymbolStream,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:       cfg,
		hub:       hub,
		index:     index,
		sessions:  sessions,
		positions: positions,
		portfolio: portfolio,
		upstream:  upstream,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades /ws requests and runs the session to completion.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("upgrade failed", "error", err)
		return
	}

	// Validate before any data is sent.
	sess, err := g.sessions.Validate(r.Context(), sessionID)
	if err != nil {
		if !errors.Is(err, store.ErrSessionNotFound) {
			g.logger.Error("session validation failed", "error", err)
		}
		metrics.SessionsRejected.WithLabelValues("invalid_session").Inc()
		rejectConn(conn, CloseInvalidSession, "invalid session")
		return
	}

	wsID := uuid.NewString()
	s := newSession(wsID, sess.UserID, conn, g.cfg.SendQueueSize, g.logger)

	if err := g.index.AddSession(sess.UserID, wsID); err != nil {
		metrics.SessionsRejected.WithLabelValues("max_sessions").Inc()
		g.logger.Info("session rejected, cap reached", "user_id", sess.UserID)
		s.closeWithCode(CloseMaxSessions, "max sessions exceeded")
		return
	}

	g.hub.add(s)
	metrics.SessionsTotal.Inc()
	metrics.SessionsActive.Set(float64(g.hub.Count()))

	g.logger.Info("session connected",
		"session_id", wsID,
		"user_id", sess.UserID,
		"username", sess.Username,
	)

	go s.writePump(g.cfg.WriteTimeout, g.cfg.HeartbeatInterval)

	g.preload(r.Context(), s)
	g.readLoop(s)
	g.teardown(s)
}

func rejectConn(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second),
	)
	conn.Close()
}

// preload subscribes the user to the symbols of their open positions and
// pushes an initial portfolio snapshot.
func (g *Gateway) preload(ctx context.Context, s *session) {
	uid, err := uuid.Parse(s.userID)
	if err != nil {
		g.logger.Error("bad user id in session", "user_id", s.userID, "error", err)
		return
	}

	symbols, err := g.positions.OpenSymbols(ctx, uid)
	if err != nil {
		g.logger.Error("failed to load open symbols", "user_id", s.userID, "error", err)
	} else if len(symbols) > 0 {
		newlyTracked := g.index.Subscribe(s.userID, symbols)
		if err := g.upstream.Subscribe(newlyTracked); err != nil {
			g.logger.Warn("upstream subscribe failed", "symbols", newlyTracked, "error", err)
		}
	}

	snap, err := g.portfolio.Snapshot(ctx, s.userID)
	if err != nil {
		g.logger.Error("initial portfolio failed", "user_id", s.userID, "error", err)
		return
	}
	g.send(s, portfolioFrame{Type: "portfolio_snapshot", Data: snap})
}

// readLoop consumes inbound frames until the connection drops.
func (g *Gateway) readLoop(s *session) {
	pongWait := 2 * g.cfg.HeartbeatInterval
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		g.dispatch(s, data)
	}
}

// dispatch handles one inbound message. Malformed or unknown messages get
// an error frame; the session stays alive.
func (g *Gateway) dispatch(s *session, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		g.send(s, errorFrame{Type: "error", Message: "invalid JSON"})
		return
	}

	switch msg.Type {
	case msgSubscribe:
		g.handleSubscribe(s, msg.Symbols)

	case msgUnsubscribe:
		g.handleUnsubscribe(s, msg.Symbols)

	case msgGetPortfolio:
		snap, err := g.portfolio.Snapshot(context.Background(), s.userID)
		if err != nil {
			g.logger.Error("portfolio failed", "user_id", s.userID, "error", err)
			g.send(s, errorFrame{Type: "error", Message: "portfolio unavailable"})
			return
		}
		g.send(s, portfolioFrame{Type: "portfolio_snapshot", Data: snap})

	case msgPing:
		g.send(s, pongFrame{Type: "pong"})

	case "":
		g.send(s, errorFrame{Type: "error", Message: "missing message type"})

	default:
		g.send(s, errorFrame{Type: "error", Message: "unknown message type: " + msg.Type})
	}
}

func (g *Gateway) handleSubscribe(s *session, symbols []string) {
	normalized := model.NormalizeAll(symbols)
	if len(normalized) == 0 {
		g.send(s, errorFrame{Type: "error", Message: "no symbols given"})
		return
	}

	newlyTracked := g.index.Subscribe(s.userID, normalized)
	if err := g.upstream.Subscribe(newlyTracked); err != nil {
		g.logger.Warn("upstream subscribe failed", "symbols", newlyTracked, "error", err)
	}
	g.send(s, ackFrame{Type: "subscribed", Symbols: normalized})
}

func (g *Gateway) handleUnsubscribe(s *session, symbols []string) {
	normalized := model.NormalizeAll(symbols)
	if len(normalized) == 0 {
		g.send(s, errorFrame{Type: "error", Message: "no symbols given"})
		return
	}

	nowEmpty := g.index.Unsubscribe(s.userID, normalized)
	if err := g.upstream.Unsubscribe(nowEmpty); err != nil {
		g.logger.Warn("upstream unsubscribe failed", "symbols", nowEmpty, "error", err)
	}
	g.send(s, ackFrame{Type: "unsubscribed", Symbols: normalized})
}

// teardown unwinds one finished session: hub, index, and any symbols the
// departing user was the last subscriber of.
func (g *Gateway) teardown(s *session) {
	s.close()
	g.hub.remove(s)

	orphaned := g.index.RemoveSession(s.userID, s.id)
	if len(orphaned) > 0 {
		if err := g.upstream.Unsubscribe(orphaned); err != nil {
			g.logger.Warn("upstream unsubscribe failed", "symbols", orphaned, "error", err)
		}
	}

	metrics.SessionsActive.Set(float64(g.hub.Count()))
	g.logger.Info("session disconnected", "session_id", s.id, "user_id", s.userID)
}

// send marshals and enqueues one frame on a single session.
func (g *Gateway) send(s *session, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		g.logger.Error("failed to marshal frame", "error", err)
		return
	}
	if !s.enqueue(data) {
		g.logger.Warn("session queue full, dropping session", "session_id", s.id)
		s.close()
	}
}
