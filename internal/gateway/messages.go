package gateway

import "github.com/rickgao/pro-trader/internal/model"

// Application close codes.
const (
	CloseMaxSessions    = 4000 // per-user session cap exceeded
	CloseInvalidSession = 4001 // unknown or expired session
)

// clientMessage is the shape of every inbound frame.
type clientMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols,omitempty"`
}

// Inbound message types.
const (
	msgSubscribe    = "subscribe"
	msgUnsubscribe  = "unsubscribe"
	msgGetPortfolio = "get_portfolio"
	msgPing         = "ping"
)

// ackFrame confirms a subscribe or unsubscribe.
type ackFrame struct {
	Type    string   `json:"type"` // "subscribed" or "unsubscribed"
	Symbols []string `json:"symbols"`
}

// portfolioFrame carries a full portfolio snapshot.
type portfolioFrame struct {
	Type string                  `json:"type"` // "portfolio_snapshot"
	Data model.PortfolioSnapshot `json:"data"`
}

// pongFrame answers an application-level ping.
type pongFrame struct {
	Type string `json:"type"` // "pong"
}

// errorFrame reports a protocol error without dropping the session.
type errorFrame struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
