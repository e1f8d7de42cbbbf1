package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/model"
)

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found or expired")
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionClosed   = errors.New("position already closed")
)

// Session identifies an authenticated user behind a session ID.
type Session struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PositionStore persists paper-trading positions.
type PositionStore interface {
	// ListOpen returns all OPEN positions of a user.
	ListOpen(ctx context.Context, userID uuid.UUID) ([]model.Position, error)

	// OpenSymbols returns the distinct symbols of a user's OPEN positions.
	OpenSymbols(ctx context.Context, userID uuid.UUID) ([]string, error)

	// Get returns one position by ID.
	Get(ctx context.Context, id uuid.UUID) (model.Position, error)

	// Create inserts a new OPEN position.
	Create(ctx context.Context, p model.Position) error

	// Close marks a position CLOSED, recording exit price, realized P&L,
	// and close time. Returns ErrPositionClosed if it is not OPEN.
	Close(ctx context.Context, id uuid.UUID, exitPrice, realizedPnL decimal.Decimal, closedAt time.Time) error
}

// TradeStore persists the executed-trade log.
type TradeStore interface {
	// Record appends one executed trade.
	Record(ctx context.Context, t model.Trade) error

	// ListByUser returns a user's trades, newest first, up to limit.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Trade, error)
}

// SessionStore manages client sessions.
type SessionStore interface {
	// Create stores a session under the given ID with the store's TTL.
	// The auth service calls this on login; an existing entry is
	// overwritten.
	Create(ctx context.Context, sessionID string, sess Session) error

	// Validate resolves a session ID, renewing its sliding TTL. Returns
	// ErrSessionNotFound for unknown or expired sessions.
	Validate(ctx context.Context, sessionID string) (Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error
}
