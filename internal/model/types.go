package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Status is the lifecycle state of a position.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Normalize returns the canonical form of a symbol: trimmed, uppercase.
// All maps and wire messages use the normalized form.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NormalizeAll normalizes a slice of symbols, dropping empty entries.
func NormalizeAll(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if n := Normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Position is a paper-trading position. The core reads OPEN positions from
// the PositionStore and never mutates them; at most one OPEN position exists
// per (user, symbol).
type Position struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal // > 0
	EntryPrice  decimal.Decimal // > 0
	Status      Status
	RealizedPnL decimal.Decimal
	ExitPrice   decimal.Decimal // zero until closed
	OpenedAt    time.Time
	ClosedAt    time.Time // zero until closed
}

// UnrealizedPnL returns the position's unrealized profit at the given price:
// quantity x (current - entry) for LONG, quantity x (entry - current) for SHORT.
func (p Position) UnrealizedPnL(current decimal.Decimal) decimal.Decimal {
	if p.Side == SideShort {
		return p.Quantity.Mul(p.EntryPrice.Sub(current))
	}
	return p.Quantity.Mul(current.Sub(p.EntryPrice))
}

// Invested returns quantity x entry price.
func (p Position) Invested() decimal.Decimal {
	return p.Quantity.Mul(p.EntryPrice)
}

// PnLPercent returns the unrealized P&L as a percentage of the invested
// amount, or zero when nothing is invested.
func (p Position) PnLPercent(current decimal.Decimal) decimal.Decimal {
	invested := p.Invested()
	if invested.IsZero() {
		return decimal.Zero
	}
	return p.UnrealizedPnL(current).Div(invested).Mul(decimal.NewFromInt(100))
}

// Trade is an executed paper trade (an open or close of a position).
type Trade struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	PositionID uuid.UUID
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	ExecutedAt time.Time
}

// Tick is one upstream price update for one symbol. Ticks are ephemeral:
// they live from arrival until the next buffer flush.
type Tick struct {
	Symbol       string
	Price        decimal.Decimal
	Volume24h    decimal.Decimal
	ChangePct24h decimal.Decimal
	High24h      decimal.Decimal
	Low24h       decimal.Decimal
	Timestamp    time.Time
}

// PriceEntry is the cached latest-known price for a symbol.
type PriceEntry struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

// PositionPnL is the per-position slice of a portfolio snapshot.
type PositionPnL struct {
	ID            uuid.UUID       `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"position_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"pnl_percentage"`
}

// PortfolioSnapshot is a derived, read-only aggregate of a user's open
// positions joined against current prices. Never stored as authoritative
// state.
type PortfolioSnapshot struct {
	Positions     []PositionPnL   `json:"positions"`
	Invested      decimal.Decimal `json:"total_invested"`
	CurrentValue  decimal.Decimal `json:"total_current_value"`
	UnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	PnLPercent    decimal.Decimal `json:"total_pnl_percentage"`
	Timestamp     time.Time       `json:"timestamp"`
}

// EmptyPortfolio returns a snapshot for a user with no open positions.
func EmptyPortfolio(now time.Time) PortfolioSnapshot {
	return PortfolioSnapshot{
		Positions:     []PositionPnL{},
		Invested:      decimal.Zero,
		CurrentValue:  decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		PnLPercent:    decimal.Zero,
		Timestamp:     now,
	}
}

// Display rounding: 4 decimal places for monetary values, 2 for percentages.
const (
	ValueScale   = 4
	PercentScale = 2
)

// RoundValue rounds a monetary value for display.
func RoundValue(d decimal.Decimal) decimal.Decimal {
	return d.Round(ValueScale)
}

// RoundPercent rounds a percentage for display.
func RoundPercent(d decimal.Decimal) decimal.Decimal {
	return d.Round(PercentScale)
}
