package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rickgao/pro-trader/internal/config"
	"github.com/rickgao/pro-trader/internal/model"
)

// Connect creates a pgx connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}

// positionStore implements PositionStore on PostgreSQL.
type positionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PostgreSQL-backed position store.
func NewPositionStore(pool *pgxpool.Pool) PositionStore {
	return &positionStore{pool: pool}
}

const positionColumns = `id, user_id, symbol, position_type, quantity, entry_price, status, realized_pnl, exit_price, created_at, closed_at`

func (s *positionStore) ListOpen(ctx context.Context, userID uuid.UUID) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions
		 WHERE user_id = $1 AND status = 'OPEN'
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *positionStore) OpenSymbols(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT symbol
		 FROM positions
		 WHERE user_id = $1 AND status = 'OPEN'`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query open symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	return symbols, rows.Err()
}

func (s *positionStore) Get(ctx context.Context, id uuid.UUID) (model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+`
		 FROM positions
		 WHERE id = $1`,
		id,
	)

	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Position{}, ErrPositionNotFound
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("query position: %w", err)
	}
	return p, nil
}

func (s *positionStore) Create(ctx context.Context, p model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions
		   (id, user_id, symbol, position_type, quantity, entry_price, status, realized_pnl, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.Symbol, string(p.Side), p.Quantity, p.EntryPrice,
		string(p.Status), p.RealizedPnL, p.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (s *positionStore) Close(ctx context.Context, id uuid.UUID, exitPrice, realizedPnL decimal.Decimal, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions
		 SET status = 'CLOSED', exit_price = $2, realized_pnl = $3, closed_at = $4
		 WHERE id = $1 AND status = 'OPEN'`,
		id, exitPrice, realizedPnL, closedAt,
	)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from an already-closed one.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrPositionClosed
	}
	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (model.Position, error) {
	var (
		p         model.Position
		side      string
		status    string
		exitPrice *decimal.Decimal
		closedAt  *time.Time
	)

	err := row.Scan(
		&p.ID, &p.UserID, &p.Symbol, &side, &p.Quantity, &p.EntryPrice,
		&status, &p.RealizedPnL, &exitPrice, &p.OpenedAt, &closedAt,
	)
	if err != nil {
		return model.Position{}, err
	}

	p.Side = model.Side(side)
	p.Status = model.Status(status)
	if exitPrice != nil {
		p.ExitPrice = *exitPrice
	}
	if closedAt != nil {
		p.ClosedAt = *closedAt
	}
	return p, nil
}

// tradeStore implements TradeStore on PostgreSQL.
type tradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a PostgreSQL-backed trade store.
func NewTradeStore(pool *pgxpool.Pool) TradeStore {
	return &tradeStore{pool: pool}
}

func (s *tradeStore) Record(ctx context.Context, t model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades
		   (id, user_id, position_id, symbol, side, quantity, price, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.UserID, t.PositionID, t.Symbol, string(t.Side), t.Quantity, t.Price, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *tradeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, position_id, symbol, side, quantity, price, executed_at
		 FROM trades
		 WHERE user_id = $1
		 ORDER BY executed_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var (
			t    model.Trade
			side string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.PositionID, &t.Symbol, &side, &t.Quantity, &t.Price, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = model.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
