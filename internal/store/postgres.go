package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/marketsim/engine/internal/model"
)

// Schema creates the audit tables. Monetary values are NUMERIC for exact
// decimal precision.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id            TEXT PRIMARY KEY,
	day           INTEGER NOT NULL,
	symbol        TEXT NOT NULL,
	side          TEXT NOT NULL CHECK (side IN ('buy', 'sell')),
	quantity      BIGINT NOT NULL CHECK (quantity > 0),
	price         NUMERIC NOT NULL,
	amount        NUMERIC NOT NULL,
	balance_after NUMERIC NOT NULL CHECK (balance_after >= 0),
	timestamp     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_symbol_idx ON trades (symbol, timestamp DESC);

CREATE TABLE IF NOT EXISTS news_events (
	id               TEXT PRIMARY KEY,
	day              INTEGER NOT NULL,
	title            TEXT NOT NULL,
	content          TEXT NOT NULL,
	impact           DOUBLE PRECISION NOT NULL CHECK (impact BETWEEN -1 AND 1),
	affected_sectors TEXT[] NOT NULL DEFAULT '{}',
	timestamp        TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema. It is idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, r *model.TradeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, day, symbol, side, quantity, price, amount, balance_after, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9)`,
		r.ID, r.Day, r.Symbol, string(r.Side), r.Quantity,
		r.Price.String(), r.Amount.String(), r.BalanceAfter.String(),
		r.Timestamp,
	)
	return wrapInsertErr("trade", r.ID, err)
}

func (s *PostgresStore) ListTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day, symbol, side, quantity,
		        price::TEXT, amount::TEXT, balance_after::TEXT, timestamp
		 FROM trades ORDER BY timestamp DESC, id LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) ListTradesBySymbol(ctx context.Context, symbol string, limit int) ([]model.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day, symbol, side, quantity,
		        price::TEXT, amount::TEXT, balance_after::TEXT, timestamp
		 FROM trades WHERE symbol = $1 ORDER BY timestamp DESC, id LIMIT $2`,
		symbol, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) InsertNews(ctx context.Context, ev model.NewsEvent) error {
	sectors := ev.AffectedSectors
	if sectors == nil {
		sectors = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO news_events (id, day, title, content, impact, affected_sectors, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.Day, ev.Title, ev.Content, ev.Impact, sectors, ev.Timestamp,
	)
	return wrapInsertErr("news", ev.ID, err)
}

func (s *PostgresStore) ListNews(ctx context.Context, limit int) ([]model.NewsEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, day, title, content, impact, affected_sectors, timestamp
		 FROM news_events ORDER BY timestamp DESC, id LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.NewsEvent{}
	for rows.Next() {
		var ev model.NewsEvent
		if err := rows.Scan(&ev.ID, &ev.Day, &ev.Title, &ev.Content,
			&ev.Impact, &ev.AffectedSectors, &ev.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func wrapInsertErr(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s %s", ErrDuplicateID, kind, id)
	}
	return fmt.Errorf("insert %s %s: %w", kind, id, err)
}

func scanTrades(rows pgx.Rows) ([]model.TradeRecord, error) {
	trades := []model.TradeRecord{}
	for rows.Next() {
		var r model.TradeRecord
		var side, priceS, amountS, balanceS string

		if err := rows.Scan(&r.ID, &r.Day, &r.Symbol, &side, &r.Quantity,
			&priceS, &amountS, &balanceS, &r.Timestamp); err != nil {
			return nil, err
		}

		r.Side = model.Side(side)
		r.Price, _ = decimal.NewFromString(priceS)
		r.Amount, _ = decimal.NewFromString(amountS)
		r.BalanceAfter, _ = decimal.NewFromString(balanceS)

		trades = append(trades, r)
	}
	return trades, rows.Err()
}
