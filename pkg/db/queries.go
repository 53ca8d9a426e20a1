package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// OrderUpdate is one journaled order state change. Decimal fields are kept
// as their exact string form.
type OrderUpdate struct {
	ID             int64
	BracketOrderID string
	Role           string
	Venue          string
	Symbol         string
	OrderID        string
	ClientOrderID  string
	Status         string
	Side           string
	OrderType      string
	Price          string
	Quantity       string
	ExecutedQty    string
	UpdateTime     int64
	Reason         string
	Source         string
	CreatedAt      time.Time
}

// Journal is an append-only log of order updates.
type Journal struct {
	db *sql.DB
}

// Insert appends an update and returns its row id.
func (j *Journal) Insert(ctx context.Context, u OrderUpdate) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO order_updates (
			bracket_order_id, role, venue, symbol, order_id, client_order_id, status,
			side, order_type, price, quantity, executed_qty, update_time, reason, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.BracketOrderID, u.Role, u.Venue, u.Symbol, u.OrderID, u.ClientOrderID, u.Status,
		u.Side, u.OrderType, nonEmpty(u.Price), nonEmpty(u.Quantity), nonEmpty(u.ExecutedQty),
		u.UpdateTime, u.Reason, u.Source)
	if err != nil {
		return 0, fmt.Errorf("insert order update: %w", err)
	}
	return res.LastInsertId()
}

// ListByBracket returns every update for a bracket in insertion order. When
// clientIDPrefix is set, rows whose client order id starts with it are
// included too; stream-relayed updates only carry the client id.
// ErrNotFound is returned when nothing matches.
func (j *Journal) ListByBracket(ctx context.Context, bracketOrderID, clientIDPrefix string) ([]OrderUpdate, error) {
	out, err := j.list(ctx, `WHERE bracket_order_id = ?
		OR (? <> '' AND substr(client_order_id, 1, length(?)) = ?)
		ORDER BY id`, bracketOrderID, clientIDPrefix, clientIDPrefix, clientIDPrefix)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// LatestByClientID returns the most recent update for a client order id.
func (j *Journal) LatestByClientID(ctx context.Context, clientOrderID string) (OrderUpdate, error) {
	out, err := j.list(ctx, `WHERE client_order_id = ? ORDER BY id DESC LIMIT 1`, clientOrderID)
	if err != nil {
		return OrderUpdate{}, err
	}
	if len(out) == 0 {
		return OrderUpdate{}, ErrNotFound
	}
	return out[0], nil
}

func (j *Journal) list(ctx context.Context, where string, args ...any) ([]OrderUpdate, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, bracket_order_id, role, venue, symbol, order_id, client_order_id, status,
			side, order_type, price, quantity, executed_qty, update_time, reason, source, created_at
		FROM order_updates `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query order updates: %w", err)
	}
	defer rows.Close()

	var out []OrderUpdate
	for rows.Next() {
		var u OrderUpdate
		if err := rows.Scan(&u.ID, &u.BracketOrderID, &u.Role, &u.Venue, &u.Symbol, &u.OrderID,
			&u.ClientOrderID, &u.Status, &u.Side, &u.OrderType, &u.Price, &u.Quantity,
			&u.ExecutedQty, &u.UpdateTime, &u.Reason, &u.Source, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order update: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func nonEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
