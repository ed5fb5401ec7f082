package db

import (
	"context"
	"fmt"
	"time"

	"github.com/zeqswap/exchange/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DB wraps a PostgreSQL connection pool. It is a durable index of users,
// orders, cancellations, and trades, written after the corresponding core
// operation succeeds; the in-memory event log remains the source of truth.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// CreateUser inserts a new user with their assigned exchange address
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string, address models.Address) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, address) VALUES ($1, $2, $3) RETURNING id, username, password_hash, address, created_at",
		username, passwordHash, string(address)).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Address, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, address, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Address, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByAddress retrieves a user by exchange address
func (db *DB) GetUserByAddress(ctx context.Context, address models.Address) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, address, created_at FROM users WHERE address = $1",
		string(address)).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Address, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// OrderRow is an indexed order together with its derived status.
type OrderRow struct {
	models.Order
	Status string `json:"status"`
}

// RecordOrder indexes a newly created order. The id comes from the core's
// registry, not the database.
func (db *DB) RecordOrder(ctx context.Context, order *models.Order) error {
	_, err := db.Pool.Exec(ctx,
		"INSERT INTO orders (id, user_address, token_get, amount_get, token_give, amount_give, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		order.ID, string(order.User), string(order.TokenGet), order.AmountGet.String(),
		string(order.TokenGive), order.AmountGive.String(), models.OrderStatusOpen, order.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

// RecordCancel indexes a cancellation and flips the order's status. The row
// is locked for update so concurrent indexers cannot double-close it.
func (db *DB) RecordCancel(ctx context.Context, orderID uint64, user models.Address, at time.Time) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		"SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("order %d not indexed", orderID)
		}
		return fmt.Errorf("failed to get order: %w", err)
	}
	if status != models.OrderStatusOpen {
		return fmt.Errorf("order %d already %s", orderID, status)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO cancellations (order_id, user_address, cancelled_at) VALUES ($1, $2, $3)",
		orderID, string(user), at); err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", models.OrderStatusCancelled, orderID); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecordTrade indexes a fill and flips the order's status.
func (db *DB) RecordTrade(ctx context.Context, trade *models.Trade) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO trades (order_id, taker, maker, token_get, amount_get, token_give, amount_give, executed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		trade.OrderID, string(trade.User), string(trade.Maker), string(trade.TokenGet), trade.AmountGet.String(),
		string(trade.TokenGive), trade.AmountGive.String(), trade.Timestamp); err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", models.OrderStatusFilled, trade.OrderID); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetUserOrders retrieves all indexed orders created by an account
func (db *DB) GetUserOrders(ctx context.Context, user models.Address) ([]OrderRow, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, user_address, token_get, amount_get, token_give, amount_give, status, created_at FROM orders WHERE user_address = $1 ORDER BY id",
		string(user))
	if err != nil {
		return nil, fmt.Errorf("failed to get user orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetOpenOrders retrieves all indexed orders still open
func (db *DB) GetOpenOrders(ctx context.Context) ([]OrderRow, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, user_address, token_get, amount_get, token_give, amount_give, status, created_at FROM orders WHERE status = $1 ORDER BY id",
		models.OrderStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows pgx.Rows) ([]OrderRow, error) {
	var orders []OrderRow
	for rows.Next() {
		var (
			o                    OrderRow
			user, tGet, tGive    string
			amountGet, amountGiv string
		)
		if err := rows.Scan(&o.ID, &user, &tGet, &amountGet, &tGive, &amountGiv, &o.Status, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		var err error
		if o.AmountGet, err = decimal.NewFromString(amountGet); err != nil {
			return nil, fmt.Errorf("failed to parse amount_get: %w", err)
		}
		if o.AmountGive, err = decimal.NewFromString(amountGiv); err != nil {
			return nil, fmt.Errorf("failed to parse amount_give: %w", err)
		}
		o.User = models.Address(user)
		o.TokenGet = models.Address(tGet)
		o.TokenGive = models.Address(tGive)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetUserTrades retrieves all trades an account took part in, as maker or
// taker
func (db *DB) GetUserTrades(ctx context.Context, user models.Address) ([]models.Trade, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT order_id, taker, maker, token_get, amount_get, token_give, amount_give, executed_at FROM trades WHERE taker = $1 OR maker = $1 ORDER BY executed_at",
		string(user))
	if err != nil {
		return nil, fmt.Errorf("failed to get user trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetAllTrades retrieves every indexed trade in execution order
func (db *DB) GetAllTrades(ctx context.Context) ([]models.Trade, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT order_id, taker, maker, token_get, amount_get, token_give, amount_give, executed_at FROM trades ORDER BY executed_at")
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]models.Trade, error) {
	var trades []models.Trade
	for rows.Next() {
		var (
			t                         models.Trade
			taker, maker, tGet, tGive string
			amountGet, amountGive     string
		)
		if err := rows.Scan(&t.OrderID, &taker, &maker, &tGet, &amountGet, &tGive, &amountGive, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		var err error
		if t.AmountGet, err = decimal.NewFromString(amountGet); err != nil {
			return nil, fmt.Errorf("failed to parse amount_get: %w", err)
		}
		if t.AmountGive, err = decimal.NewFromString(amountGive); err != nil {
			return nil, fmt.Errorf("failed to parse amount_give: %w", err)
		}
		t.User = models.Address(taker)
		t.Maker = models.Address(maker)
		t.TokenGet = models.Address(tGet)
		t.TokenGive = models.Address(tGive)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return trades, nil
}
