package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ashendes/order-service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id      BIGSERIAL PRIMARY KEY,
	created_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	total_price   NUMERIC NOT NULL
);
CREATE TABLE IF NOT EXISTS order_lines (
	order_line_id BIGSERIAL PRIMARY KEY,
	order_id      BIGINT NOT NULL REFERENCES orders (order_id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	product_id    BIGINT NOT NULL,
	quantity      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS order_lines_order_id_idx ON order_lines (order_id);
`

const selectOrders = `
SELECT o.order_id, o.created_date, o.modified_date, o.total_price::text,
       l.order_line_id, l.product_id, l.quantity
FROM orders o
JOIN order_lines l ON l.order_id = o.order_id`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists orders and their lines in PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the order tables when they do not exist yet
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate order schema: %w", err)
	}
	return nil
}

// Insert writes the order and its lines in one transaction
func (s *PostgresStore) Insert(ctx context.Context, order *models.Order) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert order: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stored := cloneOrder(order)
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (total_price) VALUES ($1::numeric)
		 RETURNING order_id, created_date, modified_date`,
		order.TotalPrice.String(),
	).Scan(&stored.OrderID, &stored.CreatedDate, &stored.ModifiedDate)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range stored.OrderLines {
		var lineID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO order_lines (order_id, position, product_id, quantity)
			 VALUES ($1, $2, $3, $4) RETURNING order_line_id`,
			stored.OrderID, i, stored.OrderLines[i].ProductID, stored.OrderLines[i].Quantity,
		).Scan(&lineID)
		if err != nil {
			return nil, fmt.Errorf("insert line %d of order %d: %w", i, stored.OrderID, err)
		}
		stored.OrderLines[i].OrderLineID = &lineID
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order %d: %w", stored.OrderID, err)
	}
	return stored, nil
}

// FindByID loads the order and its lines, or returns ErrNotFound
func (s *PostgresStore) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	orders, err := queryOrders(ctx, s.pool, selectOrders+` WHERE o.order_id = $1 ORDER BY l.position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderID, err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return &orders[0], nil
}

// FindAll loads every order ordered by id
func (s *PostgresStore) FindAll(ctx context.Context) ([]models.Order, error) {
	orders, err := queryOrders(ctx, s.pool, selectOrders+` ORDER BY o.order_id, l.position`)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	return orders, nil
}

// Delete removes the order, its lines go with it through the cascade
func (s *PostgresStore) Delete(ctx context.Context, orderID int64) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin delete order %d: %w", orderID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orders, err := queryOrders(ctx, tx, selectOrders+` WHERE o.order_id = $1 ORDER BY l.position FOR UPDATE OF o`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE order_id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("delete order %d: %w", orderID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit delete order %d: %w", orderID, err)
	}
	return &orders[0], nil
}

// queryOrders folds joined order/line rows into aggregates. Rows must be
// grouped by order id.
func queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]models.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			orderID, lineID, productID int64
			created, modified          time.Time
			total                      string
			quantity                   int
		)
		if err := rows.Scan(&orderID, &created, &modified, &total, &lineID, &productID, &quantity); err != nil {
			return nil, err
		}

		if n := len(orders); n == 0 || orders[n-1].OrderID != orderID {
			price, err := decimal.NewFromString(total)
			if err != nil {
				return nil, fmt.Errorf("parse total price of order %d: %w", orderID, err)
			}
			orders = append(orders, models.Order{
				OrderID:    orderID,
				Audit:      models.Audit{CreatedDate: created, ModifiedDate: modified},
				TotalPrice: price,
			})
		}

		current := &orders[len(orders)-1]
		current.OrderLines = append(current.OrderLines, models.OrderLine{
			OrderLineID: &lineID,
			ProductID:   productID,
			Quantity:    quantity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
