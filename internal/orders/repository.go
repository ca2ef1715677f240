package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aisle/internal/domain"
)

// OrderRepository persists placed orders and answers history lookups.
// Orders and their items are append-only: rows are written once, after a
// placement succeeds, and never mutated.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Store writes a placed order with its resolved lines and returns the new
// order id.
func (r *OrderRepository) Store(ctx context.Context, order domain.Order) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	orderID := uuid.New().String()
	placedAt := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, placed_at)
		VALUES ($1, $2)
	`, orderID, placedAt)
	if err != nil {
		return "", err
	}

	for _, line := range order {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, item, product_name, stockcode, price_total, price_unit_measure)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, line.Item, line.Product.Name, line.Product.Stockcode,
			line.Product.PriceTotal, line.Product.PriceUnitMeasure)
		if err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return orderID, nil
}

// HasStockcode reports whether a stockcode appears anywhere in past order
// items. Used by the resolver as a "bought this before" signal.
func (r *OrderRepository) HasStockcode(ctx context.Context, stockcode string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `
		SELECT stockcode
		FROM order_items
		WHERE stockcode = $1
		ORDER BY id DESC
		LIMIT 1
	`, stockcode).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.StoredOrder, error) {
	order := &domain.StoredOrder{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, placed_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.PlacedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT item, product_name, stockcode, price_total, price_unit_measure
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line domain.Line
		if err := rows.Scan(&line.Item, &line.Product.Name, &line.Product.Stockcode,
			&line.Product.PriceTotal, &line.Product.PriceUnitMeasure); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, line)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.StoredOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, placed_at
		FROM orders
		ORDER BY placed_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.StoredOrder)
	var orderIDs []string

	for rows.Next() {
		var order domain.StoredOrder
		if err := rows.Scan(&order.ID, &order.PlacedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.Line{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.StoredOrder{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, item, product_name, stockcode, price_total, price_unit_measure
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var line domain.Line
		if err := itemRows.Scan(&orderID, &line.Item, &line.Product.Name, &line.Product.Stockcode,
			&line.Product.PriceTotal, &line.Product.PriceUnitMeasure); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, line)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.StoredOrder, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}
