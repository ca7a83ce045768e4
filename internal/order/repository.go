package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payment-platform/internal/cart"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")

	// ErrNotRejectable reports a reject attempt on an order that already
	// reached a terminal status.
	ErrNotRejectable = errors.New("order cannot be rejected in its current status")
)

type Repository struct {
	db    *sql.DB
	carts *cart.Repository
}

func NewRepository(db *sql.DB, carts *cart.Repository) *Repository {
	return &Repository{db: db, carts: carts}
}

// Create stores the order's cart first, then the order itself, mirroring the
// checkout flow where the cart contents are frozen at order time.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Order, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)
	`, input.OrderNumber).Scan(&exists)
	if err != nil {
		return Order{}, fmt.Errorf("check order number: %w", err)
	}
	if exists {
		return Order{}, ErrDuplicateOrderNumber
	}

	c, err := r.carts.Create(ctx, input.Cart)
	if err != nil {
		return Order{}, fmt.Errorf("create order cart: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Order{}, fmt.Errorf("generate order id: %w", err)
	}

	now := time.Now().UTC()
	o := Order{
		ID:          id.String(),
		OrderNumber: input.OrderNumber,
		Name:        input.Name,
		CustomerID:  input.CustomerID,
		Cart:        c,
		Status:      StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, name, customer_id, cart_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, o.ID, o.OrderNumber, o.Name, o.CustomerID, c.ID, int(o.Status), now)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	return o, nil
}

func (r *Repository) List(ctx context.Context) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT id, order_number, name, customer_id, cart_id, status, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`)
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID int64) ([]Order, error) {
	return r.queryOrders(ctx, `
		SELECT id, order_number, name, customer_id, cart_id, status, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
}

func (r *Repository) GetByID(ctx context.Context, id string) (Order, error) {
	var o Order
	var cartID string
	var status int

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_number, name, customer_id, cart_id, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&o.ID, &o.OrderNumber, &o.Name, &o.CustomerID, &cartID, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("query order: %w", err)
	}
	o.Status = Status(status)

	c, err := r.carts.Get(ctx, cartID)
	if err != nil {
		return Order{}, fmt.Errorf("load order cart: %w", err)
	}
	o.Cart = c

	return o, nil
}

// Reject moves an order to the Reject status. Only freshly created or pending
// orders can be rejected.
func (r *Repository) Reject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5)
	`, id, int(StatusReject), time.Now().UTC(), int(StatusCreated), int(StatusPending))
	if err != nil {
		return fmt.Errorf("reject order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject order rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order existence: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	return ErrNotRejectable
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	cartIDs := make([]string, 0)
	for rows.Next() {
		var o Order
		var cartID string
		var status int
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Name, &o.CustomerID, &cartID, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = Status(status)
		orders = append(orders, o)
		cartIDs = append(cartIDs, cartID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		c, err := r.carts.Get(ctx, cartIDs[i])
		if err != nil {
			return nil, fmt.Errorf("load order cart: %w", err)
		}
		orders[i].Cart = c
	}

	return orders, nil
}
