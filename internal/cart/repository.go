package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("cart not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a cart and its items in one transaction and returns the
// stored representation.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Cart, error) {
	cartID, err := uuid.NewV7()
	if err != nil {
		return Cart{}, fmt.Errorf("generate cart id: %w", err)
	}

	now := time.Now().UTC()
	c := Cart{
		ID:        cartID.String(),
		Items:     make([]Item, 0, len(input.Items)),
		CreatedAt: now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Cart{}, fmt.Errorf("begin cart tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO carts (id, created_at)
		VALUES ($1, $2)
	`, c.ID, now); err != nil {
		return Cart{}, fmt.Errorf("insert cart: %w", err)
	}

	for _, item := range input.Items {
		itemID, err := uuid.NewV7()
		if err != nil {
			return Cart{}, fmt.Errorf("generate cart item id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, cart_id, name, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, itemID.String(), c.ID, item.Name, item.Quantity, item.Price); err != nil {
			return Cart{}, fmt.Errorf("insert cart item: %w", err)
		}

		c.Items = append(c.Items, Item{
			ID:       itemID.String(),
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	if err := tx.Commit(); err != nil {
		return Cart{}, fmt.Errorf("commit cart tx: %w", err)
	}

	return c, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Cart, error) {
	var c Cart
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at
		FROM carts
		WHERE id = $1
	`, id).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("query cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, quantity, price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return Cart{}, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	c.Items = make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		c.Items = append(c.Items, item)
	}

	if err := rows.Err(); err != nil {
		return Cart{}, fmt.Errorf("iterate cart items: %w", err)
	}

	return c, nil
}
