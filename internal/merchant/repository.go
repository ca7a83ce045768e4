package merchant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("merchant not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, input CreateInput) (Merchant, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Merchant{}, fmt.Errorf("generate merchant id: %w", err)
	}

	now := time.Now().UTC()
	m := Merchant{
		ID:        id.String(),
		Name:      input.Name,
		Phone:     input.Phone,
		Website:   input.Website,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO merchants (id, name, phone, website, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, m.ID, m.Name, m.Phone, m.Website, now)
	if err != nil {
		return Merchant{}, fmt.Errorf("insert merchant: %w", err)
	}

	return m, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Merchant, error) {
	var m Merchant
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, phone, website, created_at, updated_at
		FROM merchants
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Phone, &m.Website, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Merchant{}, ErrNotFound
		}
		return Merchant{}, fmt.Errorf("query merchant: %w", err)
	}

	return m, nil
}
