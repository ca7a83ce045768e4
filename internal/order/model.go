package order

import (
	"time"

	"payment-platform/internal/cart"
)

type Status int

const (
	StatusCreated Status = iota + 1
	StatusPending
	StatusSuccess
	StatusReject
	StatusFail
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusReject:
		return "reject"
	case StatusFail:
		return "fail"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

type Order struct {
	ID          string    `json:"id"`
	OrderNumber string    `json:"orderNumber"`
	Name        string    `json:"name"`
	CustomerID  int64     `json:"customerId"`
	Cart        cart.Cart `json:"cart"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateInput struct {
	OrderNumber string
	Name        string
	CustomerID  int64
	Cart        cart.CreateInput
}
