package order

import (
	"context"
	"time"
)

const StatusPaid = "PAID"

// Line is a cart line frozen into an order.
type Line struct {
	ProductID int    `json:"product_id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Lines     []Line    `json:"lines"`
	Total     int64     `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, bool, error)
	Ping(ctx context.Context) error
}
