// Package quote prices carts against the catalog and the promo registry.
package quote

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a priced cart with the discount that was applied.
type Quote struct {
	ID         string
	CustomerID string
	Items      []Item
	Total      decimal.Decimal
	Discount   decimal.Decimal
	Due        decimal.Decimal
	Strategy   string
	CreatedAt  time.Time
}

// Item is a requested cart line.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Repository defines persistence operations for quotes.
type Repository interface {
	Create(ctx context.Context, q *Quote) error
}
