// Package pricing holds the immutable pricing context that discount
// strategies are evaluated against.
package pricing

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Customer is the buyer a context is priced for. Fidelity is the customer's
// loyalty score.
type Customer struct {
	Name     string
	Fidelity int
}

// LineItem is a single cart line.
type LineItem struct {
	Product  string
	Quantity int
	Price    decimal.Decimal
}

// Total returns Price * Quantity.
func (i LineItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Strategy computes a discount amount for a context. Strategies must be pure:
// they never mutate the context and return the same amount for the same input.
type Strategy func(c *Context) decimal.Decimal

// Option configures a Context at construction.
type Option func(c *Context)

// WithStrategy sets the strategy used by Due.
func WithStrategy(s Strategy) Option {
	return func(c *Context) {
		c.strategy = s
	}
}

// Context is one pricing calculation: a customer, a cart and an optional
// strategy. It is safe for concurrent use.
type Context struct {
	customer Customer
	items    []LineItem
	strategy Strategy

	totalOnce sync.Once
	computed  atomic.Bool
	total     decimal.Decimal
}

// NewContext creates a Context. The items slice is copied.
func NewContext(customer Customer, items []LineItem, opts ...Option) *Context {
	c := &Context{
		customer: customer,
		items:    append([]LineItem(nil), items...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply returns a new context for the same customer and cart priced with s.
func (c *Context) Apply(s Strategy) *Context {
	return NewContext(c.customer, c.items, WithStrategy(s))
}

// Customer returns the customer the context is priced for.
func (c *Context) Customer() Customer {
	return c.customer
}

// Items returns a copy of the cart lines.
func (c *Context) Items() []LineItem {
	return append([]LineItem(nil), c.items...)
}

// Len returns the number of cart lines.
func (c *Context) Len() int {
	return len(c.items)
}

// Strategy returns the applied strategy, or nil.
func (c *Context) Strategy() Strategy {
	return c.strategy
}

// Total returns the sum of all line totals. It is computed once and cached.
func (c *Context) Total() decimal.Decimal {
	c.totalOnce.Do(func() {
		sum := decimal.Zero
		for _, item := range c.items {
			sum = sum.Add(item.Total())
		}
		c.total = sum
		c.computed.Store(true)
	})
	return c.total
}

// TotalComputed reports whether Total has already been calculated.
func (c *Context) TotalComputed() bool {
	return c.computed.Load()
}

// Discount returns the amount taken off by the applied strategy, clamped to
// [0, Total]. It is zero when no strategy is set.
func (c *Context) Discount() decimal.Decimal {
	if c.strategy == nil {
		return decimal.Zero
	}
	return Clamp(c.strategy(c), c.Total())
}

// Due returns Total minus the applied discount.
func (c *Context) Due() decimal.Decimal {
	return c.Total().Sub(c.Discount())
}

// DistinctProducts returns the number of distinct products in the cart.
func (c *Context) DistinctProducts() int {
	seen := make(map[string]struct{}, len(c.items))
	for _, item := range c.items {
		seen[item.Product] = struct{}{}
	}
	return len(seen)
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("<Order total: %s due: %s>", c.Total().StringFixed(2), c.Due().StringFixed(2))
}

// Clamp bounds a discount amount to [0, limit].
func Clamp(amount, limit decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(amount, limit)
}
