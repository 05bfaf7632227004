// Package customer describes buyers and their fidelity balance.
package customer

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-promo/internal/domain/pricing"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a registered buyer.
type Customer struct {
	ID       string
	Name     string
	Fidelity int
}

// Anonymous is used for quotes without a customer ID.
var Anonymous = Customer{Name: "anonymous"}

// Pricing converts the customer into its pricing form.
func (c Customer) Pricing() pricing.Customer {
	return pricing.Customer{Name: c.Name, Fidelity: c.Fidelity}
}

// FidelityDelta is a points adjustment for one customer.
type FidelityDelta struct {
	CustomerID string
	Points     int
}

// Repository defines customer persistence.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
	ListIDs(ctx context.Context) ([]string, error)
	AddFidelity(ctx context.Context, deltas []FidelityDelta) error
}
