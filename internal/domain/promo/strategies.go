package promo

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/pricing"
)

// Names of the standard strategies.
const (
	NameFidelity   = "fidelity"
	NameBulkItem   = "bulk_item"
	NameLargeOrder = "large_order"
)

var (
	// FidelityPromo gives 5% off the total to customers with 1000 or more
	// fidelity points.
	FidelityPromo = Fidelity(1000, decimal.RequireFromString("0.05"))
	// BulkItemPromo gives 10% off each line ordered in 20 or more units.
	BulkItemPromo = BulkItem(20, decimal.RequireFromString("0.10"))
	// LargeOrderPromo gives 7% off the total when the cart holds 10 or more
	// distinct products.
	LargeOrderPromo = LargeOrder(10, decimal.RequireFromString("0.07"))
)

// Fidelity discounts rate of the total when the customer has at least
// minPoints fidelity points.
func Fidelity(minPoints int, rate decimal.Decimal) pricing.Strategy {
	return func(c *pricing.Context) decimal.Decimal {
		if c.Customer().Fidelity < minPoints {
			return decimal.Zero
		}
		return c.Total().Mul(rate)
	}
}

// BulkItem discounts rate of every line whose quantity is at least minQuantity.
func BulkItem(minQuantity int, rate decimal.Decimal) pricing.Strategy {
	return func(c *pricing.Context) decimal.Decimal {
		discount := decimal.Zero
		for _, item := range c.Items() {
			if item.Quantity >= minQuantity {
				discount = discount.Add(item.Total().Mul(rate))
			}
		}
		return discount
	}
}

// LargeOrder discounts rate of the total when the cart contains at least
// minDistinct distinct products.
func LargeOrder(minDistinct int, rate decimal.Decimal) pricing.Strategy {
	return func(c *pricing.Context) decimal.Decimal {
		if c.DistinctProducts() < minDistinct {
			return decimal.Zero
		}
		return c.Total().Mul(rate)
	}
}

// StandardConfig parameterises the standard strategies.
type StandardConfig struct {
	FidelityMinPoints     int
	FidelityRate          decimal.Decimal
	BulkItemMinQuantity   int
	BulkItemRate          decimal.Decimal
	LargeOrderMinDistinct int
	LargeOrderRate        decimal.Decimal
}

// DefaultStandardConfig returns the parameters of FidelityPromo,
// BulkItemPromo and LargeOrderPromo.
func DefaultStandardConfig() StandardConfig {
	return StandardConfig{
		FidelityMinPoints:     1000,
		FidelityRate:          decimal.RequireFromString("0.05"),
		BulkItemMinQuantity:   20,
		BulkItemRate:          decimal.RequireFromString("0.10"),
		LargeOrderMinDistinct: 10,
		LargeOrderRate:        decimal.RequireFromString("0.07"),
	}
}

// Standard returns the fidelity, bulk item and large order strategies built
// from cfg.
func Standard(cfg StandardConfig) []Entry {
	return []Entry{
		{Name: NameFidelity, Strategy: Fidelity(cfg.FidelityMinPoints, cfg.FidelityRate)},
		{Name: NameBulkItem, Strategy: BulkItem(cfg.BulkItemMinQuantity, cfg.BulkItemRate)},
		{Name: NameLargeOrder, Strategy: LargeOrder(cfg.LargeOrderMinDistinct, cfg.LargeOrderRate)},
	}
}

// NewStandardRegistry returns a registry holding the standard strategies.
func NewStandardRegistry(cfg StandardConfig) (*Registry, error) {
	return NewRegistryFrom(Standard(cfg)...)
}
