package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/pricing"
)

// Kind enumerates the declarative rule shapes.
type Kind string

const (
	// KindPercentage takes Value percent off the total.
	KindPercentage Kind = "percentage"
	// KindFixed takes a fixed amount off, capped at the total.
	KindFixed Kind = "fixed"
	// KindFreeLowest makes one unit of the cheapest line free.
	KindFreeLowest Kind = "free_lowest"
)

var hundred = decimal.NewFromInt(100)

// Rule declares a strategy from configuration rather than code. A rule only
// applies once the cart holds at least MinItems units.
type Rule struct {
	Name     string
	Kind     Kind
	Value    decimal.Decimal
	MinItems int
}

// Strategy builds the strategy described by the rule.
func (r Rule) Strategy() (pricing.Strategy, error) {
	if r.Value.IsNegative() {
		return nil, errors.Errorf("rule %q: negative value %s", r.Name, r.Value)
	}

	var apply pricing.Strategy
	switch r.Kind {
	case KindPercentage:
		apply = percentage(r.Value)
	case KindFixed:
		apply = fixedAmount(r.Value)
	case KindFreeLowest:
		apply = freeLowest
	default:
		return nil, errors.Errorf("rule %q: unsupported kind %q", r.Name, r.Kind)
	}

	if r.MinItems <= 0 {
		return apply, nil
	}
	return func(c *pricing.Context) decimal.Decimal {
		if totalQuantity(c.Items()) < r.MinItems {
			return decimal.Zero
		}
		return apply(c)
	}, nil
}

// Entries converts rules into registry entries.
func Entries(rules ...Rule) ([]Entry, error) {
	out := make([]Entry, 0, len(rules))
	for _, r := range rules {
		s, err := r.Strategy()
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Name: r.Name, Strategy: s})
	}
	return out, nil
}

func percentage(pct decimal.Decimal) pricing.Strategy {
	return func(c *pricing.Context) decimal.Decimal {
		return c.Total().Mul(pct).Div(hundred)
	}
}

func fixedAmount(amount decimal.Decimal) pricing.Strategy {
	return func(c *pricing.Context) decimal.Decimal {
		return decimal.Min(amount, c.Total())
	}
}

func freeLowest(c *pricing.Context) decimal.Decimal {
	items := c.Items()
	if len(items) == 0 {
		return decimal.Zero
	}
	lowest := items[0].Price
	for _, item := range items[1:] {
		if item.Price.LessThan(lowest) {
			lowest = item.Price
		}
	}
	return lowest
}

func totalQuantity(items []pricing.LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
