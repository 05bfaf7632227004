// Command promo-demo prices sample carts with each standard promo and with
// the best available promo.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/pricing"
	"github.com/xenking/kart-promo/internal/domain/promo"
)

var (
	joe = pricing.Customer{Name: "John Doe", Fidelity: 0}
	ann = pricing.Customer{Name: "Ann Smith", Fidelity: 1100}
)

func line(product string, quantity int, price string) pricing.LineItem {
	return pricing.LineItem{Product: product, Quantity: quantity, Price: decimal.RequireFromString(price)}
}

type sample struct {
	cart     string
	items    []pricing.LineItem
	strategy string
}

func samples() []sample {
	longCart := make([]pricing.LineItem, 10)
	for i := range longCart {
		longCart[i] = line(strconv.Itoa(i), 1, "1.0")
	}
	return []sample{
		{
			cart:     "cart",
			items:    []pricing.LineItem{line("banana", 4, "0.5"), line("apple", 10, "1.5"), line("watermelon", 5, "5.0")},
			strategy: promo.NameFidelity,
		},
		{
			cart:     "banana_cart",
			items:    []pricing.LineItem{line("banana", 30, "0.5"), line("apple", 10, "1.5")},
			strategy: promo.NameBulkItem,
		},
		{
			cart:     "long_cart",
			items:    longCart,
			strategy: promo.NameLargeOrder,
		},
	}
}

func writeDemo(w io.Writer) error {
	registry, err := promo.NewStandardRegistry(promo.DefaultStandardConfig())
	if err != nil {
		return errors.Wrap(err, "build registry")
	}
	if registry.Len() == 0 {
		return promo.ErrEmptyRegistry
	}
	best := registry.BestStrategy()

	for _, s := range samples() {
		strategy, ok := registry.Lookup(s.strategy)
		if !ok {
			return &promo.UnknownStrategyError{Name: s.strategy}
		}
		for _, c := range []pricing.Customer{joe, ann} {
			fixed := pricing.NewContext(c, s.items, pricing.WithStrategy(strategy))
			chosen, err := registry.Best(fixed)
			if err != nil {
				return errors.Wrap(err, "select promo")
			}
			optimal := pricing.NewContext(c, s.items, pricing.WithStrategy(best))

			if _, err := fmt.Fprintf(w, "%-9s %-11s %-11s %s\n", c.Name, s.cart, s.strategy, fixed); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%-9s %-11s %-11s %s\n", c.Name, s.cart, "best:"+chosen.Name, optimal); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	if err := writeDemo(os.Stdout); err != nil {
		slog.Error("promo demo failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
