package pricing

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestLineItem_Total(t *testing.T) {
	item := LineItem{Product: "banana", Quantity: 4, Price: d("0.5")}
	assert.True(t, d("2").Equal(item.Total()), "got %s", item.Total())
}

func TestContext_Total(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		want  decimal.Decimal
	}{
		{
			name: "mixed cart",
			items: []LineItem{
				{Product: "banana", Quantity: 4, Price: d("0.5")},
				{Product: "apple", Quantity: 10, Price: d("1.5")},
				{Product: "watermelon", Quantity: 5, Price: d("5.0")},
			},
			want: d("42"),
		},
		{
			name: "cents are exact",
			items: []LineItem{
				{Product: "p1", Quantity: 3, Price: d("0.10")},
				{Product: "p2", Quantity: 1, Price: d("0.20")},
			},
			want: d("0.50"),
		},
		{
			name:  "empty cart",
			items: nil,
			want:  decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewContext(Customer{Name: "John Doe"}, tt.items)
			assert.True(t, tt.want.Equal(c.Total()), "expected %s, got %s", tt.want, c.Total())
		})
	}
}

func TestContext_TotalComputedOnce(t *testing.T) {
	c := NewContext(Customer{}, []LineItem{{Product: "p1", Quantity: 2, Price: d("1.25")}})
	assert.False(t, c.TotalComputed())

	first := c.Total()
	require.True(t, c.TotalComputed())

	// Poison the cached value: a recomputation would overwrite it.
	c.total = d("99")
	assert.True(t, d("99").Equal(c.Total()))
	assert.True(t, d("2.5").Equal(first))

	// Due reuses the cached total; a derived context keeps its own cache.
	assert.True(t, d("99").Equal(c.Due()))
	assert.False(t, c.Apply(nil).TotalComputed())
}

func TestContext_ItemsAreCopied(t *testing.T) {
	items := []LineItem{{Product: "p1", Quantity: 1, Price: d("10")}}
	c := NewContext(Customer{}, items)

	items[0].Quantity = 100
	assert.True(t, d("10").Equal(c.Total()))

	got := c.Items()
	got[0].Price = d("0")
	assert.True(t, d("10").Equal(c.Items()[0].Price))
}

func TestContext_DueWithoutStrategy(t *testing.T) {
	c := NewContext(Customer{Name: "Ann Smith", Fidelity: 1100}, []LineItem{
		{Product: "p1", Quantity: 3, Price: d("7.33")},
	})

	assert.Nil(t, c.Strategy())
	assert.True(t, c.Total().Equal(c.Due()))
	assert.True(t, decimal.Zero.Equal(c.Discount()))
}

func TestContext_DueWithStrategy(t *testing.T) {
	items := []LineItem{{Product: "p1", Quantity: 10, Price: d("10")}}
	fixed := func(amount string) Strategy {
		return func(*Context) decimal.Decimal { return d(amount) }
	}

	tests := []struct {
		name         string
		strategy     Strategy
		wantDiscount decimal.Decimal
		wantDue      decimal.Decimal
	}{
		{name: "plain discount", strategy: fixed("12.5"), wantDiscount: d("12.5"), wantDue: d("87.5")},
		{name: "zero discount", strategy: fixed("0"), wantDiscount: d("0"), wantDue: d("100")},
		{name: "discount above total is capped", strategy: fixed("250"), wantDiscount: d("100"), wantDue: d("0")},
		{name: "negative discount is floored", strategy: fixed("-5"), wantDiscount: d("0"), wantDue: d("100")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewContext(Customer{}, items, WithStrategy(tt.strategy))
			assert.True(t, tt.wantDiscount.Equal(c.Discount()), "discount %s", c.Discount())
			assert.True(t, tt.wantDue.Equal(c.Due()), "due %s", c.Due())
		})
	}
}

func TestContext_StrategySeesContext(t *testing.T) {
	var seen *Context
	s := func(c *Context) decimal.Decimal {
		seen = c
		return c.Total().Div(decimal.NewFromInt(10))
	}

	c := NewContext(Customer{Name: "Ann Smith"}, []LineItem{{Product: "p1", Quantity: 1, Price: d("40")}}, WithStrategy(s))
	assert.True(t, d("36").Equal(c.Due()))
	assert.Same(t, c, seen)
}

func TestContext_Apply(t *testing.T) {
	base := NewContext(Customer{Name: "Ann Smith"}, []LineItem{{Product: "p1", Quantity: 2, Price: d("5")}})
	half := func(c *Context) decimal.Decimal { return c.Total().Div(decimal.NewFromInt(2)) }

	applied := base.Apply(half)

	assert.Nil(t, base.Strategy())
	assert.True(t, d("10").Equal(base.Due()))
	assert.True(t, d("5").Equal(applied.Due()))
	assert.Equal(t, base.Customer(), applied.Customer())
}

func TestContext_DistinctProducts(t *testing.T) {
	c := NewContext(Customer{}, []LineItem{
		{Product: "a", Quantity: 1, Price: d("1")},
		{Product: "b", Quantity: 1, Price: d("1")},
		{Product: "a", Quantity: 3, Price: d("1")},
	})
	assert.Equal(t, 2, c.DistinctProducts())
	assert.Equal(t, 3, c.Len())
}

func TestContext_String(t *testing.T) {
	c := NewContext(Customer{Name: "John Doe"}, []LineItem{
		{Product: "banana", Quantity: 4, Price: d("0.5")},
		{Product: "apple", Quantity: 10, Price: d("1.5")},
		{Product: "watermelon", Quantity: 5, Price: d("5.0")},
	})
	assert.Equal(t, "<Order total: 42.00 due: 42.00>", c.String())
}

func TestContext_ConcurrentTotal(t *testing.T) {
	items := make([]LineItem, 0, 100)
	for range 100 {
		items = append(items, LineItem{Product: "p", Quantity: 1, Price: d("0.01")})
	}
	c := NewContext(Customer{}, items)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, d("1").Equal(c.Total()))
		}()
	}
	wg.Wait()
}

func TestClamp(t *testing.T) {
	assert.True(t, d("0").Equal(Clamp(d("-1"), d("10"))))
	assert.True(t, d("10").Equal(Clamp(d("11"), d("10"))))
	assert.True(t, d("3.3").Equal(Clamp(d("3.3"), d("10"))))
}
