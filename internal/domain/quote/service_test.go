package quote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-promo/internal/domain/customer"
	"github.com/xenking/kart-promo/internal/domain/pricing"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/domain/promo"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCustomerRepo struct {
	byID map[string]customer.Customer
}

func (m *mockCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (m *mockCustomerRepo) ListIDs(_ context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockCustomerRepo) AddFidelity(_ context.Context, _ []customer.FidelityDelta) error {
	return nil
}

type mockQuoteRepo struct {
	mu      sync.Mutex
	created []*Quote
	err     error
}

func (m *mockQuoteRepo) Create(_ context.Context, q *Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, q)
	return m.err
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockProductRepo{byID: byID}
}

func newCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{byID: map[string]customer.Customer{
		"joe": {ID: "joe", Name: "John Doe", Fidelity: 0},
		"ann": {ID: "ann", Name: "Ann Smith", Fidelity: 1100},
	}}
}

func catalog() *mockProductRepo {
	return newProductRepo(
		product.Product{ID: "banana", Name: "Banana", Price: d("0.50"), Category: "fruit"},
		product.Product{ID: "apple", Name: "Apple", Price: d("1.50"), Category: "fruit"},
		product.Product{ID: "watermelon", Name: "Watermelon", Price: d("5.00"), Category: "fruit"},
	)
}

func standardRegistry(t *testing.T) *promo.Registry {
	t.Helper()
	r, err := promo.NewStandardRegistry(promo.DefaultStandardConfig())
	require.NoError(t, err)
	return r
}

func newService(t *testing.T, products product.Repository, r *promo.Registry, quotes Repository) *Service {
	t.Helper()
	svc, err := NewService(products, newCustomerRepo(), r, quotes)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

var fruitCart = []Item{
	{ProductID: "banana", Quantity: 4},
	{ProductID: "apple", Quantity: 10},
	{ProductID: "watermelon", Quantity: 5},
}

// --- Tests ---

func TestQuote_EmptyItems(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	_, err := svc.Quote(context.Background(), Request{})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestQuote_InvalidQuantity(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	_, err := svc.Quote(context.Background(), Request{
		Items: []Item{{ProductID: "apple", Quantity: 0}},
	})

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "apple", iqErr.ProductID)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestQuote_ProductNotFound(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	_, err := svc.Quote(context.Background(), Request{
		Items: []Item{{ProductID: "missing", Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestQuote_ProductLookupError(t *testing.T) {
	repo := catalog()
	repo.getErr = errors.New("db down")
	svc := newService(t, repo, standardRegistry(t), &mockQuoteRepo{})

	_, err := svc.Quote(context.Background(), Request{Items: fruitCart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}

func TestQuote_CustomerNotFound(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	_, err := svc.Quote(context.Background(), Request{CustomerID: "ghost", Items: fruitCart})
	require.ErrorIs(t, err, customer.ErrNotFound)
}

func TestQuote_BestStrategy(t *testing.T) {
	tests := []struct {
		name         string
		customerID   string
		items        []Item
		wantTotal    string
		wantDiscount string
		wantDue      string
		wantStrategy string
	}{
		{
			name:         "anonymous customer earns nothing",
			items:        fruitCart,
			wantTotal:    "42.00",
			wantDiscount: "0",
			wantDue:      "42.00",
			wantStrategy: promo.NameFidelity,
		},
		{
			name:         "loyal customer gets fidelity discount",
			customerID:   "ann",
			items:        fruitCart,
			wantTotal:    "42.00",
			wantDiscount: "2.10",
			wantDue:      "39.90",
			wantStrategy: promo.NameFidelity,
		},
		{
			name:       "bulk line beats nothing",
			customerID: "joe",
			items: []Item{
				{ProductID: "banana", Quantity: 30},
				{ProductID: "apple", Quantity: 10},
			},
			wantTotal:    "30.00",
			wantDiscount: "1.50",
			wantDue:      "28.50",
			wantStrategy: promo.NameBulkItem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes := &mockQuoteRepo{}
			svc := newService(t, catalog(), standardRegistry(t), quotes)

			res, err := svc.Quote(context.Background(), Request{CustomerID: tt.customerID, Items: tt.items})
			require.NoError(t, err)

			q := res.Quote
			assert.True(t, d(tt.wantTotal).Equal(q.Total), "total %s", q.Total)
			assert.True(t, d(tt.wantDiscount).Equal(q.Discount), "discount %s", q.Discount)
			assert.True(t, d(tt.wantDue).Equal(q.Due), "due %s", q.Due)
			assert.Equal(t, tt.wantStrategy, q.Strategy)
			assert.Equal(t, tt.customerID, q.CustomerID)
			assert.NotEmpty(t, q.ID)
			assert.Len(t, res.Products, len(tt.items))

			require.Len(t, quotes.created, 1)
			assert.Same(t, q, quotes.created[0])
		})
	}
}

func TestQuote_NamedStrategy(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	// Ann earns fidelity, but the caller asks for bulk explicitly.
	res, err := svc.Quote(context.Background(), Request{
		CustomerID: "ann",
		Items:      fruitCart,
		Strategy:   promo.NameBulkItem,
	})
	require.NoError(t, err)
	assert.Equal(t, promo.NameBulkItem, res.Quote.Strategy)
	assert.True(t, decimal.Zero.Equal(res.Quote.Discount))
	assert.True(t, d("42.00").Equal(res.Quote.Due))
}

func TestQuote_UnknownStrategy(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	_, err := svc.Quote(context.Background(), Request{Items: fruitCart, Strategy: "nope"})

	var unkErr *promo.UnknownStrategyError
	require.ErrorAs(t, err, &unkErr)
	assert.Equal(t, "nope", unkErr.Name)
}

func TestQuote_EmptyRegistry(t *testing.T) {
	quotes := &mockQuoteRepo{}
	svc := newService(t, catalog(), promo.NewRegistry(), quotes)

	_, err := svc.Quote(context.Background(), Request{Items: fruitCart})
	require.ErrorIs(t, err, promo.ErrEmptyRegistry)
	assert.Empty(t, quotes.created)
}

func TestQuote_RoundsToCents(t *testing.T) {
	products := newProductRepo(product.Product{ID: "p1", Price: d("0.333")})
	r := promo.NewRegistry()
	r.MustRegister("third", func(c *pricing.Context) decimal.Decimal {
		return c.Total().Div(decimal.NewFromInt(3))
	})
	svc := newService(t, products, r, &mockQuoteRepo{})

	res, err := svc.Quote(context.Background(), Request{Items: []Item{{ProductID: "p1", Quantity: 3}}})
	require.NoError(t, err)

	// total 0.999 -> 1.00, discount 0.333 -> 0.33
	assert.True(t, d("1.00").Equal(res.Quote.Total), "total %s", res.Quote.Total)
	assert.True(t, d("0.33").Equal(res.Quote.Discount), "discount %s", res.Quote.Discount)
	assert.True(t, d("0.67").Equal(res.Quote.Due), "due %s", res.Quote.Due)
}

func TestQuote_CreateError(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{err: errors.New("db write failed")})

	_, err := svc.Quote(context.Background(), Request{Items: fruitCart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create quote")
}

func TestEvaluate(t *testing.T) {
	quotes := &mockQuoteRepo{}
	svc := newService(t, catalog(), standardRegistry(t), quotes)

	all, err := svc.Evaluate(context.Background(), Request{CustomerID: "ann", Items: fruitCart})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, promo.NameFidelity, all[0].Name)
	assert.True(t, d("2.10").Equal(all[0].Amount))
	assert.Empty(t, quotes.created, "evaluate must not persist")
}

func TestQuoteBatch(t *testing.T) {
	quotes := &mockQuoteRepo{}
	svc := newService(t, catalog(), standardRegistry(t), quotes)

	reqs := make([]Request, 20)
	for i := range reqs {
		reqs[i] = Request{Items: []Item{{ProductID: "apple", Quantity: i + 1}}}
	}

	results, err := svc.QuoteBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))
	for i, res := range results {
		want := d("1.50").Mul(decimal.NewFromInt(int64(i + 1)))
		assert.True(t, want.Equal(res.Quote.Total), "quote %d: total %s", i, res.Quote.Total)
	}
	assert.Len(t, quotes.created, len(reqs))
}

func TestQuoteBatch_FailsOnFirstError(t *testing.T) {
	svc := newService(t, catalog(), standardRegistry(t), &mockQuoteRepo{})

	reqs := []Request{
		{Items: fruitCart},
		{Items: []Item{{ProductID: "missing", Quantity: 1}}},
	}

	_, err := svc.QuoteBatch(context.Background(), reqs)

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Contains(t, err.Error(), "quote 1")
}

func TestWithBatchLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"positive", 3, 3},
		{"zero keeps default", 0, 8},
		{"negative keeps default", -1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(catalog(), newCustomerRepo(), standardRegistry(t), &mockQuoteRepo{},
				WithBatchLimit(tt.limit),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.want, svc.batchLimit)

			done := make(chan error, 1)
			go func() {
				_, err := svc.QuoteBatch(context.Background(), []Request{{Items: fruitCart}, {Items: fruitCart}})
				done <- err
			}()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("QuoteBatch did not finish")
			}
		})
	}
}
