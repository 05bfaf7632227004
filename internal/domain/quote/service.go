package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-promo/internal/domain/customer"
	"github.com/xenking/kart-promo/internal/domain/pricing"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/domain/promo"
)

// Sentinel errors for quote validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Unwrap lets callers match ErrInvalidQuantity.
func (e *InvalidQuantityError) Unwrap() error {
	return ErrInvalidQuantity
}

// Request holds the input for quoting a cart. An empty Strategy selects the
// best registered strategy; an empty CustomerID prices for an anonymous
// customer.
type Request struct {
	CustomerID string
	Items      []Item
	Strategy   string
}

// Result holds a persisted quote and the products it was priced from.
type Result struct {
	Quote    *Quote
	Products []product.Product
}

// Option configures a Service.
type Option func(s *Service)

// WithMeterProvider records quote metrics on mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meterProvider = mp
	}
}

// WithBatchLimit bounds the number of quotes QuoteBatch prices concurrently.
// Non-positive values keep the default.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchLimit = n
		}
	}
}

// Service encapsulates quoting business logic.
type Service struct {
	products  product.Repository
	customers customer.Repository
	registry  *promo.Registry
	quotes    Repository

	meterProvider metric.MeterProvider
	batchLimit    int
	now           func() time.Time

	quoteCount metric.Int64Counter
	discounts  metric.Float64Histogram
}

// NewService creates a quote Service with the required domain dependencies.
func NewService(
	products product.Repository,
	customers customer.Repository,
	registry *promo.Registry,
	quotes Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products:      products,
		customers:     customers,
		registry:      registry,
		quotes:        quotes,
		meterProvider: noop.NewMeterProvider(),
		batchLimit:    8,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meterProvider.Meter("github.com/xenking/kart-promo/internal/domain/quote")

	var err error
	if s.quoteCount, err = meter.Int64Counter("promo.quotes",
		metric.WithDescription("Number of issued quotes by applied strategy"),
	); err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	if s.discounts, err = meter.Float64Histogram("promo.discount",
		metric.WithDescription("Discount granted per quote"),
		metric.WithUnit("{currency}"),
	); err != nil {
		return nil, errors.Wrap(err, "create discount histogram")
	}

	return s, nil
}

// Quote validates items, fetches products and the customer, selects the
// discount, persists the quote and returns the result.
func (s *Service) Quote(ctx context.Context, req Request) (*Result, error) {
	pc, products, err := s.buildContext(ctx, req)
	if err != nil {
		return nil, err
	}

	// Apply the requested strategy, or the best one.
	var selection promo.Selection
	if req.Strategy != "" {
		strategy, ok := s.registry.Lookup(req.Strategy)
		if !ok {
			return nil, &promo.UnknownStrategyError{Name: req.Strategy}
		}
		selection = promo.Selection{
			Name:   req.Strategy,
			Amount: pc.Apply(strategy).Discount(),
		}
	} else {
		selection, err = s.registry.Best(pc)
		if err != nil {
			return nil, errors.Wrap(err, "select promo")
		}
	}

	// Round only once the discount is chosen. Rounding is monotonic and the
	// discount never exceeds the total, so due stays non-negative.
	total := pc.Total().Round(2)
	discount := selection.Amount.Round(2)

	q := &Quote{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Items:      req.Items,
		Total:      total,
		Discount:   discount,
		Due:        total.Sub(discount),
		Strategy:   selection.Name,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.quotes.Create(ctx, q); err != nil {
		return nil, errors.Wrap(err, "create quote")
	}

	attrs := metric.WithAttributes(attribute.String("strategy", q.Strategy))
	s.quoteCount.Add(ctx, 1, attrs)
	s.discounts.Record(ctx, q.Discount.InexactFloat64(), attrs)

	return &Result{
		Quote:    q,
		Products: products,
	}, nil
}

// Evaluate returns the discount every registered strategy grants the cart,
// without persisting anything.
func (s *Service) Evaluate(ctx context.Context, req Request) ([]promo.Selection, error) {
	pc, _, err := s.buildContext(ctx, req)
	if err != nil {
		return nil, err
	}

	all, err := s.registry.Evaluate(pc)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate promos")
	}
	for i := range all {
		all[i].Amount = all[i].Amount.Round(2)
	}
	return all, nil
}

// QuoteBatch quotes every request concurrently. Results are returned in
// request order; the first failure cancels the remaining quotes.
func (s *Service) QuoteBatch(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchLimit)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Quote(ctx, req)
			if err != nil {
				return errors.Wrapf(err, "quote %d", i)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// buildContext validates the request and assembles its pricing context.
func (s *Service) buildContext(ctx context.Context, req Request) (*pricing.Context, []product.Product, error) {
	if len(req.Items) == 0 {
		return nil, nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	products := make([]product.Product, 0, len(req.Items))
	lines := make([]pricing.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)
		lines = append(lines, pricing.LineItem{
			Product:  p.ID,
			Quantity: item.Quantity,
			Price:    p.Price,
		})
	}

	buyer := customer.Anonymous
	if req.CustomerID != "" {
		c, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "get customer %s", req.CustomerID)
		}
		buyer = *c
	}

	return pricing.NewContext(buyer.Pricing(), lines), products, nil
}
