package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-promo/internal/domain/quote"
)

const createQuoteSQL = `INSERT INTO quotes (id, customer_id, items, total, discount, due, strategy, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

var _ quote.Repository = (*QuoteRepository)(nil)

// QuoteRepository implements quote.Repository backed by PostgreSQL.
type QuoteRepository struct {
	pool *pgxpool.Pool
}

// NewQuoteRepository returns a QuoteRepository that uses the given pool.
func NewQuoteRepository(pool *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{pool: pool}
}

// Create persists a quote. Items are stored in a JSONB column.
func (r *QuoteRepository) Create(ctx context.Context, q *quote.Quote) error {
	items, err := json.Marshal(q.Items)
	if err != nil {
		return errors.Wrap(err, "marshal quote items")
	}

	_, err = r.pool.Exec(ctx, createQuoteSQL,
		q.ID, nullable(q.CustomerID), items, q.Total, q.Discount, q.Due, q.Strategy, q.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create quote %q", q.ID)
	}
	return nil
}
