package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-promo/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, name, fidelity FROM customers WHERE id = $1`

	listCustomerIDsSQL = `SELECT id FROM customers ORDER BY id`

	upsertCustomerSQL = `INSERT INTO customers (id, name, fidelity)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, fidelity = EXCLUDED.fidelity, updated_at = now()`

	// Balances never drop below zero.
	addFidelitySQL = `UPDATE customers
	SET fidelity = GREATEST(fidelity + $2, 0), updated_at = now()
	WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns a customer, or customer.ErrNotFound.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %q", id)
	}
	return &c, nil
}

// ListIDs returns every customer ID.
func (r *CustomerRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCustomerIDsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list customer ids")
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Upsert inserts the customers or overwrites their name and balance.
func (r *CustomerRepository) Upsert(ctx context.Context, customers []customer.Customer) error {
	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(upsertCustomerSQL, c.ID, c.Name, c.Fidelity)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert customers")
	}
	return nil
}

// AddFidelity applies the point deltas in a single transaction. Deltas for
// unknown customers are ignored.
func (r *CustomerRepository) AddFidelity(ctx context.Context, deltas []customer.FidelityDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range deltas {
			batch.Queue(addFidelitySQL, d.CustomerID, d.Points)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return errors.Wrapf(err, "add fidelity for %d customers", len(deltas))
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Fidelity)
	return c, err
}
