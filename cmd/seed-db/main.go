// Command seed-db creates the schema and loads the catalog, customers and a
// default API key.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promo/internal/domain/auth"
	"github.com/xenking/kart-promo/internal/domain/customer"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/storage/postgres"
)

type options struct {
	databaseURL   string
	productsFile  string
	customersFile string
	apiKey        string
	apiKeyPepper  string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&opts.customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or PROMO_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := readProducts(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "read products")
	}
	slog.Info("upserting products", slog.Int("count", len(products)))
	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	customers, err := readCustomers(opts.customersFile)
	if err != nil {
		return errors.Wrap(err, "read customers")
	}
	slog.Info("upserting customers", slog.Int("count", len(customers)))
	if err := postgres.NewCustomerRepository(pool).Upsert(ctx, customers); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	slog.Info("seeding default API key")
	if err := postgres.NewAPIKeyRepository(pool).Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashHex([]byte(opts.apiKeyPepper), opts.apiKey),
		Name:    "Default test key",
		Scopes:  []string{auth.ScopeQuote, auth.ScopeEvaluate},
	}); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

// readArray decodes a JSON array file, calling fn for each object field.
func readArray(path string, fn func(d *jx.Decoder, key string) error, done func()) error {
	slog.Info("reading seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read file")
	}
	return jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		if err := d.Obj(fn); err != nil {
			return err
		}
		done()
		return nil
	})
}

func readProducts(path string) ([]product.Product, error) {
	var (
		out []product.Product
		p   product.Product
	)
	err := readArray(path, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				p.Price, err = decimal.NewFromString(s)
			}
		default:
			err = d.Skip()
		}
		return err
	}, func() {
		out = append(out, p)
		p = product.Product{}
	})
	return out, err
}

func readCustomers(path string) ([]customer.Customer, error) {
	var (
		out []customer.Customer
		c   customer.Customer
	)
	err := readArray(path, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Str()
		case "name":
			c.Name, err = d.Str()
		case "fidelity":
			c.Fidelity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}, func() {
		out = append(out, c)
		c = customer.Customer{}
	})
	return out, err
}
