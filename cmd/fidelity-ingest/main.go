// Command fidelity-ingest applies gzip-compressed loyalty ledgers to
// customer fidelity balances.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-promo/internal/fidelity"
	"github.com/xenking/kart-promo/internal/storage/postgres"
)

const bloomFPR = 0.001

func main() {
	var (
		pattern     string
		databaseURL string
		batchSize   int
		concurrency int
		dryRun      bool
	)

	flag.StringVar(&pattern, "ledgers", "data/ledger*.tsv.gz", "glob matching gzip-compressed ledger files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "customers updated per transaction")
	flag.IntVar(&concurrency, "concurrency", runtime.GOMAXPROCS(0), "ledger files read in parallel")
	flag.BoolVar(&dryRun, "dry-run", false, "aggregate ledgers without writing balances")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, batchSize, concurrency, dryRun); err != nil {
		slog.Error("fidelity ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("fidelity ingest completed successfully")
}

func run(ctx context.Context, pattern, databaseURL string, batchSize, concurrency int, dryRun bool) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match ledger files")
	}
	if len(files) == 0 {
		return errors.Errorf("no ledger files match %q", pattern)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	customers := postgres.NewCustomerRepository(pool)

	ids, err := customers.ListIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "list customers")
	}
	slog.Info("building customer filter", slog.Int("customers", len(ids)))
	filter := fidelity.NewFilter(ids, bloomFPR)

	slog.Info("reading ledgers", slog.Int("files", len(files)), slog.Int("concurrency", concurrency))

	totals, stats, err := fidelity.IngestFiles(ctx, files, filter, concurrency)
	if err != nil {
		return errors.Wrap(err, "read ledgers")
	}

	deltas := fidelity.Deltas(totals)
	slog.Info("ledgers aggregated",
		slog.Uint64("lines", stats.Lines),
		slog.Uint64("applied", stats.Applied),
		slog.Uint64("unknown_customers", stats.Unknown),
		slog.Uint64("malformed", stats.Malformed),
		slog.Int("customers", len(deltas)),
	)

	if dryRun || len(deltas) == 0 {
		slog.Info("nothing written", slog.Bool("dry_run", dryRun))
		return nil
	}

	return fidelity.Apply(ctx, customers, deltas, batchSize, func(done int) {
		slog.Info("write progress", slog.Int("written", done), slog.Int("total", len(deltas)))
	})
}
