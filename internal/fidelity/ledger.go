// Package fidelity ingests loyalty point ledgers into customer balances.
//
// A ledger is a gzip-compressed text file with one "customer_id<TAB>points"
// entry per line. Points may be negative. Blank lines and lines starting
// with '#' are ignored.
package fidelity

import (
	"bufio"
	"context"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-promo/internal/domain/customer"
)

// ErrMalformedLine is returned by ParseLine for entries it cannot read.
var ErrMalformedLine = errors.New("malformed ledger line")

// ParseLine parses a single ledger entry.
func ParseLine(line string) (customer.FidelityDelta, error) {
	id, pts, ok := strings.Cut(line, "\t")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return customer.FidelityDelta{}, ErrMalformedLine
	}
	points, err := strconv.Atoi(strings.TrimSpace(pts))
	if err != nil {
		return customer.FidelityDelta{}, errors.Wrapf(ErrMalformedLine, "points %q", pts)
	}
	return customer.FidelityDelta{CustomerID: id, Points: points}, nil
}

// Filter answers whether a customer may exist. False positives are allowed,
// false negatives are not.
type Filter struct {
	bf *bloom.BloomFilter
}

// NewFilter indexes ids with the given false positive rate.
func NewFilter(ids []string, fpr float64) *Filter {
	bf := bloom.NewWithEstimates(uint(max(len(ids), 1)), fpr)
	for _, id := range ids {
		bf.AddString(id)
	}
	return &Filter{bf: bf}
}

// MayContain reports whether id may be a known customer.
func (f *Filter) MayContain(id string) bool {
	return f.bf.TestString(id)
}

// Stats counts what happened to ledger lines.
type Stats struct {
	Lines     uint64
	Applied   uint64
	Unknown   uint64
	Malformed uint64
}

func (s *Stats) add(o Stats) {
	atomic.AddUint64(&s.Lines, o.Lines)
	atomic.AddUint64(&s.Applied, o.Applied)
	atomic.AddUint64(&s.Unknown, o.Unknown)
	atomic.AddUint64(&s.Malformed, o.Malformed)
}

// ReadLedger sums the points per customer in r. Entries for customers the
// filter rules out are counted as unknown and dropped.
func ReadLedger(ctx context.Context, r io.Reader, f *Filter) (map[string]int, Stats, error) {
	var (
		totals = make(map[string]int)
		stats  Stats
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		stats.Lines++

		d, err := ParseLine(line)
		if err != nil {
			stats.Malformed++
			continue
		}
		if !f.MayContain(d.CustomerID) {
			stats.Unknown++
			continue
		}
		totals[d.CustomerID] += d.Points
		stats.Applied++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, errors.Wrap(err, "scan ledger")
	}
	return totals, stats, nil
}

// ReadGzipFile runs ReadLedger over a gzip-compressed file.
func ReadGzipFile(ctx context.Context, path string, f *Filter) (map[string]int, Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = file.Close() }()

	gz, err := pgzip.NewReader(file)
	if err != nil {
		return nil, Stats{}, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	totals, stats, err := ReadLedger(ctx, gz, f)
	if err != nil {
		return nil, stats, errors.Wrapf(err, "read %s", path)
	}
	return totals, stats, nil
}

// IngestFiles reads the ledgers with at most concurrency files in flight and
// merges their totals.
func IngestFiles(ctx context.Context, paths []string, f *Filter, concurrency int) (map[string]int, Stats, error) {
	perFile := make([]map[string]int, len(paths))
	var stats Stats

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			totals, s, err := ReadGzipFile(ctx, path, f)
			if err != nil {
				return err
			}
			perFile[i] = totals
			stats.add(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	merged := make(map[string]int)
	for _, totals := range perFile {
		for id, pts := range totals {
			merged[id] += pts
		}
	}
	return merged, stats, nil
}

// Deltas converts totals into deltas ordered by customer ID, dropping zero
// sums.
func Deltas(totals map[string]int) []customer.FidelityDelta {
	deltas := make([]customer.FidelityDelta, 0, len(totals))
	for id, pts := range totals {
		if pts == 0 {
			continue
		}
		deltas = append(deltas, customer.FidelityDelta{CustomerID: id, Points: pts})
	}
	slices.SortFunc(deltas, func(a, b customer.FidelityDelta) int {
		return strings.Compare(a.CustomerID, b.CustomerID)
	})
	return deltas
}

// Apply writes deltas to repo in chunks of batchSize. progress, when not
// nil, is called after each chunk with the number written so far.
func Apply(ctx context.Context, repo customer.Repository, deltas []customer.FidelityDelta, batchSize int, progress func(done int)) error {
	if batchSize <= 0 {
		return errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	done := 0
	for chunk := range slices.Chunk(deltas, batchSize) {
		if err := repo.AddFidelity(ctx, chunk); err != nil {
			return errors.Wrapf(err, "apply deltas %d..%d", done, done+len(chunk))
		}
		done += len(chunk)
		if progress != nil {
			progress(done)
		}
	}
	return nil
}
