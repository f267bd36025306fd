// Command coupon-ingest bulk-loads promotional coupon codes into the
// coupon store. It streams gzipped line-oriented code files, keeps only
// codes that appear in at least two source files (cross-checked with
// per-file bloom filters to avoid holding every code in memory), and
// registers each surviving code with its discount rule.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"coupon-management-api/internal/coupon"
	"coupon-management-api/internal/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// codeRule describes the discount rule registered for a known code.
type codeRule struct {
	discountType coupon.DiscountType
	value        string
	maxDiscount  string
	description  string
}

var codeRules = map[string]codeRule{
	"FIFTYOFF": {discountType: coupon.DiscountPercent, value: "50", description: "50% off entire order"},
	"SIXTYOFF": {discountType: coupon.DiscountPercent, value: "60", description: "60% off entire order"},
	"HAPPYHRS": {discountType: coupon.DiscountPercent, value: "18", description: "Happy Hours: 18% off"},
	"GNULINUX": {discountType: coupon.DiscountPercent, value: "15", description: "Open source discount: 15% off"},
	"OVER9000": {discountType: coupon.DiscountFlat, value: "9", description: "$9 off your order"},
}

var defaultRule = codeRule{
	discountType: coupon.DiscountPercent,
	value:        "10",
	maxDiscount:  "20",
	description:  "Valid promo code: 10% off",
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]struct{}
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) < 2 {
		slog.Error("at least two code files are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, files []string, databaseURL string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))
	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding candidate codes")
	validCodes, err := findValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))
	if len(validCodes) == 0 {
		slog.Info("no valid codes to register")
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	return registerCoupons(ctx, postgres.NewStore(pool), validCodes)
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("file", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_codes", count),
		)
		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each file and checks codes against the OTHER
// files' bloom filters. A code is valid when it appears in two or more
// files.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-file bitmasks and keep codes seen in 2+ files.
	merged := make(map[string]uint)
	for i, r := range results {
		fileBit := uint(1) << uint(i)
		for code := range r.candidates {
			merged[code] |= fileBit
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}
	return valid, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		candidates := make(map[string]struct{})

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}
			// Keep the code if any OTHER file's filter may contain it.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] = struct{}{}
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Int("candidates", len(candidates)),
		)
		results[idx] = fileResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// registerCoupons adds every valid code through the repository. Codes that
// already exist are skipped, so the ingest is safe to re-run.
func registerCoupons(ctx context.Context, repo coupon.Repository, codes []string) error {
	slog.Info("registering coupons", slog.Int("count", len(codes)))

	registered := 0
	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}

		c := &coupon.Coupon{
			Code:          code,
			Description:   rule.description,
			DiscountType:  rule.discountType,
			DiscountValue: decimal.RequireFromString(rule.value),
		}
		if rule.maxDiscount != "" {
			limit := decimal.RequireFromString(rule.maxDiscount)
			c.MaxDiscountAmount = &limit
		}

		inserted, err := repo.Add(ctx, c)
		if err != nil {
			return errors.Wrapf(err, "register coupon %s", code)
		}
		if inserted {
			registered++
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("register progress", slog.Int("processed", i+1), slog.Int("total", len(codes)))
		}
	}

	slog.Info("registration done", slog.Int("new", registered), slog.Int("skipped", len(codes)-registered))
	return nil
}
