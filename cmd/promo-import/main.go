package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/repository"
)

const (
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	batchSize     = 1_000
	maxFiles      = bits.UintSize
)

const insertPromoSQL = `INSERT INTO promos (id, code, title, type, value, usage_limit,
		all_products, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE, TRUE, $7, $7)
	ON CONFLICT (code) DO NOTHING`

// options configures one import run.
type options struct {
	dataDir     string
	databaseURL string
	minFiles    int
	capacity    uint
	minLen      int
	maxLen      int

	title      string
	promoType  promo.Type
	value      decimal.Decimal
	usageLimit int
}

// fileResult holds candidate codes found in a single file during pass 2.
type fileResult struct {
	candidates map[string]uint
}

func main() {
	var (
		opts      options
		promoType string
		value     string
	)

	flag.StringVar(&opts.dataDir, "data-dir", "data", "directory containing *.gz code lists")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.minFiles, "min-files", 2, "number of files a code must appear in")
	flag.UintVar(&opts.capacity, "bloom-capacity", 120_000_000, "expected codes per file")
	flag.IntVar(&opts.minLen, "min-len", 6, "shortest accepted code")
	flag.IntVar(&opts.maxLen, "max-len", 16, "longest accepted code")
	flag.StringVar(&opts.title, "title", "Imported promo", "title of created promos")
	flag.StringVar(&promoType, "type", string(promo.TypePercentage), "promo type: percentage or fixed")
	flag.StringVar(&value, "value", "10", "promo value")
	flag.IntVar(&opts.usageLimit, "usage-limit", 1, "uses per code, 0 for unlimited")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	opts.promoType = promo.Type(promoType)
	v, err := decimal.NewFromString(value)
	if err != nil {
		slog.Error("invalid --value", slog.String("error", err.Error()))
		os.Exit(1)
	}
	opts.value = v

	// Every generated promo must pass the same checks as an admin-created one.
	sample := promo.Promo{Code: "SAMPLE", Title: opts.title, Type: opts.promoType, Value: opts.value, AllProducts: true}
	if err := promo.Validate(&sample); err != nil {
		slog.Error("invalid promo rule", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("promo import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo import completed successfully")
}

func run(ctx context.Context, opts options) error {
	files, err := filepath.Glob(filepath.Join(opts.dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list files")
	}
	slices.Sort(files)
	if len(files) < opts.minFiles {
		return errors.Errorf("need at least %d files in %s, found %d", opts.minFiles, opts.dataDir, len(files))
	}
	if len(files) > maxFiles {
		return errors.Errorf("at most %d files are supported, found %d", maxFiles, len(files))
	}

	validCodes, err := collectCodes(ctx, files, opts)
	if err != nil {
		return err
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writePromos(ctx, pool, validCodes, opts); err != nil {
		return errors.Wrap(err, "write promos to database")
	}

	return nil
}

// collectCodes returns the uppercased codes that appear in at least
// opts.minFiles of the files.
func collectCodes(ctx context.Context, files []string, opts options) ([]string, error) {
	// Pass 1: Build bloom filters concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files, opts)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find candidate codes appearing in several files.
	slog.Info("pass 2: finding candidate codes")

	codes, err := findValidCodes(ctx, files, filters, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find valid codes")
	}
	return codes, nil
}

func (o options) accept(code string) bool {
	return len(code) >= o.minLen && len(code) <= o.maxLen
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string, opts options) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(opts.capacity, bloomFPR)
			var count uint64

			if err := streamGzFile(ctx, f, func(code string) {
				code = promo.NormalizeCode(code)
				if !opts.accept(code) {
					return
				}
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findValidCodes re-streams each file and keeps codes that at least
// minFiles-1 other filters may contain. Filters only over-approximate, so the
// exact count comes from merging the per-file bitmasks.
func findValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter, opts options) ([]string, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)
			var count uint64

			if err := streamGzFile(ctx, f, func(code string) {
				code = promo.NormalizeCode(code)
				if !opts.accept(code) {
					return
				}
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}

				others := 0
				for j, filter := range filters {
					if j != i && filter.TestString(code) {
						others++
					}
				}
				if others+1 >= opts.minFiles {
					candidates[code] |= fileBit
				}
			}); err != nil {
				return errors.Wrapf(err, "scan file %d for candidates", i+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("file", i+1),
				slog.Uint64("total_codes", count),
				slog.Int("candidates", len(candidates)),
			)
			results[i] = fileResult{candidates: candidates}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= opts.minFiles {
			valid = append(valid, code)
		}
	}
	slices.Sort(valid)

	return valid, nil
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

// writePromos inserts one promo per code in batches. Codes that already
// exist are left untouched.
func writePromos(ctx context.Context, pool *pgxpool.Pool, codes []string, opts options) error {
	slog.Info("writing promos to database", slog.Int("count", len(codes)))

	var usageLimit *int
	if opts.usageLimit > 0 {
		usageLimit = &opts.usageLimit
	}
	now := time.Now().UTC()

	var inserted int64
	for start := 0; start < len(codes); start += batchSize {
		chunk := codes[start:min(start+batchSize, len(codes))]

		batch := &pgx.Batch{}
		for _, code := range chunk {
			batch.Queue(insertPromoSQL,
				uuid.New().String(), code, opts.title, string(opts.promoType), opts.value, usageLimit, now,
			)
		}

		br := pool.SendBatch(ctx, batch)
		for _, code := range chunk {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return errors.Wrapf(err, "insert promo %s", code)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return errors.Wrap(err, "close batch")
		}

		slog.Info("write progress", slog.Int("written", start+len(chunk)), slog.Int("total", len(codes)))
	}

	slog.Info("promos inserted",
		slog.Int64("inserted", inserted),
		slog.Int64("skipped", int64(len(codes))-inserted),
	)
	return nil
}
