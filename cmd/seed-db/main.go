package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/repository"
)

type catalogJSON struct {
	Business struct {
		Name     string          `json:"name"`
		Currency string          `json:"currency"`
		TaxRate  decimal.Decimal `json:"tax_rate"`
		Email    string          `json:"email"`
		Phone    string          `json:"phone"`
		Address  string          `json:"address"`
	} `json:"business"`
	Categories []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"categories"`
	Products []struct {
		ID       string          `json:"id"`
		Title    string          `json:"title"`
		Price    decimal.Decimal `json:"price"`
		Category string          `json:"category"`
		State    string          `json:"state"`
		Stock    int             `json:"stock"`
	} `json:"products"`
}

const (
	upsertBusinessSQL = `INSERT INTO business (id, name, currency, tax_rate, email, phone, address)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, currency = EXCLUDED.currency,
			tax_rate = EXCLUDED.tax_rate, email = EXCLUDED.email, phone = EXCLUDED.phone,
			address = EXCLUDED.address`

	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertProductSQL = `INSERT INTO products (id, title, price, state, is_active, category_id, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, price = EXCLUDED.price,
			state = EXCLUDED.state, is_active = EXCLUDED.is_active,
			category_id = EXCLUDED.category_id, stock = EXCLUDED.stock`
)

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
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

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, &catalog); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedPromos(ctx, promo.NewService(repository.NewPromoRepository(pool), nil)); err != nil {
		return errors.Wrap(err, "seed promos")
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, c *catalogJSON) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		b := c.Business
		if _, err := tx.Exec(ctx, upsertBusinessSQL, b.Name, b.Currency, b.TaxRate, b.Email, b.Phone, b.Address); err != nil {
			return errors.Wrap(err, "upsert business")
		}
		slog.Info("upserted business", slog.String("name", b.Name), slog.String("currency", b.Currency))

		for _, cat := range c.Categories {
			if _, err := tx.Exec(ctx, upsertCategorySQL, cat.ID, cat.Name); err != nil {
				return errors.Wrapf(err, "upsert category %s", cat.ID)
			}
		}
		slog.Info("upserted categories", slog.Int("count", len(c.Categories)))

		for _, p := range c.Products {
			state := product.State(p.State)
			if state == "" {
				state = product.StateActive
			}
			if _, err := tx.Exec(ctx, upsertProductSQL,
				p.ID, p.Title, p.Price, string(state), state == product.StateActive, p.Category, p.Stock,
			); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}
			slog.Info("upserted product", slog.String("id", p.ID), slog.String("title", p.Title))
		}
		return nil
	})
}

// demoPromos covers each rule the evaluator knows about.
func demoPromos() []promo.Patch {
	ten := 10
	one := 1
	return []promo.Patch{
		{
			Code:        promo.Some("SUMMER10"),
			Title:       promo.Some("Summer: 10% off everything"),
			Type:        promo.Some(promo.TypePercentage),
			Value:       promo.Some(decimal.NewFromInt(10)),
			AllProducts: promo.Some(true),
			ShowInHome:  promo.Some(true),
		},
		{
			Code:        promo.Some("MUGS20"),
			Title:       promo.Some("20% off mugs, up to 15"),
			Type:        promo.Some(promo.TypePercentage),
			Value:       promo.Some(decimal.NewFromInt(20)),
			MaxDiscount: promo.Some(decimal.NewFromInt(15)),
			CategoryIDs: promo.Some([]string{"mugs"}),
			ShowInHome:  promo.Some(true),
		},
		{
			Code:           promo.Some("HOODIE30"),
			Title:          promo.Some("30 off the hoodie"),
			Type:           promo.Some(promo.TypeFixed),
			Value:          promo.Some(decimal.NewFromInt(30)),
			MinOrderAmount: promo.Some(decimal.NewFromInt(100)),
			ProductIDs:     promo.Some([]string{"hoodie"}),
		},
		{
			Code:         promo.Some("VIP5"),
			Title:        promo.Some("5 off, once per customer"),
			Type:         promo.Some(promo.TypeFixed),
			Value:        promo.Some(decimal.NewFromInt(5)),
			AllProducts:  promo.Some(true),
			PerUserLimit: promo.Some(one),
		},
		{
			Code:        promo.Some("FIRST10"),
			Title:       promo.Some("First ten orders"),
			Type:        promo.Some(promo.TypeFixed),
			Value:       promo.Some(decimal.NewFromInt(10)),
			AllProducts: promo.Some(true),
			UsageLimit:  promo.Some(ten),
		},
	}
}

type promoCreator interface {
	Create(ctx context.Context, draft promo.Patch) (*promo.Promo, error)
}

func seedPromos(ctx context.Context, promos promoCreator) error {
	slog.Info("seeding demo promos")

	for _, draft := range demoPromos() {
		p, err := promos.Create(ctx, draft)
		switch {
		case errors.Is(err, promo.ErrCodeTaken):
			slog.Info("promo already exists", slog.String("code", draft.Code.Value))
		case err != nil:
			return errors.Wrapf(err, "create promo %s", draft.Code.Value)
		default:
			slog.Info("created promo", slog.String("code", p.Code), slog.String("title", p.Title))
		}
	}
	return nil
}
