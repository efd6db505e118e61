package features

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
)

type memPromos map[string]*promo.Promo

func (m memPromos) FindByCode(_ context.Context, code string) (*promo.Promo, error) {
	p, ok := m[code]
	if !ok {
		return nil, promo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type memCatalog map[string]product.Product

func (m memCatalog) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memOrders map[string]int

func (m memOrders) CountByUserAndPromoCode(_ context.Context, userID int64, code string) (int, error) {
	return m[fmt.Sprintf("%d/%s", userID, code)], nil
}

type promoTestContext struct {
	promos  memPromos
	catalog memCatalog
	orders  memOrders
	result  promo.Result
	err     error
}

func (c *promoTestContext) reset() {
	c.promos = memPromos{}
	c.catalog = memCatalog{}
	c.orders = memOrders{}
	c.result = promo.Result{}
	c.err = nil
}

func (c *promoTestContext) theCatalogHasProduct(id, price, category string) error {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	c.catalog[id] = product.Product{
		ID:         id,
		Title:      id,
		Price:      d,
		State:      product.StateActive,
		IsActive:   true,
		CategoryID: category,
	}
	return nil
}

func (c *promoTestContext) aPromo(typ, code string, value int) error {
	c.promos[code] = &promo.Promo{
		ID:          "id-" + code,
		Code:        code,
		Title:       code,
		Type:        promo.Type(typ),
		Value:       decimal.NewFromInt(int64(value)),
		IsActive:    true,
		AllProducts: true,
	}
	return nil
}

func (c *promoTestContext) lookup(code string) (*promo.Promo, error) {
	p, ok := c.promos[code]
	if !ok {
		return nil, fmt.Errorf("promo %q is not defined", code)
	}
	return p, nil
}

func (c *promoTestContext) promoIsCappedAt(code string, limit int) error {
	p, err := c.lookup(code)
	if err != nil {
		return err
	}
	v := decimal.NewFromInt(int64(limit))
	p.MaxDiscount = &v
	return nil
}

func (c *promoTestContext) promoEndedYesterday(code string) error {
	p, err := c.lookup(code)
	if err != nil {
		return err
	}
	end := time.Now().Add(-24 * time.Hour)
	p.EndDate = &end
	return nil
}

func (c *promoTestContext) promoAllowsUsesPerUser(code string, limit int) error {
	p, err := c.lookup(code)
	if err != nil {
		return err
	}
	p.PerUserLimit = &limit
	return nil
}

func (c *promoTestContext) promoOnlyAppliesToCategory(code, category string) error {
	p, err := c.lookup(code)
	if err != nil {
		return err
	}
	p.AllProducts = false
	p.CategoryIDs = []string{category}
	return nil
}

func (c *promoTestContext) promoRequiresMinimum(code, amount string) error {
	p, err := c.lookup(code)
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	p.MinOrderAmount = &d
	return nil
}

func (c *promoTestContext) userAlreadyPlacedOrders(userID int64, count int, code string) error {
	c.orders[fmt.Sprintf("%d/%s", userID, code)] = count
	return nil
}

func (c *promoTestContext) evaluate(userID *int64, code string, qty int, productID string) error {
	p, ok := c.catalog[productID]
	if !ok {
		return fmt.Errorf("product %q is not in the catalog", productID)
	}
	e := promo.NewEvaluator(promo.DefaultConfig(), c.promos, c.catalog, c.orders)
	c.result, c.err = e.Evaluate(context.Background(), promo.Request{
		Code:     code,
		Items:    []promo.Item{{ProductID: productID, Quantity: qty}},
		Subtotal: p.Price.Mul(decimal.NewFromInt(int64(qty))),
		UserID:   userID,
	})
	return nil
}

func (c *promoTestContext) iEvaluateCode(code string, qty int, productID string) error {
	return c.evaluate(nil, code, qty, productID)
}

func (c *promoTestContext) userEvaluatesCode(userID int64, code string, qty int, productID string) error {
	return c.evaluate(&userID, code, qty, productID)
}

func (c *promoTestContext) theDiscountIs(amount string) error {
	if c.err != nil {
		return fmt.Errorf("expected discount but got error: %v", c.err)
	}
	want, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	if !c.result.Discount.Equal(want) {
		return fmt.Errorf("expected discount %s, got %s", want, c.result.Discount)
	}
	return nil
}

func (c *promoTestContext) theFinalTotalIs(amount string) error {
	want, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	if !c.result.FinalTotal.Equal(want) {
		return fmt.Errorf("expected final total %s, got %s", want, c.result.FinalTotal)
	}
	return nil
}

func (c *promoTestContext) theEvaluationFailsWith(kind string) error {
	if c.err == nil {
		return errors.New("expected evaluation to fail")
	}
	pe, ok := promo.AsError(c.err)
	if !ok {
		return fmt.Errorf("expected promo error, got %v", c.err)
	}
	if string(pe.Kind) != kind {
		return fmt.Errorf("expected kind %q, got %q", kind, pe.Kind)
	}
	if !c.result.Discount.IsZero() {
		return fmt.Errorf("expected zero discount on failure, got %s", c.result.Discount)
	}
	return nil
}

func (c *promoTestContext) theErrorMentions(s string) error {
	if c.err == nil || !strings.Contains(c.err.Error(), s) {
		return fmt.Errorf("expected error mentioning %q, got %v", s, c.err)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &promoTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the catalog has product "([^"]*)" priced ([\d.]+) in category "([^"]*)"$`, tc.theCatalogHasProduct)
	ctx.Step(`^a (percentage|fixed) promo "([^"]*)" of (\d+)$`, tc.aPromo)
	ctx.Step(`^promo "([^"]*)" is capped at (\d+)$`, tc.promoIsCappedAt)
	ctx.Step(`^promo "([^"]*)" ended yesterday$`, tc.promoEndedYesterday)
	ctx.Step(`^promo "([^"]*)" allows (\d+) uses? per user$`, tc.promoAllowsUsesPerUser)
	ctx.Step(`^promo "([^"]*)" only applies to category "([^"]*)"$`, tc.promoOnlyAppliesToCategory)
	ctx.Step(`^promo "([^"]*)" requires a minimum order of ([\d.]+)$`, tc.promoRequiresMinimum)
	ctx.Step(`^user (\d+) already placed (\d+) orders? with "([^"]*)"$`, tc.userAlreadyPlacedOrders)

	// When steps
	ctx.Step(`^I evaluate code "([^"]*)" for (\d+) of "([^"]*)"$`, tc.iEvaluateCode)
	ctx.Step(`^user (\d+) evaluates code "([^"]*)" for (\d+) of "([^"]*)"$`, tc.userEvaluatesCode)

	// Then steps
	ctx.Step(`^the discount is ([\d.]+)$`, tc.theDiscountIs)
	ctx.Step(`^the final total is ([\d.]+)$`, tc.theFinalTotalIs)
	ctx.Step(`^the evaluation fails with "([^"]*)"$`, tc.theEvaluationFailsWith)
	ctx.Step(`^the error mentions "([^"]*)"$`, tc.theErrorMentions)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"promo.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
