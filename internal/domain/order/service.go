package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/domain/sale"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems            = errors.New("items required")
	ErrPaymentMethodRequired = errors.New("payment method required")
)

// Evaluator computes the promo discount for an order.
type Evaluator interface {
	Evaluate(ctx context.Context, req promo.Request) (promo.Result, error)
}

// PromoUsage confirms and releases promo uses.
type PromoUsage interface {
	IncrementUsage(ctx context.Context, id string) error
	DecrementUsage(ctx context.Context, id string) error
}

// ProfileUpdater writes buyer contact details to the user profile.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) error
}

// CartClearer empties a user's cart.
type CartClearer interface {
	Clear(ctx context.Context, userID int64) error
}

// Notifier delivers the order confirmation.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order, c Customer) error
}

// SaleRecorder books the order as a web sale.
type SaleRecorder interface {
	Record(ctx context.Context, in sale.Input) (*sale.Sale, error)
}

// TaskQueue runs side effects outside the request. Tasks keep the values of
// ctx but not its cancellation. Enqueue reports false when the task was
// dropped.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, task func(ctx context.Context) error) bool
}

// Task names used for post-order side effects.
const (
	TaskNotify     = "order.notify"
	TaskRecordSale = "order.record_sale"
)

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	// UserID links the order to an account when it parses as an integer.
	UserID        string
	Items         []Item
	PaymentMethod string
	Customer      Customer
	PromoCode     string
}

// CreateResult holds the output of a successfully created order.
type CreateResult struct {
	Order    *Order
	OrderID  string
	Total    decimal.Decimal
	Discount decimal.Decimal
}

// Deps are the collaborators of Service. Profiles, Carts, Notifier and Sales
// are optional.
type Deps struct {
	Products  product.Repository
	Orders    Repository
	Evaluator Evaluator
	Usage     PromoUsage
	Profiles  ProfileUpdater
	Carts     CartClearer
	Notifier  Notifier
	Sales     SaleRecorder
	Tasks     TaskQueue

	Tracer trace.Tracer
	Meter  metric.Meter
}

// Service encapsulates order creation.
type Service struct {
	deps Deps
	now  func() time.Time

	created   metric.Int64Counter
	discounts metric.Float64Counter
	dropped   metric.Int64Counter
}

// NewService creates an order Service.
func NewService(deps Deps) (*Service, error) {
	s := &Service{deps: deps, now: time.Now}

	var err error
	if s.created, err = deps.Meter.Int64Counter("orders.created",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.created")
	}
	if s.discounts, err = deps.Meter.Float64Counter("orders.discount",
		metric.WithDescription("Total promo discount granted"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.discount")
	}
	if s.dropped, err = deps.Meter.Int64Counter("orders.side_effects.dropped",
		metric.WithDescription("Post-order tasks rejected by a full queue"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.side_effects.dropped")
	}
	return s, nil
}

// CreateOrder snapshots the requested products, applies the promo, persists
// the order and schedules its side effects.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (_ *CreateResult, rerr error) {
	ctx, span := s.deps.Tracer.Start(ctx, "order.Create")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}

	fetched, err := s.deps.Products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	productMap := product.Index(fetched)

	// Snapshot live prices; unknown products are dropped.
	items := make([]SnapshotItem, 0, len(req.Items))
	promoItems := make([]promo.Item, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			continue
		}
		qty := max(1, item.Quantity)
		items = append(items, SnapshotItem{
			ID:       p.ID,
			Title:    p.Title,
			Price:    p.Price,
			Quantity: qty,
		})
		promoItems = append(promoItems, promo.Item{ProductID: p.ID, Quantity: qty})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	subtotal = subtotal.Round(2)

	var userID *int64
	if id, err := strconv.ParseInt(req.UserID, 10, 64); err == nil {
		userID = &id
	}

	applied := promo.Result{Discount: decimal.Zero, FinalTotal: subtotal}
	if strings.TrimSpace(req.PromoCode) != "" {
		applied, err = s.deps.Evaluator.Evaluate(ctx, promo.Request{
			Code:     req.PromoCode,
			Items:    promoItems,
			Subtotal: subtotal,
			UserID:   userID,
		})
		if err != nil {
			if _, ok := promo.AsError(err); ok {
				return nil, err
			}
			return nil, fmt.Errorf("evaluate promo: %w", err)
		}
	}

	if applied.Applied {
		if err := s.deps.Usage.IncrementUsage(ctx, applied.PromoID); err != nil {
			if errors.Is(err, promo.ErrUsageLimitReached) {
				return nil, promo.ErrUsageLimitReached
			}
			return nil, fmt.Errorf("confirm promo usage: %w", err)
		}
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Items:         items,
		Subtotal:      subtotal,
		Discount:      applied.Discount,
		Total:         applied.FinalTotal,
		PaymentMethod: paymentMethod,
		PromoCode:     applied.Code,
		BuyerEmail:    req.Customer.Email,
		BuyerName:     req.Customer.Name,
		CreatedAt:     s.now(),
	}
	if !applied.Applied {
		o.PromoCode = ""
	}

	if err := s.persist(ctx, o, applied); err != nil {
		if applied.Applied {
			s.releaseUsage(ctx, applied.PromoID)
		}
		if errors.Is(err, promo.ErrUserLimitReached) {
			return nil, promo.ErrUserLimitReached
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.items", len(o.Items)),
		attribute.Bool("order.guest", userID == nil),
	)
	s.created.Add(ctx, 1)
	if applied.Applied {
		s.discounts.Add(ctx, o.Discount.InexactFloat64(), metric.WithAttributes(
			attribute.String("promo.code", o.PromoCode),
		))
	}

	if userID != nil {
		s.finishUserCheckout(ctx, *userID, req.Customer)
	}
	s.scheduleSideEffects(ctx, o, req.Customer)

	return &CreateResult{
		Order:    o,
		OrderID:  o.ID,
		Total:    o.Total,
		Discount: o.Discount,
	}, nil
}

// persist stores the order. The evaluator's per-user count is only a read,
// so a limited promo is re-checked under a per-user lock while inserting.
func (s *Service) persist(ctx context.Context, o *Order, applied promo.Result) error {
	if applied.Applied && applied.PerUserLimit != nil && o.UserID != nil {
		return s.deps.Orders.CreateWithinUserLimit(ctx, o, *applied.PerUserLimit)
	}
	return s.deps.Orders.Create(ctx, o)
}

// releaseUsage gives back a promo use confirmed for an order that was not
// persisted.
func (s *Service) releaseUsage(ctx context.Context, promoID string) {
	if err := s.deps.Usage.DecrementUsage(context.WithoutCancel(ctx), promoID); err != nil {
		zctx.From(ctx).Error("Failed to release promo usage",
			zap.String("promo_id", promoID),
			zap.Error(err),
		)
	}
}

// finishUserCheckout updates the buyer profile and empties the cart. The
// order is already persisted, so failures are only logged.
func (s *Service) finishUserCheckout(ctx context.Context, userID int64, c Customer) {
	lg := zctx.From(ctx).With(zap.Int64("user_id", userID))

	if patch := c.ProfilePatch(); s.deps.Profiles != nil && !patch.Empty() {
		if err := s.deps.Profiles.UpdateProfile(ctx, userID, patch); err != nil {
			lg.Warn("Failed to update profile after order", zap.Error(err))
		}
	}
	if s.deps.Carts != nil {
		if err := s.deps.Carts.Clear(ctx, userID); err != nil {
			lg.Warn("Failed to clear cart after order", zap.Error(err))
		}
	}
}

func (s *Service) scheduleSideEffects(ctx context.Context, o *Order, c Customer) {
	if s.deps.Tasks == nil {
		return
	}
	snapshot := *o
	snapshot.Items = append([]SnapshotItem(nil), o.Items...)

	enqueue := func(name string, task func(ctx context.Context) error) {
		if !s.deps.Tasks.Enqueue(ctx, name, task) {
			s.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("task", name)))
		}
	}

	if s.deps.Notifier != nil {
		enqueue(TaskNotify, func(ctx context.Context) error {
			return s.deps.Notifier.OrderPlaced(ctx, &snapshot, c)
		})
	}
	if s.deps.Sales != nil {
		enqueue(TaskRecordSale, func(ctx context.Context) error {
			_, err := s.deps.Sales.Record(ctx, sale.Input{
				PaymentMethod: snapshot.PaymentMethod,
				Source:        sale.SourceWeb,
				Total:         snapshot.Total,
				ProductIDs:    snapshot.ProductIDs(),
			})
			return err
		})
	}
}
