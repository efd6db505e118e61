// Package handler exposes the storefront services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/business"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/domain/sale"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// PromoAdmin manages promo records.
type PromoAdmin interface {
	Get(ctx context.Context, id string) (*promo.Promo, error)
	List(ctx context.Context) ([]promo.Promo, error)
	ListHome(ctx context.Context) ([]promo.Promo, error)
	Create(ctx context.Context, draft promo.Patch) (*promo.Promo, error)
	Update(ctx context.Context, id string, patch promo.Patch) (*promo.Promo, error)
	Delete(ctx context.Context, id string) error
}

// PromoEvaluator prices a promo against an order.
type PromoEvaluator interface {
	Evaluate(ctx context.Context, req promo.Request) (promo.Result, error)
}

// Carts is the server cart of logged-in users.
type Carts interface {
	Get(ctx context.Context, userID int64) (*cart.Cart, error)
	AddItem(ctx context.Context, userID int64, productID string, quantity int) (*cart.AddResult, error)
	UpdateQuantity(ctx context.Context, userID int64, productID string, quantity int) (decimal.Decimal, error)
	RemoveItem(ctx context.Context, userID int64, productID string) (decimal.Decimal, error)
	Clear(ctx context.Context, userID int64) error
	Merge(ctx context.Context, userID int64, items []cart.MergeItem) (decimal.Decimal, error)
}

// Orders places orders.
type Orders interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.CreateResult, error)
}

// Sales records point-of-sale and web sales.
type Sales interface {
	Record(ctx context.Context, in sale.Input) (*sale.Sale, error)
}

// Sessions resolves bearer tokens to user IDs.
type Sessions interface {
	UserID(ctx context.Context, token string) (int64, error)
}

// Deps are the services behind the HTTP API.
type Deps struct {
	Promos    PromoAdmin
	Evaluator PromoEvaluator
	Products  product.Repository
	Carts     Carts
	Orders    Orders
	Sales     Sales
	Business  business.Repository
	Sessions  Sessions
}

// Config holds non-dependency handler settings.
type Config struct {
	// AdminKeyHash is the hex HMAC-SHA256 of the admin API key. Admin
	// routes reject every request while it is empty.
	AdminKeyHash string
	// AdminPepper is the HMAC key used to hash incoming admin keys.
	AdminPepper string
	// ValidateLimiter bounds promo code checks per user or guest IP.
	// Nil disables the limit.
	ValidateLimiter *httpmiddleware.Limiter
}

// Handler serves the storefront API.
type Handler struct {
	Deps
	admin         *adminAuth
	validateLimit httpmiddleware.Middleware
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	h := &Handler{
		Deps:          deps,
		admin:         newAdminAuth(cfg.AdminKeyHash, cfg.AdminPepper),
		validateLimit: func(next http.Handler) http.Handler { return next },
	}
	if cfg.ValidateLimiter != nil {
		h.validateLimit = httpmiddleware.RateLimit(cfg.ValidateLimiter, clientKey)
	}
	return h
}

// Register mounts the API routes on r under /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/business", h.getBusiness)

		r.Route("/promos", func(r chi.Router) {
			r.Get("/home", h.listHomePromos)
			r.With(h.optionalUser, h.validateLimit).Post("/validate", h.validatePromo)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.admin.middleware)
			r.Get("/promos", h.listPromos)
			r.Post("/promos", h.createPromo)
			r.Get("/promos/{id}", h.getPromo)
			r.Patch("/promos/{id}", h.updatePromo)
			r.Delete("/promos/{id}", h.deletePromo)
			r.Post("/sales", h.recordSale)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(h.requireUser)
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Patch("/items/{productID}", h.updateCartItem)
			r.Delete("/items/{productID}", h.removeCartItem)
			r.Post("/merge", h.mergeCart)
		})

		r.With(h.optionalUser).Post("/orders", h.createOrder)
	})
}

// Routes returns a router serving only the API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}
