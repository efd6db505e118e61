// Command notify-worker consumes order notifications and hands them to the
// mail relay.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/notify"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		c := notify.NewConsumer(notify.NewReader(cfg.Brokers, cfg.Topic, cfg.Group), deliver(cfg.From), lg,
			m.TracerProvider().Tracer("storefront-notify"),
			propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
		)
		defer func() {
			if err := c.Close(); err != nil {
				lg.Warn("Close kafka reader", zap.Error(err))
			}
		}()

		lg.Info("Consuming order notifications",
			zap.Strings("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
			zap.String("group", cfg.Group),
		)
		return c.Run(ctx)
	})
}

// deliver logs the confirmation that the mail relay picks up.
func deliver(from string) notify.Handler {
	return func(ctx context.Context, ev notify.OrderPlaced) error {
		zctx.From(ctx).Info("Order confirmation",
			zap.String("from", from),
			zap.String("to", ev.Email),
			zap.String("name", ev.Name),
			zap.String("order_id", ev.OrderID),
			zap.String("total", ev.Total.StringFixed(2)),
			zap.String("discount", ev.Discount.StringFixed(2)),
			zap.String("promo_code", ev.PromoCode),
			zap.Int("items", len(ev.Items)),
		)
		return nil
	}
}
