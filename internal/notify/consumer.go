package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Reader is the kafka reader surface used by Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler delivers one confirmation.
type Handler func(ctx context.Context, ev OrderPlaced) error

// Consumer reads OrderPlaced events and hands them to a Handler.
type Consumer struct {
	r          Reader
	handle     Handler
	lg         *zap.Logger
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	retryDelay time.Duration
}

// NewConsumer creates a Consumer.
func NewConsumer(r Reader, handle Handler, lg *zap.Logger, tracer trace.Tracer, propagator propagation.TextMapPropagator) *Consumer {
	return &Consumer{
		r:          r,
		handle:     handle,
		lg:         lg,
		tracer:     tracer,
		propagator: propagator,
		retryDelay: time.Second,
	}
}

// NewReader returns a group reader for the notification topic.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Run consumes until ctx is cancelled. Messages that cannot be decoded or
// delivered are logged and committed; confirmations are not retried.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.lg.Error("Fetch message failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.lg.Error("Commit message failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	headers := headerCarrier{headers: &msg.Headers}
	ctx = c.propagator.Extract(ctx, headers)
	ctx, span := c.tracer.Start(ctx, "notify.OrderPlaced",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.message.offset", msg.Offset),
		),
	)
	defer span.End()

	lg := c.lg.With(zap.String("key", string(msg.Key)), zap.Int64("offset", msg.Offset))
	if id := headers.Get(httpmiddleware.RequestIDHeader); id != "" {
		lg = lg.With(zap.String("request_id", id))
		ctx = httpmiddleware.WithRequestID(ctx, id)
	}
	ctx = zctx.Base(ctx, lg)

	var ev OrderPlaced
	if err := ev.Decode(jx.DecodeBytes(msg.Value)); err != nil {
		err = errors.Wrap(err, "decode")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Error("Skipping malformed message", zap.Error(err))
		return
	}

	if err := c.handle(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lg.Error("Notification failed", zap.String("order_id", ev.OrderID), zap.Error(err))
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.r.Close()
}
