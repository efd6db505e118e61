package notify

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Writer is the kafka writer surface used by Producer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes OrderPlaced events keyed by order ID.
type Producer struct {
	w          Writer
	propagator propagation.TextMapPropagator
}

var _ order.Notifier = (*Producer)(nil)

// NewProducer creates a Producer. The propagator injects the trace context
// into message headers.
func NewProducer(w Writer, propagator propagation.TextMapPropagator) *Producer {
	return &Producer{w: w, propagator: propagator}
}

// NewWriter returns a kafka writer for the notification topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// OrderPlaced publishes the confirmation for o. The checkout request ID, if
// any, travels in the X-Request-ID header.
func (p *Producer) OrderPlaced(ctx context.Context, o *order.Order, c order.Customer) error {
	ev := NewOrderPlaced(o, c)
	var e jx.Encoder
	ev.Encode(&e)

	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: e.Bytes(),
	}
	headers := headerCarrier{headers: &msg.Headers}
	p.propagator.Inject(ctx, headers)
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		headers.Set(httpmiddleware.RequestIDHeader, id)
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish order %s", o.ID)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.w.Close()
}
