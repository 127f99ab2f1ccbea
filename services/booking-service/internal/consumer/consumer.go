package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/instructorbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/instructorbook/libs/otel"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/inbox"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader  Reader
	logger  *slog.Logger
	inbox   inbox.Recorder
	handler Handler
}

func New(logger *slog.Logger, reader Reader, recorder inbox.Recorder, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   recorder,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		c.logger.Warn("instructor event consumer disabled (no kafka brokers configured)")
		return
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		_ = c.Process(ctx, msg)
	}
}

// Process records msg in the inbox and hands it to the handler unless it was
// seen before. Errors are logged and returned; the offset still advances.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otelx.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)

	ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
	if err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return err
	}
	if !ok {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.RecordError(err)
		return err
	}
	return nil
}
