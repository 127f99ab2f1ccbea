package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/instructorbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/instructorbook/libs/otel"
)

// Source hands out unpublished records in order and marks them once send succeeds.
type Source interface {
	Drain(ctx context.Context, limit int, send func(context.Context, []Record) error) (int, error)
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

type Publisher struct {
	source    Source
	writer    Writer
	logger    *slog.Logger
	pollEvery time.Duration
	batchSize int
}

func NewPublisher(source Source, writer Writer, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		source:    source,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	defer p.writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishOnce(ctx); err != nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// PublishOnce drains batches until the outbox is empty and returns how many records were sent.
func (p *Publisher) PublishOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := p.source.Drain(ctx, p.batchSize, p.send)
		total += n
		if err != nil || n < p.batchSize {
			return total, err
		}
	}
}

func (p *Publisher) send(ctx context.Context, records []Record) error {
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		key := r.Key
		if key == "" {
			key = r.AggregateID
		}
		meta := kafkax.EventMeta{EventID: r.EventID, EventType: r.EventType, Version: "1"}
		msgs = append(msgs, kafka.Message{
			Topic:   r.EventType,
			Key:     []byte(key),
			Value:   r.Payload,
			Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	p.logger.Debug("outbox batch published", "count", len(msgs))
	return nil
}
