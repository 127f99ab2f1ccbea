package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/instructorbook/libs/db"
	otelx "github.com/md-rashed-zaman/instructorbook/libs/otel"
)

// Insert writes evt inside tx, capturing the caller's trace context.
func Insert(ctx context.Context, tx pgx.Tx, evt Event) error {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, aggregate_type, aggregate_id, event_type, partition_key, payload, traceparent, tracestate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Key, evt.Payload, traceparent, tracestate)
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", evt.EventType, err)
	}
	return nil
}

// Repository is the Postgres Source.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Drain locks a batch with SKIP LOCKED so several replicas can publish concurrently.
// Rows are marked published only when send succeeds.
func (r *Repository) Drain(ctx context.Context, limit int, send func(context.Context, []Record) error) (int, error) {
	var n int
	err := r.pool.Run(ctx, func(ctx context.Context, tx pgx.Tx) error {
		records, err := fetchUnpublished(ctx, tx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := send(ctx, records); err != nil {
			return err
		}
		seqs := make([]int64, 0, len(records))
		for _, rec := range records {
			seqs = append(seqs, rec.Seq)
		}
		n = len(records)
		return markPublished(ctx, tx, seqs)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, aggregate_type, aggregate_id, event_type, partition_key, payload,
			COALESCE(traceparent, ''), COALESCE(tracestate, ''), created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rcd Record
		if err := rows.Scan(&rcd.Seq, &rcd.EventID, &rcd.AggregateType, &rcd.AggregateID, &rcd.EventType,
			&rcd.Key, &rcd.Payload, &rcd.Traceparent, &rcd.Tracestate, &rcd.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rcd)
	}
	return records, rows.Err()
}

func markPublished(ctx context.Context, tx pgx.Tx, seqs []int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = now()
		WHERE id = ANY($1)
	`, seqs)
	return err
}
