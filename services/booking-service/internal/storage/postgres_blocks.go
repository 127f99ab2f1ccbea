package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

const blockColumns = `id::text, instructor_id, block_date, start_minute, end_minute, reason, created_at`

func scanBlock(row pgx.Row) (model.BlockedPeriod, error) {
	var b model.BlockedPeriod
	err := row.Scan(&b.ID, &b.InstructorID, &b.Date, &b.StartMinute, &b.EndMinute, &b.Reason, &b.CreatedAt)
	return b, err
}

func queryBlocks(ctx context.Context, q interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}, instructorID string, date time.Time) ([]model.BlockedPeriod, error) {
	rows, err := q.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocked_periods
		WHERE instructor_id = $1 AND block_date = $2
		ORDER BY start_minute
	`, instructorID, date)
	if err != nil {
		return nil, mapErr(err, apperr.ErrConflict)
	}
	defer rows.Close()
	var out []model.BlockedPeriod
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, mapErr(err, apperr.ErrConflict)
		}
		out = append(out, b)
	}
	return out, mapErr(rows.Err(), apperr.ErrConflict)
}

func (p *Postgres) CreateBlock(ctx context.Context, b model.BlockedPeriod) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO blocked_periods (id, instructor_id, block_date, start_minute, end_minute, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.InstructorID, b.Date, b.StartMinute, b.EndMinute, b.Reason, b.CreatedAt)
	return mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) DeleteBlock(ctx context.Context, id string) (model.BlockedPeriod, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	b, err := scanBlock(p.pool.QueryRow(ctx, `DELETE FROM blocked_periods WHERE id::text = $1 RETURNING `+blockColumns, id))
	return b, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) GetBlock(ctx context.Context, id string) (model.BlockedPeriod, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	b, err := scanBlock(p.pool.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocked_periods WHERE id::text = $1`, id))
	return b, mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) ListBlocks(ctx context.Context, instructorID string, date time.Time) ([]model.BlockedPeriod, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return queryBlocks(ctx, p.pool, instructorID, date)
}

func (t *pgTx) BlockedPeriods(ctx context.Context, instructorID string, date time.Time) ([]model.BlockedPeriod, error) {
	return queryBlocks(ctx, t.tx, instructorID, date)
}
