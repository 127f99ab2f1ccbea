package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/instructorbook/libs/db"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
)

type Postgres struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	timeout  time.Duration
	maxTries uint
}

type PostgresOptions struct {
	// Timeout bounds every storage call, derived from the caller's context.
	Timeout time.Duration
	// MaxTries caps attempts for transactions aborted by serialization failures.
	MaxTries uint
}

func NewPostgres(pool *db.Pool, opts PostgresOptions) *Postgres {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 5
	}
	return &Postgres{
		pool:     pool,
		outbox:   outbox.NewRepository(pool),
		timeout:  opts.Timeout,
		maxTries: opts.MaxTries,
	}
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// InTx runs fn in a serializable transaction, retrying serialization failures.
func (p *Postgres) InTx(ctx context.Context, fn TxFunc) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	err := p.pool.RunSerializable(ctx, p.maxTries, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
	return mapErr(err, apperr.ErrConflict)
}

func (p *Postgres) Drain(ctx context.Context, limit int, send func(context.Context, []outbox.Record) error) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	return p.outbox.Drain(ctx, limit, send)
}

// mapErr converts driver errors at the storage boundary. conflict is the error an
// exclusion violation stands for at the call site.
func mapErr(err error, conflict *apperr.Error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && !db.IsRetryableTxError(err) {
		return err
	}
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.ErrNotFound.Wrap(err)
	case db.PgCode(err) == db.CodeExclusionViolation:
		return conflict.Wrap(err)
	case db.IsRetryableTxError(err):
		return conflict.Withf("%s: concurrent update, retry", conflict.Message).Wrap(err)
	case db.IsTimeout(err):
		return apperr.ErrTimeout.Wrap(err)
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	return outbox.Insert(ctx, t.tx, evt)
}
