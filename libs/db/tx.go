package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the services react to.
const (
	CodeUniqueViolation      = "23505"
	CodeExclusionViolation   = "23P01"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// TxFunc is run inside a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, tx pgx.Tx) error

// RunSerializable runs fn in a SERIALIZABLE transaction and commits it. Serialization
// failures and deadlocks restart the whole transaction, up to maxTries attempts, so fn
// must not have side effects outside tx. Any other error is returned unchanged.
func (p *Pool) RunSerializable(ctx context.Context, maxTries uint, fn TxFunc) error {
	if maxTries == 0 {
		maxTries = 3
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := p.runOnce(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryableTxError(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	return err
}

// Run runs fn in a READ COMMITTED transaction without retries.
func (p *Pool) Run(ctx context.Context, fn TxFunc) error {
	return p.runOnce(ctx, pgx.TxOptions{}, fn)
}

func (p *Pool) runOnce(ctx context.Context, opts pgx.TxOptions, fn TxFunc) error {
	tx, err := p.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PgCode returns the SQLSTATE of err, or "" if err is not a Postgres error.
func PgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsRetryableTxError(err error) bool {
	code := PgCode(err)
	return code == CodeSerializationFailure || code == CodeDeadlockDetected
}

// IsTimeout reports whether err came from a deadline or a driver-level timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return pgconn.Timeout(err)
}
