package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/md-rashed-zaman/instructorbook/libs/db"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
)

func TestMapErr(t *testing.T) {
	exclusion := &pgconn.PgError{Code: db.CodeExclusionViolation}
	serialization := fmt.Errorf("commit: %w", &pgconn.PgError{Code: db.CodeSerializationFailure})

	cases := []struct {
		name     string
		err      error
		conflict *apperr.Error
		want     *apperr.Error
	}{
		{"no rows", pgx.ErrNoRows, apperr.ErrConflict, apperr.ErrNotFound},
		{"window overlap", exclusion, apperr.ErrConflict, apperr.ErrConflict},
		{"appointment overlap", exclusion, apperr.ErrSlotNoLongerAvailable, apperr.ErrSlotNoLongerAvailable},
		{"retries exhausted", serialization, apperr.ErrSlotNoLongerAvailable, apperr.ErrSlotNoLongerAvailable},
		{"deadline", context.DeadlineExceeded, apperr.ErrConflict, apperr.ErrTimeout},
		{"domain error passes through", apperr.ErrOutsideAvailability, apperr.ErrConflict, apperr.ErrOutsideAvailability},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapErr(tc.err, tc.conflict)
			assert.ErrorIs(t, got, tc.want)
		})
	}

	assert.NoError(t, mapErr(nil, apperr.ErrConflict))
	plain := errors.New("syntax error")
	assert.Same(t, plain, mapErr(plain, apperr.ErrConflict))
}

func TestMapErrKeepsRetryableCause(t *testing.T) {
	wrapped := apperr.ErrConflict.Wrap(&pgconn.PgError{Code: db.CodeDeadlockDetected})
	got := mapErr(wrapped, apperr.ErrSlotNoLongerAvailable)
	assert.ErrorIs(t, got, apperr.ErrSlotNoLongerAvailable)
	assert.True(t, db.IsRetryableTxError(got))
}
