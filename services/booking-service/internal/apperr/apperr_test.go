package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("create window: %w", ErrConflict.Withf("overlaps 09:00-12:00"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrDependency)
	assert.Equal(t, "create window: overlaps 09:00-12:00", err.Error())
}

func TestFromNormalises(t *testing.T) {
	assert.Nil(t, From(nil))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("load: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	cause := errors.New("pg down")
	wrapped := ErrTimeout.Wrap(cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, Retryable(wrapped))
	assert.False(t, Retryable(ErrSlotNoLongerAvailable))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		http int
		grpc codes.Code
	}{
		{ErrFormat, http.StatusBadRequest, codes.InvalidArgument},
		{ErrPastDate, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{ErrInvalidDuration, http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{ErrConflict, http.StatusConflict, codes.Aborted},
		{ErrSlotNoLongerAvailable, http.StatusConflict, codes.Aborted},
		{ErrDependency, http.StatusConflict, codes.FailedPrecondition},
		{ErrTimeout, http.StatusServiceUnavailable, codes.Unavailable},
		{ErrNotFound, http.StatusNotFound, codes.NotFound},
		{ErrForbidden, http.StatusForbidden, codes.PermissionDenied},
		{errors.New("x"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.http, HTTPStatus(tc.err), tc.err.Error())
		assert.Equal(t, tc.grpc, GRPCCode(tc.err), tc.err.Error())
	}
}
