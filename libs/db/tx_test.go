package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("insert appointment: %w", &pgconn.PgError{Code: CodeExclusionViolation})
	if got := PgCode(err); got != CodeExclusionViolation {
		t.Fatalf("expected %s, got %q", CodeExclusionViolation, got)
	}
	if got := PgCode(errors.New("plain")); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
}

func TestIsRetryableTxError(t *testing.T) {
	cases := map[string]bool{
		CodeSerializationFailure: true,
		CodeDeadlockDetected:     true,
		CodeExclusionViolation:   false,
		CodeUniqueViolation:      false,
	}
	for code, want := range cases {
		if got := IsRetryableTxError(&pgconn.PgError{Code: code}); got != want {
			t.Fatalf("code %s: expected %v, got %v", code, want, got)
		}
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("query: %w", context.DeadlineExceeded)) {
		t.Fatal("expected deadline to be a timeout")
	}
	if IsTimeout(errors.New("boom")) {
		t.Fatal("unexpected timeout")
	}
}
