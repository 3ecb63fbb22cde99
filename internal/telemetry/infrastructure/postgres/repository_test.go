package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient_SQLStates(t *testing.T) {
	cases := []struct {
		code      string
		transient bool
	}{
		{"08000", true},  // connection_exception
		{"08003", true},  // connection_does_not_exist
		{"08006", true},  // connection_failure
		{"53300", true},  // too_many_connections
		{"57P03", true},  // cannot_connect_now
		{"57014", true},  // query_canceled
		{"23505", false}, // unique_violation outside the dedup constraint
		{"23502", false}, // not_null_violation
		{"28000", false}, // invalid_authorization_specification
		{"42601", false}, // syntax_error
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			err := fmt.Errorf("exec: %w", &pgconn.PgError{Code: tc.code})
			if got := isTransient(err); got != tc.transient {
				t.Fatalf("expected isTransient(%s)=%v, got %v", tc.code, tc.transient, got)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient_ConnectionErrors(t *testing.T) {
	if !isTransient(driver.ErrBadConn) {
		t.Fatal("expected bad connection to be transient")
	}
	if !isTransient(fmt.Errorf("exec: %w", context.DeadlineExceeded)) {
		t.Fatal("expected deadline exceeded to be transient")
	}
	if !isTransient(timeoutErr{}) {
		t.Fatal("expected network error to be transient")
	}
	if isTransient(errors.New("malformed batch")) {
		t.Fatal("expected plain error to be fatal")
	}
}
