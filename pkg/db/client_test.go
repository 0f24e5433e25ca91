package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	err := errors.New(`ERROR: duplicate key value violates unique constraint "uniq_tables_active_order"`)
	if !IsUniqueViolation(err, "") {
		t.Fatal("expected generic unique violation match")
	}
	if !IsUniqueViolation(err, "uniq_tables_active_order") {
		t.Fatal("expected named constraint match")
	}
	if IsUniqueViolation(err, "other_constraint") {
		t.Fatal("unexpected match for unrelated constraint")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error must not match")
	}
}

func TestIsRetryableConflict(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	if !IsRetryableConflict(fmt.Errorf("run tx: %w", serialization)) {
		t.Fatal("serialization failure should be retryable")
	}
	deadlock := &pgconn.PgError{Code: "40P01"}
	if !IsRetryableConflict(deadlock) {
		t.Fatal("deadlock should be retryable")
	}
	if IsRetryableConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not retryable")
	}
	if !IsRetryableConflict(errors.New("database is locked")) {
		t.Fatal("sqlite busy should be retryable")
	}
	if IsRetryableConflict(nil) {
		t.Fatal("nil error must not match")
	}
}
