package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolationPostgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_orders_subscription_occurrence"}
	wrapped := fmt.Errorf("create order: %w", pgErr)

	if !IsUniqueViolation(wrapped, "uq_orders_subscription_occurrence") {
		t.Fatal("expected a match on the named constraint")
	}
	if !IsUniqueViolation(wrapped, "") {
		t.Fatal("expected a match without a constraint filter")
	}
	if IsUniqueViolation(wrapped, "uq_payments_provider_id") {
		t.Fatal("constraint filter should exclude other constraints")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violations are not unique violations")
	}
}

func TestIsUniqueViolationMessageFallback(t *testing.T) {
	if !IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "uq_x"`), "") {
		t.Fatal("postgres message text should match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: orders.subscription_id"), "") {
		t.Fatal("sqlite message text should match")
	}
	if IsUniqueViolation(errors.New("connection reset"), "") {
		t.Fatal("unrelated errors should not match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is never a violation")
	}
}
