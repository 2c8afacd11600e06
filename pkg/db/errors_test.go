package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_transaction_seq"}

	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(pgErr, "ux_payments_transaction_seq"))
	assert.False(t, IsUniqueViolation(pgErr, "ux_refunds_transaction_seq"))
	assert.True(t, IsUniqueViolation(fmt.Errorf("appending: %w", pgErr), "ux_payments_transaction_seq"))

	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: payments.transaction_id, payments.seq"), ""))
	assert.False(t, IsUniqueViolation(errors.New("connection refused"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsCheckViolation(t *testing.T) {
	assert.True(t, IsCheckViolation(&pgconn.PgError{Code: "23514", ConstraintName: "ck_transactions_refunded_total"}))
	assert.False(t, IsCheckViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsCheckViolation(errors.New("boom")))
	assert.False(t, IsCheckViolation(nil))
}
