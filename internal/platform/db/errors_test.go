package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"no rows", pgx.ErrNoRows, shared.ErrNotFound},
		{"unique", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "clients_client_code_key"}, shared.ErrDuplicateKey},
		{"foreign key", &pgconn.PgError{Code: CodeForeignKeyViolation}, shared.ErrNotFound},
		{"check", &pgconn.PgError{Code: CodeCheckViolation}, shared.ErrValidation},
		{"serialization", &pgconn.PgError{Code: CodeSerializationFailure}, shared.ErrContention},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, Translate(fmt.Errorf("wrapped: %w", tc.err)), tc.kind)
		})
	}

	plain := errors.New("boom")
	require.Same(t, plain, Translate(plain))
	require.NoError(t, Translate(nil))
}

func TestTranslateKeepsSQLState(t *testing.T) {
	err := Translate(&pgconn.PgError{Code: CodeSerializationFailure, Message: "could not serialize"})
	require.True(t, IsRetryable(err))
	require.Equal(t, "concurrent write conflict: could not serialize", err.Error())
}

func TestRetryStopsOnSuccess(t *testing.T) {
	var states []string
	calls := 0
	err := Retry(context.Background(), RunnerOptions{MaxRetries: 3, BaseDelay: 1, OnRetry: func(s string) { states = append(states, s) }}, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: CodeSerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []string{CodeSerializationFailure, CodeSerializationFailure}, states)
}

func TestRetryGivesUpWithContention(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RunnerOptions{MaxRetries: 2, BaseDelay: 1}, func() error {
		calls++
		return &pgconn.PgError{Code: CodeDeadlockDetected}
	})
	require.ErrorIs(t, err, shared.ErrContention)
	require.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	boom := &pgconn.PgError{Code: CodeUniqueViolation}
	err := Retry(context.Background(), RunnerOptions{MaxRetries: 5}, func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RunnerOptions{MaxRetries: 5, BaseDelay: 1 << 20}, func() error {
		return &pgconn.PgError{Code: CodeSerializationFailure}
	})
	require.ErrorIs(t, err, context.Canceled)
}
