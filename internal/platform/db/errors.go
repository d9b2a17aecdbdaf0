package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// SQLSTATE codes the platform reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// SQLState returns the SQLSTATE of err, or "" when err is not a server error.
func SQLState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsRetryable reports whether the transaction that produced err can be retried.
func IsRetryable(err error) bool {
	switch SQLState(err) {
	case CodeSerializationFailure, CodeDeadlockDetected:
		return true
	}
	return false
}

// Translate maps driver errors onto the shared error kinds. Unknown errors pass through.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", shared.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case CodeUniqueViolation:
		return &translated{kind: shared.ErrDuplicateKey, msg: constraintOrMessage(pgErr), cause: err}
	case CodeForeignKeyViolation:
		return &translated{kind: shared.ErrNotFound, msg: "referenced row missing (" + constraintOrMessage(pgErr) + ")", cause: err}
	case CodeCheckViolation:
		return &translated{kind: shared.ErrValidation, msg: constraintOrMessage(pgErr), cause: err}
	case CodeSerializationFailure, CodeDeadlockDetected:
		return &translated{kind: shared.ErrContention, msg: pgErr.Message, cause: err}
	}
	return err
}

// translated keeps the driver error in the chain so retry detection still sees the
// SQLSTATE, while the message stays short.
type translated struct {
	kind  error
	msg   string
	cause error
}

func (t *translated) Error() string   { return t.kind.Error() + ": " + t.msg }
func (t *translated) Unwrap() []error { return []error{t.kind, t.cause} }

func constraintOrMessage(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return pgErr.ConstraintName
	}
	return pgErr.Message
}
