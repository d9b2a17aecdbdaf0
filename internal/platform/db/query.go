package db

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Psql builds PostgreSQL statements with $n placeholders.
var Psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// QueryBuilt runs a squirrel builder against q.
func QueryBuilt(ctx context.Context, q DBTX, b sq.Sqlizer) (pgx.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, query, args...)
}

// QueryRowBuilt runs a single-row squirrel builder against q.
func QueryRowBuilt(ctx context.Context, q DBTX, b sq.Sqlizer) pgx.Row {
	query, args, err := b.ToSql()
	if err != nil {
		return errRow{err: err}
	}
	return q.QueryRow(ctx, query, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// ILike matches any of the columns case-insensitively against %term%.
func ILike(term string, columns ...string) sq.Or {
	pattern := "%" + term + "%"
	or := sq.Or{}
	for _, column := range columns {
		or = append(or, sq.ILike{column: pattern})
	}
	return or
}

// NullText maps an empty string to SQL NULL.
func NullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Page applies limit and offset with a default and ceiling on the limit.
func Page(b sq.SelectBuilder, limit, offset, fallback, ceiling int) sq.SelectBuilder {
	if limit <= 0 {
		limit = fallback
	}
	if limit > ceiling {
		limit = ceiling
	}
	b = b.Limit(uint64(limit))
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}
	return b
}
