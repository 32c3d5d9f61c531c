package orm

import (
	"context"
	"errors"
	"reflect"
	"strings"
)

// Execute runs a statement that returns no rows and reports the number of
// affected rows. Named parameters (@name) are bound from params.
//
// When params is a slice, the statement runs once per element and the
// affected counts are summed:
//
//	orm.Execute(ctx, db, "insert into users (UserName) values (@userName)", users)
func Execute(ctx context.Context, q Querier, query string, params any) (int64, error) {
	if items, ok := paramList(params); ok {
		var total int64
		for _, item := range items {
			n, err := execOne(ctx, q, query, item)
			if err != nil {
				return total, err
			}
			total += n
		}
		return total, nil
	}
	return execOne(ctx, q, query, params)
}

func execOne(ctx context.Context, q Querier, query string, params any) (int64, error) {
	stmt, args, err := bind(q.dialect(), query, params)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, classify(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(query, err)
	}
	return n, nil
}

// paramList splits a slice of parameter objects into its elements.
func paramList(params any) ([]any, bool) {
	if params == nil || !isList(params) {
		return nil, false
	}
	v := reflect.ValueOf(params)
	items := make([]any, v.Len())
	for i := range items {
		items[i] = v.Index(i).Interface()
	}
	return items, true
}

// Query runs a statement and maps every row onto T. Struct fields match
// columns by name, ignoring case; other types take the first column.
// No matching rows yield an empty slice, not an error.
func Query[T any](ctx context.Context, q Querier, query string, params any) ([]T, error) {
	stmt, args, err := bind(q.dialect(), query, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(query, err)
	}
	defer func() { _ = rows.Close() }()
	return scanAll[T](query, rows)
}

// QueryFirst returns the first row mapped onto T, or ErrNotFound.
func QueryFirst[T any](ctx context.Context, q Querier, query string, params any) (T, error) {
	items, err := Query[T](ctx, q, query, params)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return items[0], nil
}

// QueryScalar returns the first column of the last row, which is where a
// batch ending in an identity select leaves the generated key:
//
//	orm.QueryScalar[int64](ctx, db, "insert into customers (Name) values (@name); select last_insert_rowid()", c)
//
// Every statement of a batch but the last is executed, in order, on one
// connection; the last one is queried.
func QueryScalar[T any](ctx context.Context, q Querier, query string, params any) (T, error) {
	if stmts := splitStatements(q.dialect(), query); len(stmts) > 1 {
		return scalarBatch[T](ctx, q, stmts, params)
	}
	return lastScalar[T](ctx, q, query, params)
}

// scalarBatch runs stmts on a single connection, pinning one from the pool
// when q is a *DB, since identity functions are per connection.
func scalarBatch[T any](ctx context.Context, q Querier, stmts []string, params any) (_ T, err error) {
	if db, ok := q.(*DB); ok {
		s, acquireErr := db.Acquire(ctx)
		if acquireErr != nil {
			var zero T
			return zero, acquireErr
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()
		q = s
	}

	last := len(stmts) - 1
	for _, stmt := range stmts[:last] {
		if _, err := execOne(ctx, q, stmt, params); err != nil {
			var zero T
			return zero, err
		}
	}
	return lastScalar[T](ctx, q, stmts[last], params)
}

func lastScalar[T any](ctx context.Context, q Querier, query string, params any) (T, error) {
	items, err := Query[T](ctx, q, query, params)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, ErrNotFound
	}
	return items[len(items)-1], nil
}

// QueryRows runs a statement and returns dynamically typed rows, for types
// that are built through a constructor rather than field assignment.
func QueryRows(ctx context.Context, q Querier, query string, params any) ([]Row, error) {
	stmt, args, err := bind(q.dialect(), query, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(query, err)
	}
	defer func() { _ = rows.Close() }()
	return scanRows(query, rows)
}

// InsertID runs an INSERT and returns the identity generated for pk, via
// RETURNING (PostgreSQL) or LastInsertId (MySQL, SQLite).
func InsertID(ctx context.Context, q Querier, query string, params any, pk string) (int64, error) {
	d := q.dialect()
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	if d.UseReturning() {
		return QueryScalar[int64](ctx, q, query+d.ReturningClause(pk), params)
	}

	stmt, args, err := bind(d, query, params)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, classify(query, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, classify(query, err)
	}
	return id, nil
}
