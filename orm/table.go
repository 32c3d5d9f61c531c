package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mickamy/rowmap/scope"
)

// Table is a pending query against the table backing T.
// All builder methods return a new Table; the receiver is never modified.
// Clauses use ? placeholders, rewritten for the dialect at execution.
type Table[T any] struct {
	db    Querier
	table string

	wheres   []whereClause
	orderBys []string
	limit    *int
	offset   *int
}

type whereClause struct {
	clause string
	args   []any
}

// From starts a query against the table of T (see TableNameOf).
func From[T any](db Querier) *Table[T] {
	return FromTable[T](db, TableNameOf[T]())
}

// FromTable starts a query against an explicitly named table.
func FromTable[T any](db Querier, table string) *Table[T] {
	return &Table[T]{db: db, table: table}
}

// Name returns the table name.
func (q *Table[T]) Name() string { return q.table }

// clone returns a shallow copy with slices copied to avoid aliasing.
func (q *Table[T]) clone() *Table[T] {
	q2 := *q
	q2.wheres = append([]whereClause(nil), q.wheres...)
	q2.orderBys = append([]string(nil), q.orderBys...)
	return &q2
}

// --- Builder methods ---

func (q *Table[T]) Where(clause string, args ...any) *Table[T] {
	q2 := q.clone()
	q2.wheres = append(q2.wheres, whereClause{clause, args})
	return q2
}

func (q *Table[T]) OrderBy(clause string) *Table[T] {
	q2 := q.clone()
	q2.orderBys = append(q2.orderBys, clause)
	return q2
}

func (q *Table[T]) Limit(n int) *Table[T] {
	q2 := q.clone()
	q2.limit = &n
	return q2
}

func (q *Table[T]) Offset(n int) *Table[T] {
	q2 := q.clone()
	q2.offset = &n
	return q2
}

// Scopes applies the given scope.Scope values to the query.
func (q *Table[T]) Scopes(scopes ...scope.Scope) *Table[T] {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

// --- scope.Applier implementation ---

func (q *Table[T]) ApplyWhere(clause string, args []any) {
	q.wheres = append(q.wheres, whereClause{clause, args})
}

func (q *Table[T]) ApplyOrderBy(clause string) {
	q.orderBys = append(q.orderBys, clause)
}

func (q *Table[T]) ApplyLimit(n int)  { q.limit = &n }
func (q *Table[T]) ApplyOffset(n int) { q.offset = &n }

var _ scope.Applier = (*Table[any])(nil)

// --- Terminal methods ---

// All executes a SELECT and returns all matching rows.
func (q *Table[T]) All(ctx context.Context) ([]T, error) {
	query, args := q.buildSelect()
	query = rewritePlaceholders(q.db.dialect(), query)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(query, err)
	}
	defer func() { _ = rows.Close() }()
	return scanAll[T](query, rows)
}

// First executes a SELECT with LIMIT 1 and returns the first row.
// Returns ErrNotFound if no rows match.
func (q *Table[T]) First(ctx context.Context) (T, error) {
	items, err := q.Limit(1).All(ctx)
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

// Count returns the number of rows matching the current conditions.
func (q *Table[T]) Count(ctx context.Context) (int64, error) {
	query, args := q.buildCount()
	query = rewritePlaceholders(q.db.dialect(), query)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, classify(query, err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, classify(query, err)
		}
		return 0, &StatementError{Query: query, Err: errors.New("COUNT returned no rows")}
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, &StatementError{Query: query, Err: err}
	}
	return count, nil
}

// Exists returns true if at least one row matches the current conditions.
func (q *Table[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete deletes rows matching the accumulated WHERE clauses.
// Returns an error if no WHERE clauses are set (safety guard).
func (q *Table[T]) Delete(ctx context.Context) (int64, error) {
	if len(q.wheres) == 0 {
		return 0, errors.New("orm: Delete without WHERE clause is not allowed; use DeleteAll")
	}
	return q.delete(ctx)
}

// DeleteAll deletes every row of the table, ignoring WHERE clauses.
func (q *Table[T]) DeleteAll(ctx context.Context) (int64, error) {
	q2 := q.clone()
	q2.wheres = nil
	return q2.delete(ctx)
}

func (q *Table[T]) delete(ctx context.Context) (int64, error) {
	query, args := q.buildDelete()
	query = rewritePlaceholders(q.db.dialect(), query)

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(query, err)
	}
	return n, nil
}

// --- SQL building ---

func (q *Table[T]) qi(name string) string {
	return q.db.dialect().QuoteIdent(name)
}

func (q *Table[T]) buildSelect() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(q.qi(q.table))

	args := q.appendWhere(&b)

	if len(q.orderBys) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBys, ", "))
	}
	q.appendLimit(&b)
	return b.String(), args
}

func (q *Table[T]) buildCount() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(q.qi(q.table))
	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Table[T]) buildDelete() (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(q.qi(q.table))
	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Table[T]) appendWhere(b *strings.Builder) []any {
	if len(q.wheres) == 0 {
		return nil
	}

	var args []any
	b.WriteString(" WHERE ")
	for i, w := range q.wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		if len(q.wheres) > 1 {
			b.WriteString("(" + w.clause + ")")
		} else {
			b.WriteString(w.clause)
		}
		args = append(args, w.args...)
	}
	return args
}

func (q *Table[T]) appendLimit(b *strings.Builder) {
	if q.limit != nil {
		fmt.Fprintf(b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		if q.limit == nil {
			// MySQL and SQLite reject OFFSET without LIMIT.
			switch q.db.dialect().Name() {
			case "mysql":
				b.WriteString(" LIMIT 18446744073709551615")
			case "sqlite3":
				b.WriteString(" LIMIT -1")
			}
		}
		fmt.Fprintf(b, " OFFSET %d", *q.offset)
	}
}
