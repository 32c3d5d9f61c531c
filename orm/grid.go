package orm

import (
	"context"
	"database/sql"
)

// Grid is a pending multi-statement batch whose result sets are read one at
// a time, in the order the statements were declared.
//
// On dialects that return every result set from one round trip the batch is
// executed once by QueryMultiple. Elsewhere the batch is split on top-level
// semicolons and each statement runs when its result set is read.
type Grid struct {
	q      Querier
	batch  string
	params any

	rows    *sql.Rows
	started bool

	pending []string

	closed bool
}

// QueryMultiple starts a multi-statement batch. The caller must Close the
// Grid whether or not every result set was read.
func QueryMultiple(ctx context.Context, q Querier, batch string, params any) (*Grid, error) {
	g := &Grid{q: q, batch: batch, params: params}
	if !q.dialect().MultiResultSets() {
		g.pending = splitStatements(q.dialect(), batch)
		return g, nil
	}

	stmt, args, err := bind(q.dialect(), batch, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(batch, err)
	}
	g.rows = rows
	return g, nil
}

// Read consumes the next result set of g and maps it onto T.
// It returns ErrNoMoreResults once every result set has been read.
func Read[T any](ctx context.Context, g *Grid) ([]T, error) {
	if g.closed {
		return nil, ErrNoMoreResults
	}
	if g.rows == nil {
		if len(g.pending) == 0 {
			return nil, ErrNoMoreResults
		}
		stmt := g.pending[0]
		g.pending = g.pending[1:]
		return Query[T](ctx, g.q, stmt, g.params)
	}

	if g.started && !g.rows.NextResultSet() {
		if err := g.rows.Err(); err != nil {
			return nil, classify(g.batch, err)
		}
		return nil, ErrNoMoreResults
	}
	g.started = true
	return scanAll[T](g.batch, g.rows)
}

// Close releases the open cursor, if any. It is safe to call more than once.
func (g *Grid) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	g.pending = nil
	if g.rows != nil {
		return g.rows.Close() //nolint:wrapcheck // pass through
	}
	return nil
}
