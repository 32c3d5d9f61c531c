package orm

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// DefaultSplitOn is the column that starts the second row shape in QueryJoin.
const DefaultSplitOn = "Id"

// QueryJoin maps every row of a join onto two shapes and combines them with fn.
// Columns before the last column named splitOn (ignoring case) belong to A,
// that column and the rest to B. An empty splitOn means DefaultSplitOn.
//
// Each row materializes its own A and B; rows sharing a parent are not
// de-duplicated.
//
//	projects, err := orm.QueryJoin(ctx, db, sql, params, "Id",
//		func(c model.Customer, p model.Project) model.Project {
//			p.Customer = &c
//			return p
//		})
func QueryJoin[A, B, R any](
	ctx context.Context, q Querier, query string, params any, splitOn string, fn func(A, B) R,
) ([]R, error) {
	if splitOn == "" {
		splitOn = DefaultSplitOn
	}

	stmt, args, err := bind(q.dialect(), query, params)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(query, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(query, err)
	}
	split := splitIndex(cols, splitOn)
	if split < 0 {
		return nil, &StatementError{Query: query, Err: fmt.Errorf("split column %q not found in %v", splitOn, cols)}
	}

	left := newPlan(reflect.TypeFor[A](), cols[:split], 0)
	right := newPlan(reflect.TypeFor[B](), cols[split:], split)

	result := make([]R, 0)
	dest := make([]any, len(cols))
	var slots []slot
	for rows.Next() {
		var (
			a A
			b B
		)
		slots = left.prepare(reflect.ValueOf(&a).Elem(), dest, slots[:0])
		slots = right.prepare(reflect.ValueOf(&b).Elem(), dest, slots)
		if err := rows.Scan(dest...); err != nil {
			return nil, &StatementError{Query: query, Err: fmt.Errorf("scan %T, %T: %w", a, b, err)}
		}
		settle(slots)
		result = append(result, fn(a, b))
	}
	if err := rows.Err(); err != nil {
		return nil, classify(query, err)
	}
	return result, nil
}

// splitIndex returns the position of the last column named splitOn, ignoring
// the first column, or -1.
func splitIndex(cols []string, splitOn string) int {
	for i := len(cols) - 1; i > 0; i-- {
		if strings.EqualFold(cols[i], splitOn) {
			return i
		}
	}
	return -1
}
