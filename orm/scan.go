package orm

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"
)

var (
	scannerType = reflect.TypeFor[sql.Scanner]()
	timeType    = reflect.TypeFor[time.Time]()
)

// plan maps a contiguous range of result columns onto one destination type.
// Struct types bind by case-insensitive column name; scalar types take the
// first column of the range. Unmatched columns are discarded.
type plan struct {
	typ    reflect.Type
	scalar bool
	offset int
	fields [][]int // per column in range; nil discards
}

// slot is a nullable holder whose value is copied into target after Scan.
// NULL leaves target at its zero value.
type slot struct {
	target reflect.Value
	holder reflect.Value
}

func newPlan(t reflect.Type, columns []string, offset int) *plan {
	p := &plan{typ: t, offset: offset, fields: make([][]int, len(columns))}
	if isScalar(t) {
		p.scalar = true
		return p
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = strings.ToLower(c)
	}
	for i, idx := range mapper.TraversalsByName(t, names) {
		if len(idx) > 0 {
			p.fields[i] = idx
		}
	}
	return p
}

func isScalar(t reflect.Type) bool {
	return t.Kind() != reflect.Struct || t == timeType || reflect.PointerTo(t).Implements(scannerType)
}

// prepare fills dest with scan targets pointing into v (an addressable
// value of p.typ) and returns the slots to settle once Scan succeeds.
func (p *plan) prepare(v reflect.Value, dest []any, slots []slot) []slot {
	for i := range p.fields {
		var target reflect.Value
		switch {
		case p.scalar && i == 0:
			target = v
		case !p.scalar && p.fields[i] != nil:
			target = fieldByIndexAlloc(v, p.fields[i])
		default:
			dest[p.offset+i] = new(any)
			continue
		}
		if target.Kind() == reflect.Pointer {
			dest[p.offset+i] = target.Addr().Interface()
			continue
		}
		holder := reflect.New(reflect.PointerTo(target.Type()))
		dest[p.offset+i] = holder.Interface()
		slots = append(slots, slot{target: target, holder: holder})
	}
	return slots
}

func settle(slots []slot) {
	for _, s := range slots {
		if ptr := s.holder.Elem(); !ptr.IsNil() {
			s.target.Set(ptr.Elem())
		}
	}
}

// fieldByIndexAlloc walks a field path, allocating nil pointers on the way.
func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// scanAll reads the remaining rows of the current result set into T.
// The result is never nil.
func scanAll[T any](query string, rows *sql.Rows) ([]T, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(query, err)
	}
	p := newPlan(reflect.TypeFor[T](), cols, 0)

	result := make([]T, 0)
	dest := make([]any, len(cols))
	var slots []slot
	for rows.Next() {
		var item T
		slots = p.prepare(reflect.ValueOf(&item).Elem(), dest, slots[:0])
		if err := rows.Scan(dest...); err != nil {
			return nil, &StatementError{Query: query, Err: fmt.Errorf("scan %T: %w", item, err)}
		}
		settle(slots)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(query, err)
	}
	return result, nil
}

// Row is one dynamically typed result row. Column lookups ignore case.
type Row struct {
	columns []string
	values  []any
}

// Columns returns the column names in result order.
func (r Row) Columns() []string { return r.columns }

// Get returns the value of the named column. Text returned as bytes by the
// driver is converted to string.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.columns {
		if strings.EqualFold(c, name) {
			return r.values[i], true
		}
	}
	return nil, false
}

// String returns the named column formatted as text; NULL and missing
// columns yield "".
func (r Row) String(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Int64 returns the named column as an integer; NULL, missing and
// non-numeric columns yield 0.
func (r Row) Int64(name string) int64 {
	v, _ := r.Get(name)
	var n sql.NullInt64
	if err := n.Scan(v); err != nil {
		return 0
	}
	return n.Int64
}

func scanRows(query string, rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, classify(query, err)
	}
	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &StatementError{Query: query, Err: err}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, Row{columns: cols, values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(query, err)
	}
	return result, nil
}
