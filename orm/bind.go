package orm

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
)

// NamedArgs can be implemented by parameter types whose values are not
// reachable through exported fields, e.g. types built by a constructor.
type NamedArgs interface {
	NamedArgs() map[string]any
}

// mapper matches column and parameter names to struct fields ignoring case.
// A `db` tag overrides the field name.
var mapper = reflectx.NewMapperTagFunc("db", strings.ToLower, strings.ToLower)

// bind compiles the @name placeholders of query into positional ones for d
// and resolves their values from params.
func bind(d Dialect, query string, params any) (string, []any, error) {
	compiled, names := parseNamed(d, query)
	if len(names) == 0 {
		return rewritePlaceholders(d, compiled), nil, nil
	}

	lookup, err := argLookup(params)
	if err != nil {
		return "", nil, &StatementError{Query: query, Err: err}
	}

	args := make([]any, len(names))
	expand := false
	for i, name := range names {
		v, ok := lookup(name)
		if !ok {
			return "", nil, &StatementError{Query: query, Err: fmt.Errorf("no value for parameter @%s", name)}
		}
		args[i] = v
		if isList(v) {
			expand = true
		}
	}

	if expand {
		compiled, args, err = sqlx.In(compiled, args...)
		if err != nil {
			return "", nil, &StatementError{Query: query, Err: err}
		}
	}
	return rewritePlaceholders(d, compiled), args, nil
}

// parseNamed replaces every @name outside quotes and comments with ?.
// @@name (server variables) is kept verbatim.
func parseNamed(d Dialect, query string) (string, []string) {
	if !strings.Contains(query, "@") {
		return query, nil
	}
	var (
		b     strings.Builder
		names []string
	)
	b.Grow(len(query))
	for i := 0; i < len(query); {
		if end := skipQuoted(d, query, i); end > i {
			b.WriteString(query[i:end])
			i = end
			continue
		}
		c := query[i]
		if c != '@' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(query) && query[i+1] == '@' {
			end := i + 2
			for end < len(query) && isIdentByte(query[end]) {
				end++
			}
			b.WriteString(query[i:end])
			i = end
			continue
		}
		end := i + 1
		for end < len(query) && isIdentByte(query[end]) {
			end++
		}
		if end == i+1 {
			b.WriteByte(c)
			i++
			continue
		}
		names = append(names, strings.ToLower(query[i+1:end]))
		b.WriteByte('?')
		i = end
	}
	return b.String(), names
}

// rewritePlaceholders converts ? to dialect-specific placeholders ($1, $2, …).
func rewritePlaceholders(d Dialect, query string) string {
	if !numbered(d) || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := 0; i < len(query); {
		if end := skipQuoted(d, query, i); end > i {
			b.WriteString(query[i:end])
			i = end
			continue
		}
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
		i++
	}
	return b.String()
}

// splitStatements splits a batch on top-level semicolons.
// Empty statements are dropped.
func splitStatements(d Dialect, batch string) []string {
	var (
		stmts []string
		start int
	)
	for i := 0; i < len(batch); {
		if end := skipQuoted(d, batch, i); end > i {
			i = end
			continue
		}
		if batch[i] == ';' {
			if s := strings.TrimSpace(batch[start:i]); s != "" {
				stmts = append(stmts, s)
			}
			start = i + 1
		}
		i++
	}
	if s := strings.TrimSpace(batch[start:]); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

// skipQuoted returns the index just past the quoted literal, quoted
// identifier or comment starting at i, or i when none starts there.
// MySQL string literals also end only at an unescaped quote.
func skipQuoted(d Dialect, query string, i int) int {
	switch c := query[i]; c {
	case '\'', '"', '`':
		escapes := c != '`' && d == MySQL
		for j := i + 1; j < len(query); j++ {
			switch {
			case escapes && query[j] == '\\':
				j++
			case query[j] == c:
				return j + 1
			}
		}
		return len(query)
	case '-':
		if i+1 < len(query) && query[i+1] == '-' {
			if j := strings.IndexByte(query[i:], '\n'); j >= 0 {
				return i + j + 1
			}
			return len(query)
		}
	case '/':
		if i+1 < len(query) && query[i+1] == '*' {
			if j := strings.Index(query[i+2:], "*/"); j >= 0 {
				return i + 2 + j + 2
			}
			return len(query)
		}
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// argLookup returns a case-insensitive accessor for the named values in params.
func argLookup(params any) (func(name string) (any, bool), error) {
	switch p := params.(type) {
	case nil:
		return func(string) (any, bool) { return nil, false }, nil
	case NamedArgs:
		return mapLookup(p.NamedArgs()), nil
	case map[string]any:
		return mapLookup(p), nil
	}

	v := reflect.ValueOf(params)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("nil %s parameters", v.Type())
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		tm := mapper.TypeMap(v.Type())
		return func(name string) (any, bool) {
			fi := tm.GetByPath(name)
			if fi == nil {
				return nil, false
			}
			f, ok := fieldByIndex(v, fi.Index)
			if !ok {
				return nil, true
			}
			return f.Interface(), true
		}, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported parameter map key %s", v.Type().Key())
		}
		m := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return mapLookup(m), nil
	}
	return nil, fmt.Errorf("unsupported parameter type %T", params)
}

func mapLookup(m map[string]any) func(string) (any, bool) {
	lower := make(map[string]any, len(m))
	for k, v := range m {
		lower[strings.ToLower(k)] = v
	}
	return func(name string) (any, bool) {
		v, ok := lower[name]
		return v, ok
	}
}

// fieldByIndex walks a field path without allocating; ok is false when a nil
// pointer is met on the way.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 {
			if v.Kind() == reflect.Pointer {
				if v.IsNil() {
					return reflect.Value{}, false
				}
				v = v.Elem()
			}
		}
		v = v.Field(x)
	}
	return v, true
}

var valuerType = reflect.TypeFor[driver.Valuer]()

// isList reports whether v is a slice that should expand into a parameter
// list. Byte slices and driver.Valuer implementations are single values.
func isList(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Implements(valuerType) {
		return false
	}
	return t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8
}
