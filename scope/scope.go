package scope

import "strings"

// Applier is implemented by table builders to receive scope fragments.
// This interface lives in the scope package so that orm can import scope
// without creating circular dependencies.
type Applier interface {
	ApplyWhere(clause string, args []any)
	ApplyOrderBy(clause string)
	ApplyLimit(n int)
	ApplyOffset(n int)
}

type scopeKind int

const (
	kindWhere scopeKind = iota
	kindOrderBy
	kindLimit
	kindOffset
)

// Scope represents a single query condition fragment.
// Scopes are immutable and safe to reuse across queries.
type Scope struct {
	kind   scopeKind
	clause string
	args   []any
	n      int
}

// Apply dispatches this Scope to the given Applier.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindWhere:
		a.ApplyWhere(s.clause, s.args)
	case kindOrderBy:
		a.ApplyOrderBy(s.clause)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	}
}

// Where returns a Scope that adds a WHERE clause fragment with ? placeholders.
//
//	scope.Where("Price > ?", 1000)
func Where(clause string, args ...any) Scope {
	return Scope{kind: kindWhere, clause: clause, args: args}
}

// Equal returns a WHERE scope comparing column to value.
//
//	scope.Equal("CustomerId", id)  // → WHERE CustomerId = ?
func Equal(column string, value any) Scope {
	return Where(column+" = ?", value)
}

// In returns a WHERE scope with an IN clause, expanding the slice into
// individual placeholders. An empty slice matches nothing.
//
//	scope.In("Id", []int{1, 2, 3})  // → WHERE Id IN (?, ?, ?)
func In[T any](column string, values []T) Scope {
	if len(values) == 0 {
		return Where("1 = 0")
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Where(column+" IN ("+strings.Repeat("?, ", len(values)-1)+"?)", args...)
}

// OrderBy returns a Scope that appends an ORDER BY term.
//
//	scope.OrderBy("StartDate DESC")
func OrderBy(clause string) Scope {
	return Scope{kind: kindOrderBy, clause: clause}
}

// Limit returns a Scope that sets the LIMIT.
func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

// Offset returns a Scope that sets the OFFSET.
func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// Page returns LIMIT/OFFSET scopes for the 1-based page of the given size.
func Page(page, size int) Scopes {
	if page < 1 {
		page = 1
	}
	return Combine(Limit(size), Offset((page-1)*size))
}

// Scopes is a named slice of Scope, useful for conditionally building
// up a set of scopes.
type Scopes []Scope

// Append adds scopes and returns a new Scopes. The receiver is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Combine creates a Scopes from the given scopes.
func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}
