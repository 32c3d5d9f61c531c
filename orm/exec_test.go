package orm_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/mickamy/rowmap/orm"
)

const insertUser = "insert into users (UserName, FirstName) values (@userName, @firstName)"

func TestExecuteSingle(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	n, err := orm.Execute(t.Context(), tq, insertUser, bindUser{UserName: "a", FirstName: "A"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}

	want := "insert into users (UserName, FirstName) values ($1, $2)"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestExecuteList(t *testing.T) {
	t.Parallel()

	users := []bindUser{
		{UserName: "a", FirstName: "A"},
		{UserName: "b", FirstName: "B"},
		{UserName: "c", FirstName: "C"},
	}
	tq := orm.NewTestQuerier(orm.MySQL)
	n, err := orm.Execute(t.Context(), tq, insertUser, users)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != int64(len(users)) {
		t.Errorf("affected = %d, want %d", n, len(users))
	}
	if len(tq.Queries) != len(users) {
		t.Fatalf("statements = %d, want %d", len(tq.Queries), len(users))
	}
	for i, q := range tq.Queries {
		if q.Args[0] != users[i].UserName {
			t.Errorf("statement %d args = %v", i, q.Args)
		}
	}
}

func TestExecuteListOfPointers(t *testing.T) {
	t.Parallel()

	users := []*bindUser{{UserName: "a"}, {UserName: "b"}}
	tq := orm.NewTestQuerier(orm.SQLite)
	if _, err := orm.Execute(t.Context(), tq, insertUser, users); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(tq.Queries) != 2 {
		t.Errorf("statements = %d, want 2", len(tq.Queries))
	}
}

func TestExecuteStopsAtBindError(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, err := orm.Execute(t.Context(), tq, "insert into users (UserName) values (@missing)", []bindUser{{}, {}})

	var se *orm.StatementError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatementError", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("statements = %d, want 0", len(tq.Queries))
	}
}

func TestInsertIDLastInsertID(t *testing.T) {
	t.Parallel()

	for _, d := range []orm.Dialect{orm.MySQL, orm.SQLite} {
		t.Run(d.Name(), func(t *testing.T) {
			t.Parallel()

			tq := orm.NewTestQuerier(d)
			id, err := orm.InsertID(t.Context(), tq, "insert into customers (Name) values (@name);", map[string]any{"name": "Apple"}, "id")
			if err != nil {
				t.Fatalf("InsertID: %v", err)
			}
			if id != 42 {
				t.Errorf("id = %d, want 42", id)
			}
			want := "insert into customers (Name) values (?)"
			if got := tq.LastQuery().SQL; got != want {
				t.Errorf("SQL = %q, want %q", got, want)
			}
		})
	}
}

func TestInsertIDReturning(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = orm.InsertID(t.Context(), tq, "insert into customers (Name) values (@name);", map[string]any{"name": "Apple"}, "id")

	want := `insert into customers (Name) values ($1) RETURNING "id"`
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestQueryScalarBatchExecutesLeadingStatements(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = orm.QueryScalar[int64](t.Context(), tq,
		"insert into customers (Name) values (@name); select lastval()", map[string]any{"name": "Apple"})

	want := []string{"insert into customers (Name) values ($1)", "select lastval()"}
	if len(tq.Queries) != len(want) {
		t.Fatalf("statements = %v, want %q", tq.Queries, want)
	}
	for i, q := range tq.Queries {
		if q.SQL != want[i] {
			t.Errorf("statement %d = %q, want %q", i, q.SQL, want[i])
		}
	}
	if len(tq.Queries[0].Args) != 1 || tq.Queries[0].Args[0] != "Apple" {
		t.Errorf("insert args = %v, want [Apple]", tq.Queries[0].Args)
	}
}

func TestQueryBindErrorRunsNothing(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if _, err := orm.Query[bindUser](t.Context(), tq, "select * from users where Id = @id", nil); err == nil {
		t.Fatal("expected error")
	}
	if _, err := orm.QueryRows(t.Context(), tq, "select @x", nil); err == nil {
		t.Fatal("expected error")
	}
	if len(tq.Queries) != 0 {
		t.Errorf("statements = %d, want 0", len(tq.Queries))
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	const query = "insert into projects (CustomerId) values (?)"
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"bad conn", driver.ErrBadConn, "connection"},
		{"mysql invalid conn", fmt.Errorf("read: %w", mysql.ErrInvalidConn), "connection"},
		{"network", timeoutError{}, "connection"},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452, Message: "cannot add or update a child row"}, "constraint"},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "duplicate entry"}, "constraint"},
		{"mysql syntax", &mysql.MySQLError{Number: 1064, Message: "syntax error"}, "statement"},
		{"postgres foreign key", &pgconn.PgError{Code: "23503"}, "constraint"},
		{"postgres undefined table", &pgconn.PgError{Code: "42P01"}, "statement"},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, "constraint"},
		{"sqlite syntax", sqlite3.Error{Code: sqlite3.ErrError}, "statement"},
		{"other", errors.New("boom"), "statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := orm.Classify(query, tt.err)
			var (
				ce *orm.ConnectionError
				cv *orm.ConstraintViolation
				se *orm.StatementError
			)
			var got string
			switch {
			case errors.As(err, &ce):
				got = "connection"
			case errors.As(err, &cv):
				got = "constraint"
			case errors.As(err, &se):
				got = "statement"
			}
			if got != tt.want {
				t.Errorf("Classify(%v) = %T, want %s", tt.err, err, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Classify(%v) does not wrap the driver error", tt.err)
			}
		})
	}
}

func TestClassifyPassesThrough(t *testing.T) {
	t.Parallel()

	if err := orm.Classify("q", nil); err != nil {
		t.Errorf("Classify(nil) = %v", err)
	}
	for _, sentinel := range []error{
		orm.ErrNotFound, orm.ErrNoMoreResults, orm.ErrTxDone, context.Canceled, context.DeadlineExceeded,
	} {
		if err := orm.Classify("q", sentinel); err != sentinel { //nolint:errorlint
			t.Errorf("Classify(%v) = %v, want sentinel unchanged", sentinel, err)
		}
	}
	wrapped := fmt.Errorf("read: %w", context.DeadlineExceeded)
	var ce *orm.ConnectionError
	if err := orm.Classify("select 1", wrapped); errors.As(err, &ce) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Classify(%v) = %T, want the timeout unchanged", wrapped, err)
	}
	se := &orm.StatementError{Query: "q", Err: errors.New("bad")}
	if err := orm.Classify("other", se); err != se { //nolint:errorlint
		t.Errorf("Classify(StatementError) = %v, want unchanged", err)
	}
}

func TestStatementErrorAbbreviatesQuery(t *testing.T) {
	t.Parallel()

	long := "select " + strings.Repeat("a, ", 100) + "b from t"
	err := &orm.StatementError{Query: long, Err: errors.New("bad")}
	msg := err.Error()
	if len(msg) > 200 {
		t.Errorf("message length = %d, want abbreviated", len(msg))
	}
	if !strings.Contains(msg, "...") {
		t.Errorf("message %q is not abbreviated", msg)
	}
}
