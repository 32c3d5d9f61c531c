package orm_test

import (
	"testing"

	"github.com/mickamy/rowmap/orm"
	"github.com/mickamy/rowmap/scope"
)

type account struct {
	ID   int
	Name string
}

func TestTableNameInference(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if got := orm.From[account](tq).Name(); got != "accounts" {
		t.Errorf("Name = %q, want %q", got, "accounts")
	}
	if got := orm.FromTable[account](tq, "legacy_accounts").Name(); got != "legacy_accounts" {
		t.Errorf("Name = %q, want %q", got, "legacy_accounts")
	}
}

func TestBuildSelectAll(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, _ = orm.From[account](tq).All(t.Context())

	got := tq.LastQuery()
	want := "SELECT * FROM `accounts`"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestBuildSelectWhere(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, _ = orm.From[account](tq).Where("Name = ?", "alice").All(t.Context())

	got := tq.LastQuery()
	want := "SELECT * FROM `accounts` WHERE Name = ?"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 1 || got.Args[0] != "alice" {
		t.Errorf("Args = %v", got.Args)
	}
}

func TestBuildSelectMultipleWhere(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, _ = orm.From[account](tq).Where("Name = ? OR Name = ?", "a", "b").Where("Id > ?", 10).All(t.Context())

	got := tq.LastQuery()
	want := "SELECT * FROM `accounts` WHERE (Name = ? OR Name = ?) AND (Id > ?)"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 3 {
		t.Errorf("Args = %v, want 3 args", got.Args)
	}
}

func TestBuildSelectFull(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = orm.From[account](tq).
		Where("Name = ?", "alice").
		Where("Id > ?", 10).
		OrderBy("Id DESC").
		Limit(5).
		Offset(10).
		All(t.Context())

	got := tq.LastQuery()
	want := `SELECT * FROM "accounts" WHERE (Name = $1) AND (Id > $2) ORDER BY Id DESC LIMIT 5 OFFSET 10`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestBuildSelectOffsetWithoutLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dialect orm.Dialect
		want    string
	}{
		{"MySQL", orm.MySQL, "SELECT * FROM `accounts` LIMIT 18446744073709551615 OFFSET 5"},
		{"PostgreSQL", orm.PostgreSQL, `SELECT * FROM "accounts" OFFSET 5`},
		{"SQLite", orm.SQLite, `SELECT * FROM "accounts" LIMIT -1 OFFSET 5`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tq := orm.NewTestQuerier(tt.dialect)
			_, _ = orm.From[account](tq).Offset(5).All(t.Context())
			if got := tq.LastQuery().SQL; got != tt.want {
				t.Errorf("SQL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildSelectWithScopes(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.SQLite)
	_, _ = orm.From[account](tq).
		Scopes(scope.In("Id", []int{1, 2}), scope.OrderBy("Name")).
		Scopes(scope.Page(2, 10)...).
		All(t.Context())

	got := tq.LastQuery()
	want := `SELECT * FROM "accounts" WHERE Id IN (?, ?) ORDER BY Name LIMIT 10 OFFSET 10`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != 1 || got.Args[1] != 2 {
		t.Errorf("Args = %v, want [1 2]", got.Args)
	}
}

func TestTableImmutability(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	base := orm.From[account](tq).Where("Name = ?", "alice")
	_ = base.Where("Id > ?", 1).OrderBy("Id").Limit(1)

	_, _ = base.All(t.Context())

	want := "SELECT * FROM `accounts` WHERE Name = ?"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestFirstAddsLimit(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, _ = orm.From[account](tq).First(t.Context())

	want := "SELECT * FROM `accounts` LIMIT 1"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestBuildCount(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	_, _ = orm.From[account](tq).Where("Name = ?", "alice").Limit(3).Count(t.Context())

	want := `SELECT COUNT(*) FROM "accounts" WHERE Name = $1`
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}

func TestBuildDelete(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	n, err := orm.From[account](tq).Where("Id = ?", 7).Delete(t.Context())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}

	got := tq.LastQuery()
	want := `DELETE FROM "accounts" WHERE Id = $1`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 1 || got.Args[0] != 7 {
		t.Errorf("Args = %v, want [7]", got.Args)
	}
}

func TestDeleteWithoutWhereReturnsError(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if _, err := orm.From[account](tq).Delete(t.Context()); err == nil {
		t.Fatal("expected error for Delete without WHERE")
	}
	if len(tq.Queries) != 0 {
		t.Errorf("expected no statement, got %v", tq.Queries)
	}
}

func TestDeleteAllIgnoresWhere(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	if _, err := orm.From[account](tq).Where("Id = ?", 1).DeleteAll(t.Context()); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	want := "DELETE FROM `accounts`"
	if got := tq.LastQuery().SQL; got != want {
		t.Errorf("SQL = %q, want %q", got, want)
	}
}
