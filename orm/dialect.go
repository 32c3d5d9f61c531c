package orm

import "fmt"

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name is the engine name as understood by the driver registry and the
	// migration tool: "mysql", "postgres" or "sqlite3".
	Name() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL and SQLite return "?" regardless of index;
	// PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name) to safely
	// handle SQL reserved words.
	QuoteIdent(name string) string

	// UseReturning reports whether an insert should use a RETURNING clause
	// to retrieve the generated identity (PostgreSQL) rather than relying
	// on LastInsertId (MySQL, SQLite).
	UseReturning() bool

	// ReturningClause returns the RETURNING clause appended to INSERT
	// statements, or an empty string when UseReturning is false.
	ReturningClause(pk string) string

	// MultiResultSets reports whether one round trip of a multi-statement
	// batch yields every result set through sql.Rows.NextResultSet.
	MultiResultSets() bool
}

// MySQL is the Dialect for MySQL / MariaDB. Multi-result batches require the
// multiStatements DSN option.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL through the pgx stdlib driver.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite through mattn/go-sqlite3.
var SQLite Dialect = sqliteDialect{}

// DialectByName returns the Dialect registered under name.
// "postgresql", "pgx" and "sqlite" are accepted as aliases.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return PostgreSQL, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	}
	return nil, fmt.Errorf("orm: unknown dialect %q", name)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                    { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string        { return "?" }
func (mysqlDialect) QuoteIdent(name string) string   { return "`" + name + "`" }
func (mysqlDialect) UseReturning() bool              { return false }
func (mysqlDialect) ReturningClause(_ string) string { return "" }
func (mysqlDialect) MultiResultSets() bool           { return true }

type postgresDialect struct{}

func (postgresDialect) Name() string                     { return "postgres" }
func (postgresDialect) Placeholder(index int) string     { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string    { return `"` + name + `"` }
func (postgresDialect) UseReturning() bool               { return true }
func (postgresDialect) ReturningClause(pk string) string { return ` RETURNING "` + pk + `"` }
func (postgresDialect) MultiResultSets() bool            { return false }

type sqliteDialect struct{}

func (sqliteDialect) Name() string                    { return "sqlite3" }
func (sqliteDialect) Placeholder(_ int) string        { return "?" }
func (sqliteDialect) QuoteIdent(name string) string   { return `"` + name + `"` }
func (sqliteDialect) UseReturning() bool              { return false }
func (sqliteDialect) ReturningClause(_ string) string { return "" }
func (sqliteDialect) MultiResultSets() bool           { return false }

// numbered reports whether the dialect uses numbered placeholders.
func numbered(d Dialect) bool {
	return d.Placeholder(1) != d.Placeholder(2)
}
