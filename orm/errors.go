package orm

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a query expects exactly one row but finds none.
	ErrNotFound = errors.New("orm: not found")

	// ErrNoMoreResults is returned by Read when every result set of a batch
	// has already been consumed.
	ErrNoMoreResults = errors.New("orm: no more result sets")

	// ErrTxDone is returned when a session already has a transaction, or is closed.
	ErrTxDone = errors.New("orm: transaction already started or session closed")
)

// ConnectionError reports a failure to open, reach or keep a connection.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return "orm: " + e.Op + ": " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError reports malformed SQL, an unbindable parameter or a row that
// does not fit the destination type.
type StatementError struct {
	Query string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("orm: statement %q: %v", abbreviate(e.Query), e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// ConstraintViolation reports a referential, uniqueness or not-null failure
// raised by the server.
type ConstraintViolation struct {
	Query string
	Err   error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("orm: constraint violation in %q: %v", abbreviate(e.Query), e.Err)
}

func (e *ConstraintViolation) Unwrap() error { return e.Err }

// classify wraps a driver error in the matching error type. Sentinel errors,
// context cancellation and errors already classified pass through unchanged.
func classify(query string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ce *ConnectionError
		se *StatementError
		cv *ConstraintViolation
	)
	switch {
	case errors.As(err, &ce), errors.As(err, &se), errors.As(err, &cv),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrNoMoreResults), errors.Is(err, ErrTxDone),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isConnectionError(err):
		return &ConnectionError{Op: "exec", Err: err}
	case isConstraintViolation(err):
		return &ConstraintViolation{Query: query, Err: err}
	}
	return &StatementError{Query: query, Err: err}
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func isConstraintViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1048, // column cannot be null
			1062, // duplicate entry
			1451, // cannot delete or update a parent row
			1452: // cannot add or update a child row
			return true
		}
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func abbreviate(query string) string {
	const maxLen = 120
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > maxLen {
		return query[:maxLen] + "..."
	}
	return query
}
