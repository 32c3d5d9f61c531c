package orm

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Querier is the common interface for DB, Session and Tx.
// Every query function accepts it so that statements run the same way on a
// pool, a pinned connection or inside a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	dialect() Dialect
}

// DB wraps a connection pool with a Dialect and satisfies Querier.
type DB struct {
	raw    *sqlx.DB
	d      Dialect
	logger Logger
}

// New wraps a *sql.DB with the given Dialect without contacting the server.
func New(db *sql.DB, d Dialect) *DB {
	return &DB{raw: sqlx.NewDb(db, d.Name()), d: d}
}

// Open opens a pool for driverName/dsn and verifies it with a ping.
// Any failure is reported as a *ConnectionError.
func Open(ctx context.Context, d Dialect, driverName, dsn string) (*DB, error) {
	raw, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &ConnectionError{Op: "open " + driverName, Err: err}
	}
	return OpenDB(ctx, raw, d)
}

// OpenDB wraps an already configured *sql.DB and verifies it with a ping.
// The pool is closed again when the ping fails.
func OpenDB(ctx context.Context, raw *sql.DB, d Dialect) (*DB, error) {
	db := New(raw, d)
	if err := db.raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, &ConnectionError{Op: "ping " + d.Name(), Err: err}
	}
	return db, nil
}

// Debug returns a new *DB that logs every query using the given Logger.
// The original DB is not modified.
func (db *DB) Debug(l Logger) *DB {
	return &DB{raw: db.raw, d: db.d, logger: l}
}

// Dialect returns the dialect the DB was opened with.
func (db *DB) Dialect() Dialect { return db.d }

// Raw returns the underlying *sql.DB, e.g. for migrations.
func (db *DB) Raw() *sql.DB { return db.raw.DB }

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	logQuery(ctx, db.logger, query, args)
	return db.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	logQuery(ctx, db.logger, query, args)
	return db.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Begin starts a transaction on a connection taken from the pool.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.raw.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &ConnectionError{Op: "begin", Err: err}
	}
	return &Tx{raw: tx, d: db.d, logger: db.logger}, nil
}

// Transaction executes fn within a transaction.
// If fn returns nil the transaction is committed.
// If fn returns an error or panics the transaction is rolled back.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	err = fn(tx)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Acquire pins one connection from the pool for the lifetime of a Session.
// The caller must Close the Session.
func (db *DB) Acquire(ctx context.Context) (*Session, error) {
	conn, err := db.raw.Connx(ctx)
	if err != nil {
		return nil, &ConnectionError{Op: "acquire", Err: err}
	}
	return &Session{conn: conn, d: db.d, logger: db.logger}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() error { return db.raw.Close() } //nolint:wrapcheck // thin wrapper

func (db *DB) dialect() Dialect { return db.d }

// Tx wraps *sqlx.Tx with a Dialect and satisfies Querier.
type Tx struct {
	raw    *sqlx.Tx
	d      Dialect
	logger Logger
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	logQuery(ctx, tx.logger, query, args)
	return tx.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	logQuery(ctx, tx.logger, query, args)
	return tx.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.raw.Commit() } //nolint:wrapcheck // thin wrapper

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error { return tx.raw.Rollback() } //nolint:wrapcheck // thin wrapper

func (tx *Tx) dialect() Dialect { return tx.d }

// Session owns one pinned connection and at most one transaction on it.
// Statements issued on the Session run on that same connection, so once
// Begin has been called they belong to the transaction too and are
// discarded by its rollback.
type Session struct {
	conn   *sqlx.Conn
	tx     *Tx
	d      Dialect
	logger Logger
	closed bool
}

// WithSession acquires a Session, runs fn and closes the Session on every
// exit path. An uncommitted transaction is rolled back by the close.
func WithSession(ctx context.Context, db *DB, fn func(s *Session) error) (err error) {
	s, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(s)
}

// Begin starts the session's transaction. A session carries at most one.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	if s.closed || s.tx != nil {
		return nil, ErrTxDone
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &ConnectionError{Op: "begin", Err: err}
	}
	s.tx = &Tx{raw: tx, d: s.d, logger: s.logger}
	return s.tx, nil
}

func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	logQuery(ctx, s.logger, query, args)
	return s.conn.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	logQuery(ctx, s.logger, query, args)
	return s.conn.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Close rolls back a transaction that was not committed and returns the
// connection to the pool. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var rbErr error
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			rbErr = err
		}
	}
	return errors.Join(rbErr, s.conn.Close())
}

func (s *Session) dialect() Dialect { return s.d }
