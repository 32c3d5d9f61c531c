// Package config resolves named database connections from the environment.
//
// A connection named "jinx" is read from ROWMAP_JINX_DIALECT, ROWMAP_JINX_DSN
// and friends. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
package config

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"

	"github.com/mickamy/rowmap/orm"
)

// DefaultName is the connection used when none is given.
const DefaultName = "jinx"

// Connection describes one named database connection.
type Connection struct {
	Name            string        `ignored:"true"`
	Dialect         string        `default:"sqlite3"`
	DSN             string        `required:"true"`
	MaxOpenConns    int           `split_words:"true" default:"10"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"30m"`
}

// Load resolves the named connection. An empty name means DefaultName.
func Load(name string, envFiles ...string) (Connection, error) {
	if name == "" {
		name = DefaultName
	}
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return Connection{}, fmt.Errorf("config: load %v: %w", envFiles, err)
	}

	var c Connection
	if err := envconfig.Process(Prefix(name), &c); err != nil {
		return Connection{}, fmt.Errorf("config: connection %q: %w", name, err)
	}
	c.Name = name
	if _, err := orm.DialectByName(c.Dialect); err != nil {
		return Connection{}, fmt.Errorf("config: connection %q: %w", name, err)
	}
	return c, nil
}

// Prefix returns the environment prefix of the named connection.
func Prefix(name string) string {
	return "ROWMAP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Open opens and pings the connection.
func (c Connection) Open(ctx context.Context) (*orm.DB, error) {
	d, err := orm.DialectByName(c.Dialect)
	if err != nil {
		return nil, err
	}
	raw, err := c.sqlDB(d)
	if err != nil {
		return nil, &orm.ConnectionError{Op: "open " + c.Name, Err: err}
	}
	raw.SetMaxOpenConns(c.MaxOpenConns)
	raw.SetMaxIdleConns(c.MaxOpenConns)
	raw.SetConnMaxLifetime(c.ConnMaxLifetime)
	return orm.OpenDB(ctx, raw, d)
}

func (c Connection) sqlDB(d orm.Dialect) (*sql.DB, error) {
	switch d {
	case orm.MySQL:
		dsn, err := MySQLDSN(c.DSN)
		if err != nil {
			return nil, err
		}
		return sql.Open("mysql", dsn)
	case orm.PostgreSQL:
		cfg, err := pgx.ParseConfig(c.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		return stdlib.OpenDB(*cfg), nil
	default:
		return sql.Open("sqlite3", SQLiteDSN(c.DSN))
	}
}

// MySQLDSN normalizes a MySQL DSN: timestamps are parsed into time.Time and
// multi-statement batches are allowed. Parameters are interpolated client
// side because the prepared statement protocol rejects batches.
func MySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.InterpolateParams = true
	return cfg.FormatDSN(), nil
}

// SQLiteDSN turns on foreign key enforcement and a busy timeout unless the
// DSN already sets them.
func SQLiteDSN(dsn string) string {
	path, query, _ := strings.Cut(dsn, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return dsn
	}
	if values.Get("_foreign_keys") == "" && values.Get("_fk") == "" {
		values.Set("_foreign_keys", "on")
	}
	if values.Get("_busy_timeout") == "" && values.Get("_timeout") == "" {
		values.Set("_busy_timeout", "5000")
	}
	return path + "?" + values.Encode()
}
