// Package migrations holds the schema of the users, customers and projects
// tables for every supported dialect and applies it with sql-migrate.
package migrations

import (
	"embed"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/mickamy/rowmap/orm"
)

// TableName is where applied migrations are recorded.
const TableName = "schema_migrations"

//go:embed mysql postgres sqlite3
var files embed.FS

// Source returns the migrations for d.
func Source(d orm.Dialect) migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{FileSystem: files, Root: d.Name()}
}

// Up applies every pending migration and returns how many ran.
func Up(db *orm.DB) (int, error) {
	return run(db, migrate.Up, 0)
}

// Down rolls back at most limit migrations; 0 rolls back all of them.
func Down(db *orm.DB, limit int) (int, error) {
	return run(db, migrate.Down, limit)
}

func run(db *orm.DB, dir migrate.MigrationDirection, limit int) (int, error) {
	set := migrate.MigrationSet{TableName: TableName}
	d := db.Dialect()
	n, err := set.ExecMax(db.Raw(), d.Name(), Source(d), dir, limit)
	if err != nil {
		return n, fmt.Errorf("migrations: %s %s: %w", d.Name(), direction(dir), err)
	}
	return n, nil
}

func direction(dir migrate.MigrationDirection) string {
	if dir == migrate.Up {
		return "up"
	}
	return "down"
}
