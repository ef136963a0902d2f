// internal/database/migrate.go
//
// Embedded goose migrations.
//
// Context
// -------
// The SQL under migrations/ sticks to the subset MySQL, Postgres, and SQLite
// all accept, so one set of files serves every driver.  Only the goose
// dialect differs, which tracks the version table syntax.
//
// Notes
// -----
// • goose keeps its base FS and dialect in package globals; Migrate sets both
//   on every call.  Bootstrap runs it once, before any request is served.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// gooseUpContext is a seam for tests that only care about dialect wiring.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Dialect maps a database/sql driver name onto the goose dialect.
func Dialect(driver string) (string, error) {
	switch driver {
	case DriverMySQL:
		return "mysql", nil
	case DriverPostgres:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("no migration dialect for driver %q", driver)
}

// Migrate applies every pending migration to db.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect, err := Dialect(db.DriverName())
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationFS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
