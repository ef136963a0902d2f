// Package database centralises sqlx connection helpers.  Three drivers are
// wired in:
//
//	mysql   go-sql-driver/mysql   MySQL and MariaDB.
//	pgx     jackc/pgx stdlib      Postgres, including hosted Postgres.
//	sqlite  modernc.org/sqlite    single-file or in-memory, dev and tests.
//
// Public entry points:
//
//	Open(ctx, Options)     – open, tune, and Ping a pool.
//	Migrate(ctx, db)       – run the embedded goose migrations.
//	Classify(err)          – map driver errors onto a small Kind taxonomy.
//
// Queries elsewhere are written with `?` placeholders and passed through
// db.Rebind, so one SQL string serves every dialect.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Supported driver names, as registered with database/sql.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

func init() {
	// sqlx does not know modernc's driver name; teach it the bind style.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options tunes one pool.  Zero values fall back to conservative defaults:
// 15 max open, 5 idle, and a 30-minute connection lifetime.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open returns a ready *sqlx.DB.  It pings before returning so callers can
// fail fast during bootstrap.
func Open(ctx context.Context, o Options) (*sqlx.DB, error) {
	dsn, err := normalizeDSN(o.Driver, o.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(o.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", o.Driver, err)
	}

	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 15
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.Driver == DriverSQLite {
		// One writer at a time; avoids SQLITE_BUSY under concurrent requests.
		o.MaxOpenConns = 1
		o.MaxIdleConns = 1
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", o.Driver, err)
	}
	return db, nil
}

// normalizeDSN forces the MySQL flags the stores rely on: parseTime so DATE
// and TIMESTAMP columns scan into time.Time, and clientFoundRows so an UPDATE
// that leaves a row unchanged still reports it as matched.  SQLite gets
// foreign key enforcement, which is off per connection by default.
func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.ClientFoundRows = true
		if cfg.Loc == nil {
			cfg.Loc = time.UTC
		}
		return cfg.FormatDSN(), nil
	case DriverSQLite:
		if strings.Contains(dsn, "foreign_keys") {
			return dsn, nil
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_pragma=foreign_keys(1)", nil
	case DriverPostgres:
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}
