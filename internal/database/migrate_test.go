package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestDialect(t *testing.T) {
	for driver, want := range map[string]string{
		DriverMySQL:    "mysql",
		DriverPostgres: "postgres",
		DriverSQLite:   "sqlite3",
	} {
		got, err := Dialect(driver)
		require.NoError(t, err)
		require.Equal(t, want, got, driver)
	}
	_, err := Dialect("oracle")
	require.Error(t, err)
}

func TestMigrate_UsesEmbeddedDir(t *testing.T) {
	db, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: "file:migrate_seam?mode=memory"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	require.Equal(t, "migrations", gotDir)
}

func TestMigrate_SQLiteCreatesTables(t *testing.T) {
	db, err := Open(context.Background(), Options{Driver: DriverSQLite, DSN: "file:migrate_real?mode=memory"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(context.Background(), db))

	for _, table := range []string{"services", "projects", "blog_posts", "contact_info", "site_setting", "admin_user"} {
		var n int
		err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
		require.NoError(t, err)
		require.Equal(t, 1, n, table)
	}
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN(DriverMySQL, "user:pw@tcp(db:3306)/site")
	require.NoError(t, err)
	require.Contains(t, dsn, "parseTime=true")
	require.Contains(t, dsn, "clientFoundRows=true")

	dsn, err = normalizeDSN(DriverSQLite, "file:x.db?cache=shared")
	require.NoError(t, err)
	require.Equal(t, "file:x.db?cache=shared&_pragma=foreign_keys(1)", dsn)

	_, err = normalizeDSN("oracle", "x")
	require.Error(t, err)
}
