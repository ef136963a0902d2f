package site

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockStore(t *testing.T) (*SettingsStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSettingsStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestParse(t *testing.T) {
	if s, err := Parse("ngo"); err != nil || s != NGO {
		t.Fatalf("Parse(ngo) = %q, %v", s, err)
	}
	if _, err := Parse("Company"); !errors.Is(err, ErrUnknownSite) {
		t.Fatalf("Parse(Company) err = %v, want ErrUnknownSite", err)
	}
}

func TestSettingsAll_OverlaysDefaults(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT\s+setting_key, value\s+FROM\s+site_setting\s+WHERE\s+site = \?`).
		WithArgs("company").
		WillReturnRows(sqlmock.NewRows([]string{"setting_key", "value"}).
			AddRow("maintenance_mode", true).
			AddRow("legacy_flag", true))

	got, err := st.All(context.Background(), Company)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []Setting{
		{WebsiteEnabled, true},
		{BlogEnabled, true},
		{ContactFormEnabled, true},
		{MaintenanceMode, true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d settings, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("setting %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSettingsSet_InsertsWhenMissing(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE\s+site_setting`).
		WithArgs(false, sqlmock.AnyArg(), "ngo", "blog_enabled").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO site_setting`).
		WithArgs("ngo", "blog_enabled", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := st.Set(context.Background(), NGO, BlogEnabled, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSettingsSet_RejectsUnknownKey(t *testing.T) {
	st, _ := newMockStore(t)
	err := st.Set(context.Background(), NGO, Key("dark_mode"), true)
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("err = %v, want ErrUnknownKey", err)
	}
}
