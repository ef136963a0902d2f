package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/site"
	"github.com/yanizio/siteadmin/schemas"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func registry(t *testing.T) *form.Registry {
	t.Helper()
	reg, err := form.LoadRegistry(schemas.FS)
	require.NoError(t, err)
	return reg
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := NewStore(sqlx.NewDb(db, "sqlmock"), registry(t))
	st.now = func() time.Time { return t0 }
	st.newID = func() string { return "id-1" }
	return st, mock
}

// newSQLiteStore runs the real migrations against a private in-memory
// database.
func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))
	return NewStore(db, registry(t))
}

func TestList_RejectsUnknownIdentifiers(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	_, err := st.List(ctx, "users", site.Company, "", true)
	require.ErrorIs(t, err, ErrUnknownEntity)

	_, err = st.List(ctx, "services", site.Company, "order_index; DROP TABLE services", true)
	require.ErrorIs(t, err, ErrUnknownColumn)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_ScopesBySiteAndNormalizes(t *testing.T) {
	st, mock := newMockStore(t)

	cols := []string{"id", "site", "title", "slug", "description", "icon", "image_path", "features", "order_index", "is_active", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT id, site, title, .* FROM services WHERE site = \? ORDER BY order_index ASC, created_at ASC, id ASC`).
		WithArgs("company").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s1", "company", []byte("Audit"), nil, "Desc", nil, nil, `["Fast","Cheap"]`, int64(0), int64(1), t0, t0))

	got, err := st.List(context.Background(), "services", site.Company, "order_index", true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Audit", got[0]["title"])
	assert.Equal(t, []string{"Fast", "Cheap"}, got[0]["features"])
	assert.Equal(t, true, got[0]["is_active"])
	assert.Equal(t, int64(0), got[0]["order_index"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`FROM timeline_items WHERE site = \?`).
		WithArgs("ngo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := st.List(context.Background(), "timeline_items", site.NGO, "", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestList_FailureReturnedAsValue(t *testing.T) {
	st, mock := newMockStore(t)
	boom := errors.New("connection refused")
	mock.ExpectQuery(`FROM events`).WillReturnError(boom)

	got, err := st.List(context.Background(), "events", site.NGO, "", false)
	require.ErrorIs(t, err, boom)
	require.Nil(t, got)
}

func TestSingle_MissIsNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`FROM contact_info WHERE site = \? ORDER BY created_at ASC, id ASC LIMIT 1`).
		WithArgs("company").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.Single(context.Background(), "contact_info", site.Company)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, database.KindNotFound, database.Classify(err))
}

func TestInsert_AssignsIDSiteAndTimestamps(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO projects \(id, site, title, slug, gallery_images, end_date, is_ongoing, created_at, updated_at\) VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)`).
		WithArgs("id-1", "ngo", "River Cleanup", "river-cleanup", `["ngo/projects/a.jpg"]`, nil, true, t0, t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := st.Insert(context.Background(), "projects", site.NGO, Record{
		"site":           "company",
		"title":          "River Cleanup",
		"slug":           "river-cleanup",
		"gallery_images": []string{"ngo/projects/a.jpg"},
		"end_date":       nil,
		"is_ongoing":     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.ID())
	assert.Equal(t, "ngo", rec["site"])
	assert.Equal(t, t0, rec["created_at"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NeverTouchesSite(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE volunteers SET status = \?, updated_at = \? WHERE site = \? AND id = \?`).
		WithArgs("approved", t0, "ngo", "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.Update(context.Background(), "volunteers", site.NGO, "v1", Record{"status": "approved", "site": "company"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDelete_ZeroRowsIsNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE services`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM services WHERE site = \? AND id = \?`).
		WithArgs("company", "other-site-row").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.Update(context.Background(), "services", site.Company, "x", Record{"title": "New"})
	require.ErrorIs(t, err, ErrNotFound)
	err = st.Delete(context.Background(), "services", site.Company, "other-site-row")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssetPaths(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT cover_image, gallery_images FROM projects WHERE site = \? AND id = \?`).
		WithArgs("ngo", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"cover_image", "gallery_images"}).
			AddRow("ngo/projects/cover.jpg", `["ngo/projects/a.jpg","","ngo/projects/cover.jpg","ngo/projects/b.jpg"]`))

	paths, err := st.AssetPaths(context.Background(), "projects", site.NGO, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ngo/projects/cover.jpg", "ngo/projects/a.jpg", "ngo/projects/b.jpg"}, paths)

	// No asset fields, no query.
	paths, err = st.AssetPaths(context.Background(), "timeline_items", site.NGO, "t1")
	require.NoError(t, err)
	assert.Empty(t, paths)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLite_TenantIsolation(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	for _, reg := range st.Registry().All() {
		if reg.Singleton {
			continue
		}
		_, err := st.Insert(ctx, reg.ID, site.Company, minimalRecord(reg))
		require.NoError(t, err, reg.ID)
		_, err = st.Insert(ctx, reg.ID, site.NGO, minimalRecord(reg))
		require.NoError(t, err, reg.ID)
	}

	for _, reg := range st.Registry().All() {
		for _, s := range site.All() {
			rows, err := st.List(ctx, reg.ID, s, "", true)
			require.NoError(t, err, reg.ID)
			for _, r := range rows {
				require.Equal(t, s.String(), r["site"], "%s leaked a row across sites", reg.ID)
			}
		}
	}

	// A row from one site is invisible to the other by id as well.
	rec, err := st.Insert(ctx, "services", site.NGO, Record{"title": "Water", "description": "Clean water for all."})
	require.NoError(t, err)
	_, err = st.Get(ctx, "services", site.Company, rec.ID())
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, st.Delete(ctx, "services", site.Company, rec.ID()), ErrNotFound)

	n, err := st.Count(ctx, "services", site.NGO)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSQLite_OrderedByIndexThenCreatedAt(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	clock := t0
	st.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	for _, idx := range []int64{2, 0, 1} {
		_, err := st.Insert(ctx, "services", site.Company, Record{
			"title":       "Service " + string(rune('A'+idx)),
			"description": "Ten chars at least.",
			"order_index": idx,
		})
		require.NoError(t, err)
	}
	_, err := st.Insert(ctx, "services", site.NGO, Record{"title": "Other", "description": "Ten chars at least.", "order_index": int64(0)})
	require.NoError(t, err)

	rows, err := st.List(ctx, "services", site.Company, "order_index", true)
	require.NoError(t, err)
	var got []int64
	for _, r := range rows {
		got = append(got, r["order_index"].(int64))
	}
	require.Equal(t, []int64{0, 1, 2}, got)
}

func TestSQLite_RoundTripTypes(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	published := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	rec, err := st.Insert(ctx, "blog_posts", site.Company, Record{
		"title": "Hello", "slug": "hello", "content": "Ten chars at least.",
		"tags": []string{"news", "impact"}, "is_published": true, "published_at": published,
	})
	require.NoError(t, err)

	got, err := st.Get(ctx, "blog_posts", site.Company, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"news", "impact"}, got["tags"])
	assert.Equal(t, true, got["is_published"])
	assert.Equal(t, false, got["is_featured"])
	assert.True(t, published.Equal(got["published_at"].(time.Time)))

	p, err := st.Insert(ctx, "projects", site.NGO, Record{
		"title": "River Cleanup", "slug": "river-cleanup", "start_date": "2026-04-01",
	})
	require.NoError(t, err)
	got, err = st.Get(ctx, "projects", site.NGO, p.ID())
	require.NoError(t, err)
	assert.Equal(t, "2026-04-01", got["start_date"])
	assert.Nil(t, got["end_date"])
	assert.Equal(t, []string{}, got["gallery_images"])
}

// minimalRecord satisfies every NOT NULL column of s.
func minimalRecord(s *form.Schema) Record {
	rec := Record{}
	for _, f := range s.Fields {
		if !f.Required || f.Name == form.ColSite {
			continue
		}
		switch f.Type {
		case form.TypeSelect:
			rec[f.Name] = f.Options[0]
		case form.TypeSlug:
			rec[f.Name] = "item"
		case form.TypeEmail:
			rec[f.Name] = "someone@example.org"
		case form.TypeDateTime:
			rec[f.Name] = t0
		default:
			rec[f.Name] = "Filler text value"
		}
	}
	return rec
}
