package admin

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/siteadmin/internal/content"
	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/site"
	"github.com/yanizio/siteadmin/schemas"
)

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func registry(t *testing.T) *form.Registry {
	t.Helper()
	reg, err := form.LoadRegistry(schemas.FS)
	require.NoError(t, err)
	return reg
}

// fakeAssets records Remove calls into a shared event log.
type fakeAssets struct {
	events *[]string
	calls  [][]string
	err    error
}

func (f *fakeAssets) Remove(_ context.Context, keys ...string) error {
	if f.events != nil {
		*f.events = append(*f.events, "remove")
	}
	f.calls = append(f.calls, keys)
	return f.err
}

// spyStore logs the accessor calls Delete makes, in order.
type spyStore struct {
	*content.Store
	events *[]string
}

func (s spyStore) AssetPaths(ctx context.Context, table string, st site.Site, id string) ([]string, error) {
	*s.events = append(*s.events, "asset_paths")
	return s.Store.AssetPaths(ctx, table, st, id)
}

func (s spyStore) Delete(ctx context.Context, table string, st site.Site, id string) error {
	*s.events = append(*s.events, "delete")
	return s.Store.Delete(ctx, table, st, id)
}

func newSQLiteService(t *testing.T, assets AssetRemover) *Service {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Options{
		Driver: database.DriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	svc := New(content.NewStore(db, registry(t)), assets)
	svc.now = func() time.Time { return t0 }
	return svc
}

/*──────────────────────── delete ordering (sqlmock) ───────────────────────*/

func TestDelete_ReadsPathsThenOneRemovalThenRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var events []string
	store := spyStore{Store: content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), events: &events}
	assets := &fakeAssets{events: &events}
	svc := New(store, assets)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT cover_image, gallery_images FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("ngo", "p-1").
		WillReturnRows(sqlmock.NewRows([]string{"cover_image", "gallery_images"}).
			AddRow("ngo/projects/cover.jpg", `["ngo/projects/a.jpg","ngo/projects/b.jpg","ngo/projects/cover.jpg"]`))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("ngo", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.Delete(context.Background(), site.NGO, "projects", "p-1")
	require.NoError(t, err)
	assert.Empty(t, res.Warning)

	assert.Equal(t, []string{"asset_paths", "remove", "delete"}, events)
	require.Len(t, assets.calls, 1, "exactly one batch removal")
	assert.Equal(t, []string{"ngo/projects/cover.jpg", "ngo/projects/a.jpg", "ngo/projects/b.jpg"}, assets.calls[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NoAssetsSkipsRemoval(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assets := &fakeAssets{}
	svc := New(content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), assets)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT cover_image, gallery_images FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("company", "p-2").
		WillReturnRows(sqlmock.NewRows([]string{"cover_image", "gallery_images"}).AddRow(nil, "[]"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("company", "p-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = svc.Delete(context.Background(), site.Company, "projects", "p-2")
	require.NoError(t, err)
	assert.Empty(t, assets.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_MissingRowRemovesNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assets := &fakeAssets{}
	svc := New(content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), assets)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT cover_image, gallery_images FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("ngo", "gone").
		WillReturnRows(sqlmock.NewRows([]string{"cover_image", "gallery_images"}))

	_, err = svc.Delete(context.Background(), site.NGO, "projects", "gone")
	require.ErrorIs(t, err, content.ErrNotFound)
	assert.Empty(t, assets.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_SkipsKeysOutsideTheSite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assets := &fakeAssets{}
	svc := New(content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), assets)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT cover_image, gallery_images FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("company", "p-3").
		WillReturnRows(sqlmock.NewRows([]string{"cover_image", "gallery_images"}).
			AddRow("ngo/projects/shared.jpg", `["../../../etc/passwd","company/projects/own.jpg"]`))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("company", "p-3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.Delete(context.Background(), site.Company, "projects", "p-3")
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	require.Len(t, assets.calls, 1)
	assert.Equal(t, []string{"company/projects/own.jpg"}, assets.calls[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_OnlyForeignKeysSkipsRemoval(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assets := &fakeAssets{}
	svc := New(content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), assets)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT cover_image, gallery_images FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("company", "p-4").
		WillReturnRows(sqlmock.NewRows([]string{"cover_image", "gallery_images"}).AddRow("ngo/hero/shared.jpg", "[]"))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM projects WHERE site = ? AND id = ?`)).
		WithArgs("company", "p-4").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = svc.Delete(context.Background(), site.Company, "projects", "p-4")
	require.NoError(t, err)
	assert.Empty(t, assets.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ForeignAssetKeyRejected(t *testing.T) {
	assets := &fakeAssets{}
	svc := newSQLiteService(t, assets)
	ctx := context.Background()

	for _, bad := range []string{"ngo/hero/shared.jpg", "../../../etc/passwd"} {
		_, err := svc.Create(ctx, site.Company, "hero_sections", map[string]any{
			"title":      "Welcome",
			"image_path": bad,
		})
		ve, ok := form.AsValidationError(err)
		require.True(t, ok, "%s: want validation error, got %v", bad, err)
		assert.Equal(t, form.AssetKeyMessage, ve.Map()["image_path"])
	}

	list, err := svc.List(ctx, site.Company, "hero_sections", "", true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_BadSlugNeverReachesStorage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := New(content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), &fakeAssets{})

	_, err = svc.Create(context.Background(), site.Company, "services", map[string]any{
		"title":       "Consulting",
		"slug":        "Bad Slug!",
		"description": "Strategy work for partners.",
	})
	ve, ok := form.AsValidationError(err)
	require.True(t, ok, "want validation error, got %v", err)
	assert.Contains(t, ve.Map(), "slug")
	require.NoError(t, mock.ExpectationsWereMet(), "no SQL may run")
}

/*──────────────────────── sqlite scenarios ────────────────────────────────*/

func TestScenario_NGORiverCleanupProject(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, site.NGO, "projects", map[string]any{
		"title":      "River Cleanup",
		"is_ongoing": true,
		"start_date": "2026-02-01",
		"end_date":   "2026-06-30",
		"site":       "company",
	})
	require.NoError(t, err)
	assert.Equal(t, "river-cleanup", rec["slug"])

	got, err := svc.Get(ctx, site.NGO, "projects", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "ngo", got["site"], "site comes from the URL, never the body")
	assert.Equal(t, true, got["is_ongoing"])
	assert.Nil(t, got["end_date"], "ongoing clears end_date")
	assert.Equal(t, "2026-02-01", got["start_date"])

	_, err = svc.Get(ctx, site.Company, "projects", rec.ID())
	require.ErrorIs(t, err, content.ErrNotFound, "company cannot see ngo rows")
}

func TestScenario_ServicesOrderedByIndex(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	for i, idx := range []int{2, 0, 1} {
		svc.now = func() time.Time { return t0.Add(time.Duration(i) * time.Minute) }
		_, err := svc.Create(ctx, site.Company, "services", map[string]any{
			"title":       "Service " + string(rune('A'+i)),
			"description": "A service we offer to partners.",
			"order_index": idx,
		})
		require.NoError(t, err)
	}

	tbl, err := svc.Table(ctx, site.Company, "services", form.TableOptions{
		PagePath: "/admin/company/services", APIPath: "/api/sites/company/services",
	})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "Service B", tbl.Rows[0].Cells[0].Text)
	assert.Equal(t, "Service C", tbl.Rows[1].Cells[0].Text)
	assert.Equal(t, "Service A", tbl.Rows[2].Cells[0].Text)
}

func TestScenario_ContactInfoBadMapURL(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	_, err := svc.SaveSingle(ctx, site.Company, "contact_info", map[string]any{
		"email":         "",
		"map_embed_url": "ftp://bad",
	})
	ve, ok := form.AsValidationError(err)
	require.True(t, ok, "want validation error, got %v", err)
	assert.Equal(t, map[string]string{"map_embed_url": "Must be a valid http(s) URL."}, ve.Map())

	_, err = svc.Single(ctx, site.Company, "contact_info")
	require.ErrorIs(t, err, content.ErrNotFound, "nothing was written")
}

func TestSaveSingle_CreatesThenUpdates(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	first, err := svc.SaveSingle(ctx, site.NGO, "contact_info", map[string]any{"email": "hello@ngo.example.org"})
	require.NoError(t, err)

	second, err := svc.SaveSingle(ctx, site.NGO, "contact_info", map[string]any{"phone": "+254 700 000000"})
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, "hello@ngo.example.org", second["email"], "unsent fields keep their values")
	assert.Equal(t, "+254 700 000000", second["phone"])

	_, err = svc.Single(ctx, site.Company, "contact_info")
	require.ErrorIs(t, err, content.ErrNotFound, "company has its own singleton")
}

func TestSetField_PublishStampsOnce(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	post, err := svc.Create(ctx, site.NGO, "blog_posts", map[string]any{
		"title":   "Spring Update",
		"content": "Volunteers planted 400 trees.",
	})
	require.NoError(t, err)
	assert.Nil(t, post["published_at"])

	svc.now = func() time.Time { return t0.Add(time.Hour) }
	pub, err := svc.SetField(ctx, site.NGO, "blog_posts", post.ID(), "is_published", true)
	require.NoError(t, err)
	stamp, ok := pub["published_at"].(time.Time)
	require.True(t, ok, "published_at = %#v", pub["published_at"])
	assert.True(t, stamp.Equal(t0.Add(time.Hour)))

	svc.now = func() time.Time { return t0.Add(48 * time.Hour) }
	_, err = svc.SetField(ctx, site.NGO, "blog_posts", post.ID(), "is_published", false)
	require.NoError(t, err)
	again, err := svc.SetField(ctx, site.NGO, "blog_posts", post.ID(), "is_published", true)
	require.NoError(t, err)
	assert.True(t, again["published_at"].(time.Time).Equal(stamp), "existing stamp is never overwritten")

	saved, err := svc.Update(ctx, site.NGO, "blog_posts", post.ID(), map[string]any{"excerpt": "Trees!"})
	require.NoError(t, err)
	assert.True(t, saved["published_at"].(time.Time).Equal(stamp), "re-save keeps the stamp")
}

func TestSetField_RejectsNonInline(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	_, err := svc.SetField(context.Background(), site.NGO, "blog_posts", "x", "title", "New")
	require.ErrorIs(t, err, ErrNotInline)
}

func TestSetField_StatusTransition(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	v, err := svc.Create(ctx, site.NGO, "volunteers", map[string]any{
		"full_name": "Wanjiru Kamau",
		"email":     "wanjiru@example.org",
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", v["status"])

	got, err := svc.SetField(ctx, site.NGO, "volunteers", v.ID(), "status", "approved")
	require.NoError(t, err)
	assert.Equal(t, "approved", got["status"])

	_, err = svc.SetField(ctx, site.NGO, "volunteers", v.ID(), "status", "maybe")
	require.True(t, form.IsValidationError(err))
}

func TestDelete_CleanupFailureStillDeletes(t *testing.T) {
	assets := &fakeAssets{err: errors.New("bucket unreachable")}
	svc := newSQLiteService(t, assets)
	ctx := context.Background()

	rec, err := svc.Create(ctx, site.NGO, "team_members", map[string]any{
		"name":        "Amani Otieno",
		"position":    "Field Coordinator",
		"avatar_path": "ngo/team/amani.webp",
	})
	require.NoError(t, err)

	res, err := svc.Delete(ctx, site.NGO, "team_members", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, CleanupWarning, res.Warning)
	require.Len(t, assets.calls, 1)
	assert.Equal(t, []string{"ngo/team/amani.webp"}, assets.calls[0])

	_, err = svc.Get(ctx, site.NGO, "team_members", rec.ID())
	require.ErrorIs(t, err, content.ErrNotFound)
}

func TestDelete_OtherSiteIsNotFound(t *testing.T) {
	assets := &fakeAssets{}
	svc := newSQLiteService(t, assets)
	ctx := context.Background()

	rec, err := svc.Create(ctx, site.Company, "team_members", map[string]any{
		"name":        "Lena Park",
		"position":    "Director",
		"avatar_path": "company/team/lena.png",
	})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, site.NGO, "team_members", rec.ID())
	require.ErrorIs(t, err, content.ErrNotFound)
	assert.Empty(t, assets.calls)

	_, err = svc.Get(ctx, site.Company, "team_members", rec.ID())
	require.NoError(t, err, "company row survives")
}

func TestCreate_SingletonRejected(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	_, err := svc.Create(context.Background(), site.NGO, "contact_info", map[string]any{})
	require.ErrorIs(t, err, ErrSingleton)
}

func TestDashboard(t *testing.T) {
	svc := newSQLiteService(t, &fakeAssets{})
	ctx := context.Background()

	for _, title := range []string{"Rapid Response", "Clean Water"} {
		_, err := svc.Create(ctx, site.NGO, "projects", map[string]any{"title": title})
		require.NoError(t, err)
	}

	counts, err := svc.Dashboard(ctx, site.NGO)
	require.NoError(t, err)
	require.Len(t, counts, len(svc.Schemas()))

	byEntity := map[string]int{}
	for _, c := range counts {
		byEntity[c.Entity] = c.Count
	}
	assert.Equal(t, 2, byEntity["projects"])
	assert.Equal(t, 0, byEntity["services"])

	counts, err = svc.Dashboard(ctx, site.Company)
	require.NoError(t, err)
	for _, c := range counts {
		assert.Zero(t, c.Count, c.Entity)
	}
}

func TestTable_FetchFailureIsInline(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := New(content.NewStore(sqlx.NewDb(db, "sqlmock"), registry(t)), &fakeAssets{})
	mock.ExpectQuery(`SELECT .* FROM events`).WillReturnError(errors.New("connection refused"))

	tbl, err := svc.Table(context.Background(), site.NGO, "events", form.TableOptions{})
	require.Error(t, err)
	assert.Empty(t, tbl.Rows)
	assert.Equal(t, "Events", tbl.Title)
	assert.NotEmpty(t, tbl.Error)
}
