// internal/admin/service.go
//
// Generic CRUD engine shared by every entity screen.
//
// Context
// -------
// One Service drives all schemas.  Each operation takes the site and the
// entity name explicitly, looks up the YAML schema, and runs the same
// pipeline:
//
//	create   validate(input)            → insert        → audit
//	update   get → validate(merged)     → update → get  → audit
//	set      get → validate(merged)     → update field and its coupled
//	                                      targets → get → audit
//	delete   asset paths → one batch removal → delete row → audit
//
// Validation happens before any write, so a rejected record never touches
// the database.  Every mutation increments metrics.ContentMutations and
// writes one audit line carrying the admin (from the request logger), the
// site, entity, id, and the client summary from requestinfo.
//
// Delete ordering
// ---------------
// Asset keys are read fresh from the row just before removal, never from
// what the client last saw.  Keys outside the row's own site are skipped.  Removal is best-effort: a failure is logged,
// counted, and returned as DeleteResult.Warning, and the row delete still
// runs.  A row that cannot be found aborts before anything is removed.
//
// Notes
// -----
// • The service never reads a "current site".  Callers pass it.
// • Oxford commas, two spaces after periods.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yanizio/siteadmin/internal/asset"
	"github.com/yanizio/siteadmin/internal/content"
	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/metrics"
	"github.com/yanizio/siteadmin/internal/requestinfo"
	"github.com/yanizio/siteadmin/internal/site"
)

var (
	// ErrSingleton is returned when a list-style operation targets a
	// singleton entity.
	ErrSingleton = errors.New("entity holds a single record per site")

	// ErrNotSingleton is returned by SaveSingle for list entities.
	ErrNotSingleton = errors.New("entity is not a singleton")

	// ErrNotInline is returned by SetField for fields without `inline`.
	ErrNotInline = errors.New("field cannot be changed from the list")
)

// CleanupWarning is the text returned when asset removal fails.
const CleanupWarning = "Record deleted, but some files could not be removed from storage."

// Accessor is the site-scoped data layer.  *content.Store implements it.
type Accessor interface {
	Registry() *form.Registry
	Schema(table string) (*form.Schema, error)
	List(ctx context.Context, table string, s site.Site, orderCol string, ascending bool) ([]content.Record, error)
	Single(ctx context.Context, table string, s site.Site) (content.Record, error)
	Get(ctx context.Context, table string, s site.Site, id string) (content.Record, error)
	Insert(ctx context.Context, table string, s site.Site, rec content.Record) (content.Record, error)
	Update(ctx context.Context, table string, s site.Site, id string, rec content.Record) error
	Delete(ctx context.Context, table string, s site.Site, id string) error
	AssetPaths(ctx context.Context, table string, s site.Site, id string) ([]string, error)
	Count(ctx context.Context, table string, s site.Site) (int, error)
}

// AssetRemover deletes object keys in one request.  asset.Store satisfies it.
type AssetRemover interface {
	Remove(ctx context.Context, keys ...string) error
}

// DeleteResult reports a completed delete.
type DeleteResult struct {
	Warning string `json:"warning,omitempty"`
}

// Service runs the CRUD pipeline.
type Service struct {
	store  Accessor
	assets AssetRemover
	now    func() time.Time
}

// New wires a Service.
func New(store Accessor, assets AssetRemover) *Service {
	return &Service{store: store, assets: assets, now: func() time.Time { return time.Now().UTC() }}
}

// Schemas returns every registered schema sorted by id.
func (svc *Service) Schemas() []*form.Schema { return svc.store.Registry().All() }

// Schema returns the schema for entity.
func (svc *Service) Schema(entity string) (*form.Schema, error) { return svc.store.Schema(entity) }

// Table fetches the list view for entity.  On failure the returned Table is
// still usable: it has no rows and carries the user message in Error.
func (svc *Service) Table(ctx context.Context, s site.Site, entity string, opts form.TableOptions) (form.Table, error) {
	sc, err := svc.store.Schema(entity)
	if err != nil {
		return form.Table{Entity: entity, Site: s.String(), Rows: []form.TableRow{}, Error: "Unknown content type."}, err
	}

	recs, err := svc.store.List(ctx, entity, s, "", sc.Ascending)
	if err != nil {
		logger.FromContext(ctx).Errorw("list failed", "site", s, "entity", entity, "err", err)
		t := form.BuildTable(sc, s.String(), nil, opts)
		t.Error = database.Message(err)
		return t, err
	}

	rows := make([]map[string]any, len(recs))
	for i, r := range recs {
		rows[i] = r
	}
	return form.BuildTable(sc, s.String(), rows, opts), nil
}

// List returns the raw records of entity ordered by orderCol.  An empty
// orderCol uses the schema default.
func (svc *Service) List(ctx context.Context, s site.Site, entity, orderCol string, ascending bool) ([]content.Record, error) {
	return svc.store.List(ctx, entity, s, orderCol, ascending)
}

// Get returns one record.
func (svc *Service) Get(ctx context.Context, s site.Site, entity, id string) (content.Record, error) {
	return svc.store.Get(ctx, entity, s, id)
}

// Single returns the singleton record of entity, or content.ErrNotFound
// before the first save.
func (svc *Service) Single(ctx context.Context, s site.Site, entity string) (content.Record, error) {
	sc, err := svc.store.Schema(entity)
	if err != nil {
		return nil, err
	}
	if !sc.Singleton {
		return nil, fmt.Errorf("%s: %w", entity, ErrNotSingleton)
	}
	return svc.store.Single(ctx, entity, s)
}

// Create validates input and inserts a new record.
func (svc *Service) Create(ctx context.Context, s site.Site, entity string, input map[string]any) (content.Record, error) {
	sc, err := svc.store.Schema(entity)
	if err != nil {
		return nil, err
	}
	if sc.Singleton {
		return nil, fmt.Errorf("%s: %w", entity, ErrSingleton)
	}
	return svc.create(ctx, sc, s, input)
}

func (svc *Service) create(ctx context.Context, sc *form.Schema, s site.Site, input map[string]any) (content.Record, error) {
	clean, err := sc.Validate(withSite(input, s), nil, svc.now())
	if err != nil {
		svc.record(ctx, "create", sc.ID, s, "", err)
		return nil, err
	}

	rec, err := svc.store.Insert(ctx, sc.ID, s, clean)
	svc.record(ctx, "create", sc.ID, s, rec.ID(), err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update merges input over the stored record, validates the result, and
// writes it.  Fields missing from input keep their stored values.
func (svc *Service) Update(ctx context.Context, s site.Site, entity, id string, input map[string]any) (content.Record, error) {
	sc, err := svc.store.Schema(entity)
	if err != nil {
		return nil, err
	}
	return svc.update(ctx, sc, s, id, input)
}

func (svc *Service) update(ctx context.Context, sc *form.Schema, s site.Site, id string, input map[string]any) (content.Record, error) {
	prev, err := svc.store.Get(ctx, sc.ID, s, id)
	if err != nil {
		return nil, err
	}

	merged := prev.Clone()
	for k, v := range input {
		merged[k] = v
	}
	clean, err := sc.Validate(withSite(merged, s), prev, svc.now())
	if err != nil {
		svc.record(ctx, "update", sc.ID, s, id, err)
		return nil, err
	}

	err = svc.store.Update(ctx, sc.ID, s, id, clean)
	svc.record(ctx, "update", sc.ID, s, id, err)
	if err != nil {
		return nil, err
	}
	return svc.store.Get(ctx, sc.ID, s, id)
}

// SaveSingle creates the singleton record on first save and updates it
// afterwards.
func (svc *Service) SaveSingle(ctx context.Context, s site.Site, entity string, input map[string]any) (content.Record, error) {
	sc, err := svc.store.Schema(entity)
	if err != nil {
		return nil, err
	}
	if !sc.Singleton {
		return nil, fmt.Errorf("%s: %w", entity, ErrNotSingleton)
	}

	cur, err := svc.store.Single(ctx, entity, s)
	switch {
	case errors.Is(err, content.ErrNotFound):
		return svc.create(ctx, sc, s, input)
	case err != nil:
		return nil, err
	}
	return svc.update(ctx, sc, s, cur.ID(), input)
}

// SetField changes one inline field of a record, e.g. a status transition
// or a publish toggle.  The whole record is revalidated, and only the field
// and the targets it clears or stamps are written.
func (svc *Service) SetField(ctx context.Context, s site.Site, entity, id, field string, value any) (content.Record, error) {
	sc, err := svc.store.Schema(entity)
	if err != nil {
		return nil, err
	}
	f, ok := sc.Field(field)
	if !ok || !f.Inline {
		return nil, fmt.Errorf("%s.%s: %w", entity, field, ErrNotInline)
	}

	prev, err := svc.store.Get(ctx, entity, s, id)
	if err != nil {
		return nil, err
	}
	merged := prev.Clone()
	merged[field] = value

	clean, err := sc.Validate(withSite(merged, s), prev, svc.now())
	if err != nil {
		svc.record(ctx, "set", entity, s, id, err)
		return nil, err
	}

	patch := content.Record{field: clean[field]}
	if f.Clears != "" {
		patch[f.Clears] = clean[f.Clears]
	}
	if f.Stamps != "" {
		patch[f.Stamps] = clean[f.Stamps]
	}

	err = svc.store.Update(ctx, entity, s, id, patch)
	svc.record(ctx, "set", entity, s, id, err, "field", field)
	if err != nil {
		return nil, err
	}
	return svc.store.Get(ctx, entity, s, id)
}

// Delete removes a record and, first, the objects it references.
func (svc *Service) Delete(ctx context.Context, s site.Site, entity, id string) (DeleteResult, error) {
	var res DeleteResult
	log := logger.FromContext(ctx)

	paths, err := svc.store.AssetPaths(ctx, entity, s, id)
	switch {
	case errors.Is(err, content.ErrNotFound), errors.Is(err, content.ErrUnknownEntity):
		return res, err
	case err != nil:
		log.Errorw("read asset paths", "site", s, "entity", entity, "id", id, "err", err)
		metrics.AssetCleanupFailures.WithLabelValues(entity).Inc()
		res.Warning = CleanupWarning
	default:
		paths = ownedKeys(ctx, s, entity, id, paths)
		if len(paths) == 0 {
			break
		}
		if err := svc.assets.Remove(ctx, paths...); err != nil {
			log.Errorw("asset cleanup failed", "site", s, "entity", entity, "id", id, "paths", paths, "err", err)
			metrics.AssetCleanupFailures.WithLabelValues(entity).Inc()
			res.Warning = CleanupWarning
		}
	}

	err = svc.store.Delete(ctx, entity, s, id)
	svc.record(ctx, "delete", entity, s, id, err, "assets", len(paths))
	if err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

// record writes the audit line and bumps the mutation counter.
func (svc *Service) record(ctx context.Context, op, entity string, s site.Site, id string, err error, extra ...any) {
	result := metrics.ResultOK
	switch {
	case form.IsValidationError(err):
		result = metrics.ResultInvalid
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ContentMutations.WithLabelValues(entity, op, result).Inc()

	kv := append([]any{"op", op, "site", s, "entity", entity, "id", id, "result", result}, extra...)
	kv = append(kv, requestinfo.FromContext(ctx).LogFields()...)

	log := logger.FromContext(ctx)
	switch result {
	case metrics.ResultOK:
		log.Infow("content "+op, kv...)
	case metrics.ResultInvalid:
		log.Infow("content "+op+" rejected", append(kv, "err", err)...)
	default:
		log.Errorw("content "+op+" failed", append(kv, "err", err)...)
	}
}

// ownedKeys keeps the keys that belong to s.  Anything else is logged and
// left in storage.
func ownedKeys(ctx context.Context, s site.Site, entity, id string, paths []string) []string {
	out := paths[:0:0]
	for _, p := range paths {
		if err := asset.CheckOwned(s, p); err != nil {
			logger.FromContext(ctx).Warnw("asset cleanup skipped foreign key",
				"site", s, "entity", entity, "id", id, "path", p, "err", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

// withSite copies input with the site key forced to s.
func withSite(input map[string]any, s site.Site) map[string]any {
	out := make(map[string]any, len(input)+1)
	for k, v := range input {
		out[k] = v
	}
	out[form.ColSite] = s.String()
	return out
}
