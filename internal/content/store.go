// internal/content/store.go
//
// Site-scoped data accessor for every schema-declared table.
//
// Context
// -------
// One Store serves all entity tables.  The table name and every column name
// are checked against the form.Registry before any SQL is built, so the only
// identifiers ever interpolated into a query are ones declared in YAML.
// Values always travel as bind parameters.
//
// Every statement carries `WHERE site = ?`.  There is no method that reads
// or writes across sites, and `site` itself is never updated.
//
// Ordering
// --------
// List orders by the requested column, then by created_at ascending, then by
// id, so rows sharing an order_index come back in insertion order.
//
// Notes
// -----
// • Errors are returned as values and wrapped with the table name.  Callers
//   classify them with database.Classify.
// • A missing row on Single, Get, Update, or Delete is ErrNotFound.
package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/site"
)

var (
	// ErrNotFound is returned when a required row is missing.
	ErrNotFound = database.ErrRecordNotFound

	// ErrUnknownEntity is returned for a table with no schema.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownColumn is returned for an order column the table lacks.
	ErrUnknownColumn = errors.New("unknown column")
)

// Store reads and writes entity rows.
type Store struct {
	db    *sqlx.DB
	reg   *form.Registry
	now   func() time.Time
	newID func() string
}

// NewStore binds db to the schemas in reg.
func NewStore(db *sqlx.DB, reg *form.Registry) *Store {
	return &Store{
		db:    db,
		reg:   reg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Registry exposes the schemas the store was built with.
func (st *Store) Registry() *form.Registry { return st.reg }

// Schema returns the schema for table or ErrUnknownEntity.
func (st *Store) Schema(table string) (*form.Schema, error) {
	s, ok := st.reg.Get(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, table)
	}
	return s, nil
}

// List returns every row of table for s ordered by orderCol.  An empty
// orderCol uses the schema default.  No rows is an empty slice, not an error.
func (st *Store) List(ctx context.Context, table string, s site.Site, orderCol string, ascending bool) ([]Record, error) {
	sc, err := st.Schema(table)
	if err != nil {
		return nil, err
	}
	if orderCol == "" {
		orderCol = sc.OrderBy
	}
	if !sc.HasColumn(orderCol) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, orderCol)
	}

	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	order := orderCol + " " + dir
	if orderCol != form.ColCreatedAt {
		order += ", " + form.ColCreatedAt + " ASC"
	}
	order += ", " + form.ColID + " ASC"

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE site = ? ORDER BY %s`,
		strings.Join(sc.SelectColumns(), ", "), sc.ID, order)

	rows, err := st.db.QueryxContext(ctx, st.db.Rebind(q), s.String())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		raw := make(map[string]any, len(sc.Fields)+3)
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, normalize(sc, raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return out, nil
}

// Single returns the one row of a singleton table for s.  If several exist
// the oldest wins.
func (st *Store) Single(ctx context.Context, table string, s site.Site) (Record, error) {
	sc, err := st.Schema(table)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE site = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		strings.Join(sc.SelectColumns(), ", "), sc.ID)
	return st.queryOne(ctx, sc, q, s.String())
}

// Get returns row id of table for s.
func (st *Store) Get(ctx context.Context, table string, s site.Site, id string) (Record, error) {
	sc, err := st.Schema(table)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE site = ? AND id = ?`,
		strings.Join(sc.SelectColumns(), ", "), sc.ID)
	return st.queryOne(ctx, sc, q, s.String(), id)
}

func (st *Store) queryOne(ctx context.Context, sc *form.Schema, q string, args ...any) (Record, error) {
	raw := make(map[string]any, len(sc.Fields)+3)
	if err := st.db.QueryRowxContext(ctx, st.db.Rebind(q), args...).MapScan(raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", sc.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", sc.ID, err)
	}
	return normalize(sc, raw), nil
}

// Insert stores rec as a new row for s.  The store assigns id and both
// timestamps; a `site` key in rec is ignored.  Only schema fields present in
// rec are written, so column defaults apply to the rest.
func (st *Store) Insert(ctx context.Context, table string, s site.Site, rec Record) (Record, error) {
	sc, err := st.Schema(table)
	if err != nil {
		return nil, err
	}

	now := st.now()
	out := Record{
		form.ColID:        st.newID(),
		form.ColSite:      s.String(),
		form.ColCreatedAt: now,
		form.ColUpdatedAt: now,
	}
	cols := []string{form.ColID, form.ColSite}
	args := []any{out[form.ColID], s.String()}

	for _, f := range sc.Fields {
		v, ok := rec[f.Name]
		if !ok || f.Name == form.ColSite {
			continue
		}
		cols = append(cols, f.Name)
		args = append(args, bindValue(f.Type, v))
		out[f.Name] = v
	}
	cols = append(cols, form.ColCreatedAt, form.ColUpdatedAt)
	args = append(args, now, now)

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		sc.ID, strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := st.db.ExecContext(ctx, st.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

// Update writes the schema fields present in rec to row id.  `site` is never
// changed.  updated_at is always bumped.
func (st *Store) Update(ctx context.Context, table string, s site.Site, id string, rec Record) error {
	sc, err := st.Schema(table)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	for _, f := range sc.Fields {
		v, ok := rec[f.Name]
		if !ok || f.Name == form.ColSite {
			continue
		}
		sets = append(sets, f.Name+" = ?")
		args = append(args, bindValue(f.Type, v))
	}
	sets = append(sets, form.ColUpdatedAt+" = ?")
	args = append(args, st.now(), s.String(), id)

	q := fmt.Sprintf(`UPDATE %s SET %s WHERE site = ? AND id = ?`, sc.ID, strings.Join(sets, ", "))
	res, err := st.db.ExecContext(ctx, st.db.Rebind(q), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return requireRow(res, sc.ID)
}

// Delete removes row id.  Asset cleanup is the caller's job; see AssetPaths.
func (st *Store) Delete(ctx context.Context, table string, s site.Site, id string) error {
	sc, err := st.Schema(table)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE site = ? AND id = ?`, sc.ID)
	res, err := st.db.ExecContext(ctx, st.db.Rebind(q), s.String(), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return requireRow(res, sc.ID)
}

// AssetPaths reads the current object keys held by row id, single fields
// and list items alike, skipping blanks and duplicates.  Tables with no
// asset fields return nil without touching the database.
func (st *Store) AssetPaths(ctx context.Context, table string, s site.Site, id string) ([]string, error) {
	sc, err := st.Schema(table)
	if err != nil {
		return nil, err
	}
	fields := sc.AssetFields()
	if len(fields) == 0 {
		return nil, nil
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE site = ? AND id = ?`, strings.Join(cols, ", "), sc.ID)

	raw := make(map[string]any, len(cols))
	if err := st.db.QueryRowxContext(ctx, st.db.Rebind(q), s.String(), id).MapScan(raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", sc.ID, ErrNotFound)
		}
		return nil, fmt.Errorf("asset paths %s: %w", table, err)
	}
	rec := normalize(sc, raw)

	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if p = strings.TrimSpace(p); p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	for _, f := range fields {
		switch v := rec[f.Name].(type) {
		case string:
			add(v)
		case []string:
			for _, p := range v {
				add(p)
			}
		}
	}
	return paths, nil
}

// Count returns the number of rows of table for s.
func (st *Store) Count(ctx context.Context, table string, s site.Site) (int, error) {
	sc, err := st.Schema(table)
	if err != nil {
		return 0, err
	}
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE site = ?`, sc.ID)
	if err := st.db.GetContext(ctx, &n, st.db.Rebind(q), s.String()); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func requireRow(res sql.Result, table string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", table, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
