// internal/site/settings.go
//
// Site-wide boolean switches stored in the `site_setting` table.
//
// Context
// -------
// Each site owns a small, fixed set of feature switches.  Rows are keyed by
// (site, setting_key) and carry one boolean.  A key with no stored row falls
// back to its default, so a fresh database behaves sensibly before anyone
// opens the settings screen.
//
//	site_setting (site, setting_key, value, updated_at)
//
// Keys outside the recognised set are ignored on read and rejected on write.
//
// Notes
// -----
// • Set is an update-then-insert pair rather than a dialect-specific upsert so
//   the same SQL runs on MySQL, Postgres, and SQLite.  MySQL pools must set
//   clientFoundRows (database.Open does this) or an unchanged value would
//   report zero affected rows and trigger a duplicate insert.
// • Oxford commas, two spaces after periods.
package site

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Key names one recognised setting.
type Key string

const (
	WebsiteEnabled     Key = "website_enabled"
	BlogEnabled        Key = "blog_enabled"
	ContactFormEnabled Key = "contact_form_enabled"
	MaintenanceMode    Key = "maintenance_mode"
)

// ErrUnknownKey is returned when a caller names a setting outside Keys().
var ErrUnknownKey = errors.New("unknown setting key")

var defaults = map[Key]bool{
	WebsiteEnabled:     true,
	BlogEnabled:        true,
	ContactFormEnabled: true,
	MaintenanceMode:    false,
}

// Keys returns every recognised key in display order.
func Keys() []Key {
	return []Key{WebsiteEnabled, BlogEnabled, ContactFormEnabled, MaintenanceMode}
}

// Default reports the value used when no row is stored.
func Default(k Key) (bool, bool) {
	v, ok := defaults[k]
	return v, ok
}

// ParseKey validates raw against the recognised set.
func ParseKey(raw string) (Key, error) {
	k := Key(raw)
	if _, ok := defaults[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, raw)
	}
	return k, nil
}

// Setting is one resolved switch.
type Setting struct {
	Key   Key  `json:"key"`
	Value bool `json:"value"`
}

// SettingsStore reads and writes site_setting rows.
type SettingsStore struct {
	db *sqlx.DB
}

// NewSettingsStore wraps db.
func NewSettingsStore(db *sqlx.DB) *SettingsStore { return &SettingsStore{db: db} }

// All returns every recognised setting for s, stored values overlaid on the
// defaults.
func (st *SettingsStore) All(ctx context.Context, s Site) ([]Setting, error) {
	const q = `
	    SELECT  setting_key, value
	    FROM    site_setting
	    WHERE   site = ?`
	rows := make([]struct {
		Key   string `db:"setting_key"`
		Value bool   `db:"value"`
	}, 0, len(defaults))

	if err := st.db.SelectContext(ctx, &rows, st.db.Rebind(q), s.String()); err != nil {
		return nil, fmt.Errorf("load settings for %s: %w", s, err)
	}

	resolved := make(map[Key]bool, len(defaults))
	for k, v := range defaults {
		resolved[k] = v
	}
	for _, r := range rows {
		if _, ok := defaults[Key(r.Key)]; ok {
			resolved[Key(r.Key)] = r.Value
		}
	}

	out := make([]Setting, 0, len(resolved))
	for _, k := range Keys() {
		out = append(out, Setting{Key: k, Value: resolved[k]})
	}
	return out, nil
}

// Set stores value for (s, k).
func (st *SettingsStore) Set(ctx context.Context, s Site, k Key, value bool) error {
	if _, ok := defaults[k]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, k)
	}
	now := time.Now().UTC()

	res, err := st.db.ExecContext(ctx, st.db.Rebind(`
	    UPDATE  site_setting
	    SET     value = ?, updated_at = ?
	    WHERE   site = ? AND setting_key = ?`),
		value, now, s.String(), string(k))
	if err != nil {
		return fmt.Errorf("update setting %s/%s: %w", s, k, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	if _, err := st.db.ExecContext(ctx, st.db.Rebind(`
	    INSERT INTO site_setting (site, setting_key, value, updated_at)
	    VALUES (?, ?, ?, ?)`),
		s.String(), string(k), value, now); err != nil {
		return fmt.Errorf("insert setting %s/%s: %w", s, k, err)
	}
	return nil
}
