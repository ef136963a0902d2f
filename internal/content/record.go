// internal/content/record.go
//
// Row normalisation between drivers and the form engine.
//
// Context
// -------
// MySQL, Postgres, and SQLite hand back the same column as different Go
// types: BOOLEAN arrives as bool or int64, text as string or []byte, DATE as
// time.Time or string.  normalize folds all of them into the canonical types
// form.Schema.Validate produces, so a stored row can be merged with an edit
// and validated again without special cases.
//
// Lists are stored as JSON array text in a TEXT column.
package content

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/yanizio/siteadmin/internal/form"
)

// Record is one row keyed by column name.
type Record map[string]any

// ID returns the row id or "".
func (r Record) ID() string {
	id, _ := r[form.ColID].(string)
	return id
}

// Clone returns a shallow copy.  List values are copied too.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if l, ok := v.([]string); ok {
			v = append([]string(nil), l...)
		}
		out[k] = v
	}
	return out
}

var storedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func normalize(sc *form.Schema, raw map[string]any) Record {
	out := make(Record, len(raw))
	for col, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		typ, _ := sc.TypeOf(col)
		if col == form.ColSite {
			typ = form.TypeText
		}
		out[col] = normalizeValue(typ, v)
	}
	return out
}

func normalizeValue(typ string, v any) any {
	switch typ {
	case form.TypeCheckbox:
		switch t := v.(type) {
		case bool:
			return t
		case int64:
			return t != 0
		case string:
			b, _ := strconv.ParseBool(t)
			return b
		}
		return false

	case form.TypeInteger:
		switch t := v.(type) {
		case int64:
			return t
		case float64:
			return int64(t)
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return n
			}
		}
		return v

	case form.TypeNumber:
		switch t := v.(type) {
		case float64:
			return t
		case float32:
			return float64(t)
		case int64:
			return float64(t)
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return n
			}
		}
		return v

	case form.TypeDate:
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format(form.DateLayout)
		case string:
			if len(t) >= len(form.DateLayout) {
				if d, err := time.Parse(form.DateLayout, t[:len(form.DateLayout)]); err == nil {
					return d.Format(form.DateLayout)
				}
			}
			if t == "" {
				return nil
			}
		}
		return v

	case form.TypeDateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case string:
			for _, layout := range storedTimeLayouts {
				if tm, err := time.Parse(layout, t); err == nil {
					return tm.UTC()
				}
			}
			if t == "" {
				return nil
			}
		}
		return v

	case form.TypeList:
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return []string{}
		}
		var items []string
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			// Rows written by hand before lists were JSON.
			return form.SplitList(s, form.DelimNewline)
		}
		if items == nil {
			items = []string{}
		}
		return items
	}
	return v
}

// bindValue converts a canonical value into what every driver accepts.
func bindValue(typ string, v any) any {
	if v == nil {
		return nil
	}
	switch typ {
	case form.TypeList:
		items, _ := v.([]string)
		if items == nil {
			items = []string{}
		}
		b, _ := json.Marshal(items)
		return string(b)
	case form.TypeDate:
		if s, ok := v.(string); ok {
			if d, err := time.Parse(form.DateLayout, s); err == nil {
				return d
			}
		}
	case form.TypeDateTime:
		if t, ok := v.(time.Time); ok {
			return t.UTC()
		}
	}
	return v
}
