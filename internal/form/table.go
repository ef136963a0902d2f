// internal/form/table.go
//
// List view model.
//
// Context
//   BuildTable turns stored rows into display cells plus per-row actions.
//   The JSON API returns the Table as-is; the HTML pages pass it to
//   RenderTable.  Both surfaces therefore show identical labels, dates, and
//   transitions.
//
// Cells
//   checkbox   column true_label / false_label, default Yes / No
//   date       "Jan 2, 2006"
//   datetime   "Jan 2, 2006 15:04" (UTC)
//   list       items joined with ", "
//
// Actions
//   edit       link to the edit page
//   delete     DELETE on the record, which also cleans up its assets
//   set        PATCH of one inline field: every other option of an inline
//              select, or the opposite value of an inline checkbox
//
//------------------------------------------------------------------------------

package form

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Action kinds.
const (
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionSet    = "set"
)

// Table is the list view of one entity for one site.
type Table struct {
	Entity  string     `json:"entity"`
	Title   string     `json:"title"`
	Site    string     `json:"site"`
	Headers []string   `json:"headers"`
	Rows    []TableRow `json:"rows"`
	Error   string     `json:"error,omitempty"` // Fetch failure shown inline.
}

// TableRow is one record.
type TableRow struct {
	ID      string   `json:"id"`
	Cells   []Cell   `json:"cells"`
	Actions []Action `json:"actions"`
}

// Cell is one display value.
type Cell struct {
	Field string `json:"field"`
	Text  string `json:"text"`
}

// Action is one row operation.
type Action struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Method string `json:"method"`
	URL    string `json:"url"`
	Field  string `json:"field,omitempty"`
	Value  any    `json:"value,omitempty"`
}

// TableOptions carries the URL prefixes for one site and entity, e.g.
// "/admin/ngo/projects" and "/api/sites/ngo/projects".
type TableOptions struct {
	PagePath string
	APIPath  string
}

// BuildTable derives the view model for rows.  Rows must come from the
// store, so values are already canonical.
func BuildTable(s *Schema, site string, rows []map[string]any, opts TableOptions) Table {
	t := Table{
		Entity:  s.ID,
		Title:   s.Title,
		Site:    site,
		Headers: make([]string, 0, len(s.Columns)),
		Rows:    make([]TableRow, 0, len(rows)),
	}
	for _, c := range s.Columns {
		t.Headers = append(t.Headers, c.Label)
	}

	for _, rec := range rows {
		id, _ := rec[ColID].(string)
		row := TableRow{ID: id, Cells: make([]Cell, 0, len(s.Columns))}
		for _, c := range s.Columns {
			row.Cells = append(row.Cells, Cell{Field: c.Field, Text: CellText(s, c, rec[c.Field])})
		}
		row.Actions = rowActions(s, rec, id, opts)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// CellText formats v for column c.
func CellText(s *Schema, c ColumnDef, v any) string {
	typ, _ := s.TypeOf(c.Field)
	switch typ {
	case TypeCheckbox:
		b, _ := v.(bool)
		return boolLabel(c, b)
	case TypeDate:
		if str, ok := v.(string); ok {
			if d, err := time.Parse(DateLayout, str); err == nil {
				return d.Format("Jan 2, 2006")
			}
		}
		if tm, ok := v.(time.Time); ok {
			return tm.UTC().Format("Jan 2, 2006")
		}
	case TypeDateTime:
		if tm, ok := v.(time.Time); ok && !tm.IsZero() {
			return tm.UTC().Format("Jan 2, 2006 15:04")
		}
		if v == nil {
			return ""
		}
	case TypeList:
		if l, ok := v.([]string); ok {
			return strings.Join(l, ", ")
		}
	}

	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		return fmtNum(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case bool:
		return strconv.FormatBool(tv)
	}
	return ""
}

func rowActions(s *Schema, rec map[string]any, id string, opts TableOptions) []Action {
	recordURL := opts.APIPath + "/" + id
	acts := []Action{
		{Kind: ActionEdit, Label: "Edit", Method: "GET", URL: opts.PagePath + "/" + id + "/edit"},
	}

	for _, f := range s.InlineFields() {
		fieldURL := recordURL + "/fields/" + f.Name
		switch f.Type {
		case TypeSelect:
			cur, _ := rec[f.Name].(string)
			for _, opt := range f.Options {
				if opt == cur {
					continue
				}
				acts = append(acts, Action{
					Kind: ActionSet, Label: "Mark " + Capitalize(opt), Method: "PATCH",
					URL: fieldURL, Field: f.Name, Value: opt,
				})
			}
		case TypeCheckbox:
			cur, _ := rec[f.Name].(bool)
			acts = append(acts, Action{
				Kind: ActionSet, Label: toggleLabel(s, f, !cur), Method: "PATCH",
				URL: fieldURL, Field: f.Name, Value: !cur,
			})
		}
	}

	return append(acts, Action{Kind: ActionDelete, Label: "Delete", Method: "DELETE", URL: recordURL})
}

func boolLabel(c ColumnDef, b bool) string {
	if b {
		if c.TrueLabel != "" {
			return c.TrueLabel
		}
		return "Yes"
	}
	if c.FalseLabel != "" {
		return c.FalseLabel
	}
	return "No"
}

// toggleLabel prefers the column labels, e.g. "Mark Draft".
func toggleLabel(s *Schema, f FieldDef, to bool) string {
	for _, c := range s.Columns {
		if c.Field == f.Name && (c.TrueLabel != "" || c.FalseLabel != "") {
			return "Mark " + boolLabel(c, to)
		}
	}
	if to {
		return "Mark " + f.Label
	}
	return "Unmark " + f.Label
}

// Capitalize upper-cases the first letter of s.
func Capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
