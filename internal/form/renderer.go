// internal/form/renderer.go
//
// HTML renderer for entity forms and list tables.
//
// Context
//   Given a *Schema (definition.go) this file converts fields into plain,
//   accessible HTML.  The same markup serves create and edit: values prefill
//   the inputs, per-field errors print under their input, and a CSRF token is
//   embedded as a hidden input.  RenderTable does the same for a Table view
//   model (table.go).
//
// Workflow
//   •  RenderForm writes each field via writeField, skipping `site`, which
//      always comes from the URL.
//   •  Required, minlength, maxlength, min, max, pattern, and placeholder
//      attributes are attached where relevant.  Select options come from the
//      YAML Options slice.  Lists render as a textarea joined by their
//      delimiter.
//   •  Read-only fields render disabled so they are visible but never posted.
//   •  Asset fields get a file picker; admin.js uploads the file and writes
//      the returned key into the field (or appends it, for lists).
//   •  Output is template.HTML so the surrounding page does not double-escape.
//
// Style
//   Output HTML carries no framework classes.  Each input gets id="fld-{name}"
//   and is wrapped in <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"time"

	"github.com/yanizio/siteadmin/internal/routing"
)

// RenderOptions bundles per-request inputs to RenderForm.
type RenderOptions struct {
	Action      string            // POST target.
	Values      map[string]any    // Prefill, canonical or raw.
	Errors      map[string]string // Field name → message.
	FormError   string            // Banner above the fields.
	CSRFToken   string
	SubmitLabel string
	Site        string // Upload target for asset fields.
	Folder      string // Upload folder, usually the entity id.
}

// RenderForm returns the HTML markup for s.
func RenderForm(s *Schema, opts RenderOptions) (template.HTML, error) {
	var buf bytes.Buffer
	buf.WriteString(`<form class="admin-form" method="post" action="` + html.EscapeString(opts.Action) + `"`)
	if opts.Site != "" {
		buf.WriteString(` data-site="` + html.EscapeString(opts.Site) + `" data-folder="` + html.EscapeString(opts.Folder) + `"`)
	}
	buf.WriteString(`>` + "\n")

	if opts.FormError != "" {
		buf.WriteString(`<p class="form-error" role="alert">` + html.EscapeString(opts.FormError) + `</p>` + "\n")
	}

	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Name == ColSite {
			continue
		}
		if err := writeField(&buf, f, opts.Values[f.Name], opts.Errors[f.Name]); err != nil {
			return "", err
		}
	}

	buf.WriteString(`<input type="hidden" name="` + CSRFField + `" value="` + html.EscapeString(opts.CSRFToken) + `">` + "\n")

	label := opts.SubmitLabel
	if label == "" {
		label = "Save"
	}
	buf.WriteString(`<button type="submit">` + html.EscapeString(label) + `</button>` + "\n")
	buf.WriteString(`</form>`)
	return template.HTML(buf.String()), nil
}

// writeField emits HTML for one field into buf.
func writeField(buf *bytes.Buffer, f *FieldDef, v any, errMsg string) error {
	val := displayValue(f, v)
	name := html.EscapeString(f.Name)
	idAttr := `id="fld-` + name + `"`
	nameAttr := `name="` + name + `"`

	buf.WriteString(`<div class="form-field">` + "\n")
	buf.WriteString(`<label for="fld-` + name + `">` + html.EscapeString(f.Label) + `</label>` + "\n")

	switch f.Type {
	case TypeText, TypeEmail, TypeURL, TypeSlug, TypeNumber, TypeInteger, TypeDate, TypeDateTime:
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="` + inputType(f.Type) + `"`)
		writeCommonAttrs(buf, f)
		switch f.Type {
		case TypeNumber:
			buf.WriteString(` step="any"`)
		case TypeSlug:
			buf.WriteString(` pattern="` + html.EscapeString(routing.SlugPattern[1:len(routing.SlugPattern)-1]) + `"`)
		}
		if f.Type == TypeNumber || f.Type == TypeInteger {
			if f.Min != nil {
				buf.WriteString(` min="` + fmtNum(*f.Min) + `"`)
			}
			if f.Max != nil {
				buf.WriteString(` max="` + fmtNum(*f.Max) + `"`)
			}
		}
		if f.Pattern != "" {
			buf.WriteString(` pattern="` + html.EscapeString(f.Pattern) + `"`)
		}
		if val != "" {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case TypeTextarea, TypeList:
		buf.WriteString(`<textarea ` + idAttr + ` ` + nameAttr)
		writeCommonAttrs(buf, f)
		buf.WriteString(`>`)
		buf.WriteString(html.EscapeString(val))
		buf.WriteString(`</textarea>` + "\n")

	case TypeSelect:
		buf.WriteString(`<select ` + idAttr + ` ` + nameAttr)
		if f.Required {
			buf.WriteString(` required`)
		}
		if f.ReadOnly {
			buf.WriteString(` disabled`)
		}
		buf.WriteString(`>` + "\n")
		if !f.Required {
			buf.WriteString(`<option value=""></option>` + "\n")
		}
		for _, opt := range f.Options {
			sel := ""
			if val == opt {
				sel = ` selected`
			}
			buf.WriteString(`<option value="` + html.EscapeString(opt) + `"` + sel + `>` + html.EscapeString(opt) + `</option>` + "\n")
		}
		buf.WriteString(`</select>` + "\n")

	case TypeCheckbox:
		checked := ""
		if b, _ := v.(bool); b {
			checked = ` checked`
		}
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="checkbox" value="true"` + checked)
		if f.ReadOnly {
			buf.WriteString(` disabled`)
		}
		buf.WriteString(`>` + "\n")

	default:
		return fmt.Errorf("writeField: unsupported field type %q in field %s", f.Type, f.Name)
	}

	if f.Asset && !f.ReadOnly {
		buf.WriteString(`<input type="file" accept="image/*" data-upload-for="fld-` + name + `">` + "\n")
	}

	buf.WriteString(`<span class="error" aria-live="polite">` + html.EscapeString(errMsg) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}

func writeCommonAttrs(buf *bytes.Buffer, f *FieldDef) {
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.Required {
		buf.WriteString(` required`)
	}
	if f.MinLength > 0 && f.Type != TypeList {
		buf.WriteString(` minlength="` + strconv.Itoa(f.MinLength) + `"`)
	}
	if f.MaxLength > 0 && f.Type != TypeList {
		buf.WriteString(` maxlength="` + strconv.Itoa(f.MaxLength) + `"`)
	}
	if f.ReadOnly {
		buf.WriteString(` disabled`)
	}
}

func inputType(t string) string {
	switch t {
	case TypeURL:
		return "url"
	case TypeEmail:
		return "email"
	case TypeNumber, TypeInteger:
		return "number"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime-local"
	}
	return "text"
}

// displayValue renders v the way an input expects it.
func displayValue(f *FieldDef, v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return JoinList(t, f.Delimiter)
	case time.Time:
		if f.Type == TypeDate {
			return t.UTC().Format(DateLayout)
		}
		return t.UTC().Format("2006-01-02T15:04")
	case float64:
		return fmtNum(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// RenderTable returns the list view markup.  Mutating actions render as
// buttons carrying data-method, data-url, and data-value for the page script.
func RenderTable(t Table) template.HTML {
	var buf bytes.Buffer

	if t.Error != "" {
		buf.WriteString(`<p class="table-error" role="alert">` + html.EscapeString(t.Error) + `</p>` + "\n")
	}

	buf.WriteString(`<table class="admin-table" data-entity="` + html.EscapeString(t.Entity) + `">` + "\n<thead><tr>")
	for _, h := range t.Headers {
		buf.WriteString(`<th>` + html.EscapeString(h) + `</th>`)
	}
	buf.WriteString(`<th>Actions</th></tr></thead>` + "\n<tbody>\n")

	if len(t.Rows) == 0 {
		buf.WriteString(`<tr><td colspan="` + strconv.Itoa(len(t.Headers)+1) + `">No records yet.</td></tr>` + "\n")
	}
	for _, row := range t.Rows {
		buf.WriteString(`<tr data-id="` + html.EscapeString(row.ID) + `">`)
		for _, c := range row.Cells {
			buf.WriteString(`<td>` + html.EscapeString(c.Text) + `</td>`)
		}
		buf.WriteString(`<td class="actions">`)
		for _, a := range row.Actions {
			if a.Kind == ActionEdit {
				buf.WriteString(`<a href="` + html.EscapeString(a.URL) + `">` + html.EscapeString(a.Label) + `</a>`)
				continue
			}
			buf.WriteString(`<button type="button" data-action="` + a.Kind +
				`" data-method="` + a.Method +
				`" data-url="` + html.EscapeString(a.URL) + `"`)
			if a.Kind == ActionDelete {
				buf.WriteString(` data-confirm="Delete this record?  This cannot be undone."`)
			}
			if a.Value != nil {
				buf.WriteString(` data-value="` + html.EscapeString(fmt.Sprint(a.Value)) + `"`)
			}
			buf.WriteString(`>` + html.EscapeString(a.Label) + `</button>`)
		}
		buf.WriteString(`</td></tr>` + "\n")
	}

	buf.WriteString(`</tbody></table>`)
	return template.HTML(buf.String())
}
