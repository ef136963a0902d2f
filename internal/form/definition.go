// internal/form/definition.go
//
// Entity schemas: YAML loader and registry.
//
// Context
//   Every content table the admin edits is declared in one YAML file under
//   schemas/.  The file names the table, its default ordering, its fields
//   with their validation rules, and the columns the list view shows.  The
//   store, the validator, the HTML renderer, and the table builder all read
//   the same *Schema, so a table and its form can never drift apart.
//
// Workflow
//   •  Structs mirror the YAML: Schema → FieldDef / ColumnDef.
//   •  LoadSchema parses one document and validates structural rules.
//   •  LoadRegistry reads every “*.yaml” in an fs.FS (normally the embedded
//      schemas.FS) and indexes the results by ID.
//   •  Registry.Get offers read-only access by table name.
//
// Field types
//   text, textarea, email, url, slug, select, number, integer, checkbox,
//   date, datetime, list.
//
// Coupling keys
//   clears: <field>   checkbox true → target stored as null.
//   stamps: <field>   checkbox true and no earlier stamp → target set to now.
//   from:   <field>   slug left blank → derived from the named text field.
//
// Style
//   Full sentences, two spaces after periods, Oxford commas.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// Schema describes one entity table.  ID doubles as the table name.
type Schema struct {
	ID        string      `yaml:"id"`
	Title     string      `yaml:"title"`
	OrderBy   string      `yaml:"order_by"`  // Default list ordering column.
	Ascending bool        `yaml:"ascending"` // Direction for OrderBy.
	Singleton bool        `yaml:"singleton"` // At most one row per site.
	Fields    []FieldDef  `yaml:"fields"`
	Columns   []ColumnDef `yaml:"columns"`

	index map[string]int
}

// FieldDef describes one editable column.
type FieldDef struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label"`
	Type        string   `yaml:"type"`
	Placeholder string   `yaml:"placeholder"`
	Required    bool     `yaml:"required"`
	MinLength   int      `yaml:"minlength"`
	MaxLength   int      `yaml:"maxlength"`
	Pattern     string   `yaml:"pattern"`
	Options     []string `yaml:"options"`
	Min         *float64 `yaml:"min"`
	Max         *float64 `yaml:"max"`
	Default     any      `yaml:"default"`
	Delimiter   string   `yaml:"delimiter"` // list only: newline or comma.
	Asset       bool     `yaml:"asset"`     // Holds object-store keys.
	Inline      bool     `yaml:"inline"`    // Editable as a row action.
	Clears      string   `yaml:"clears"`
	Stamps      string   `yaml:"stamps"`
	From        string   `yaml:"from"`
	ReadOnly    bool     `yaml:"readonly"` // Never taken from input.
	ErrorMsg    string   `yaml:"error"`

	pattern *regexp.Regexp
	def     any // Default coerced to the field's stored type.
}

// ColumnDef maps a field onto a list-view column.  TrueLabel and FalseLabel
// apply to checkbox fields only.
type ColumnDef struct {
	Field      string `yaml:"field"`
	Label      string `yaml:"label"`
	TrueLabel  string `yaml:"true_label"`
	FalseLabel string `yaml:"false_label"`
}

// Columns the store manages itself.  They may appear in order_by and in
// list columns but never in fields.
const (
	ColID        = "id"
	ColSite      = "site"
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
)

var managedTypes = map[string]string{
	ColID:        TypeText,
	ColCreatedAt: TypeDateTime,
	ColUpdatedAt: TypeDateTime,
}

// Field types.
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeEmail    = "email"
	TypeURL      = "url"
	TypeSlug     = "slug"
	TypeSelect   = "select"
	TypeNumber   = "number"
	TypeInteger  = "integer"
	TypeCheckbox = "checkbox"
	TypeDate     = "date"
	TypeDateTime = "datetime"
	TypeList     = "list"
)

var knownTypes = map[string]bool{
	TypeText: true, TypeTextarea: true, TypeEmail: true, TypeURL: true,
	TypeSlug: true, TypeSelect: true, TypeNumber: true, TypeInteger: true,
	TypeCheckbox: true, TypeDate: true, TypeDateTime: true, TypeList: true,
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Field returns the definition for name.
func (s *Schema) Field(name string) (*FieldDef, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// TypeOf returns the stored type of any column, managed ones included.
func (s *Schema) TypeOf(col string) (string, bool) {
	if f, ok := s.Field(col); ok {
		return f.Type, true
	}
	t, ok := managedTypes[col]
	return t, ok
}

// HasColumn reports whether col is a real column of the table.
func (s *Schema) HasColumn(col string) bool {
	_, ok := s.TypeOf(col)
	return ok
}

// SelectColumns lists every column in a stable order: id, fields, then
// timestamps.
func (s *Schema) SelectColumns() []string {
	cols := make([]string, 0, len(s.Fields)+3)
	cols = append(cols, ColID)
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return append(cols, ColCreatedAt, ColUpdatedAt)
}

// AssetFields returns the fields that hold object-store keys.
func (s *Schema) AssetFields() []FieldDef {
	var out []FieldDef
	for _, f := range s.Fields {
		if f.Asset {
			out = append(out, f)
		}
	}
	return out
}

// InlineFields returns the fields editable as row actions.
func (s *Schema) InlineFields() []FieldDef {
	var out []FieldDef
	for _, f := range s.Fields {
		if f.Inline {
			out = append(out, f)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry indexes schemas by ID.  It is immutable after LoadRegistry.
type Registry struct {
	byID map[string]*Schema
	ids  []string
}

// ErrNoSchemas is returned when the source holds no YAML documents.
var ErrNoSchemas = errors.New("no schema files found")

// Get returns the schema for id.
func (r *Registry) Get(id string) (*Schema, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// All returns every schema sorted by ID.
func (r *Registry) All() []*Schema {
	out := make([]*Schema, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// NewRegistry indexes already-parsed schemas.  Tests use it to build small
// registries without touching YAML.
func NewRegistry(list ...*Schema) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Schema, len(list))}
	for _, s := range list {
		if err := prepare(s, s.ID); err != nil {
			return nil, err
		}
		if _, dup := r.byID[s.ID]; dup {
			return nil, fmt.Errorf("schema %q declared twice", s.ID)
		}
		r.byID[s.ID] = s
		r.ids = append(r.ids, s.ID)
	}
	sort.Strings(r.ids)
	return r, nil
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadSchema parses one YAML document.  name is used in error messages only.
func LoadSchema(raw []byte, name string) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", name, err)
	}
	if err := prepare(&s, name); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadRegistry loads every “*.yaml” at the root of fsys.  Any malformed file
// fails the whole load so problems surface at startup.
func LoadRegistry(fsys fs.FS) (*Registry, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNoSchemas
	}

	list := make([]*Schema, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		var s Schema
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("parse YAML %s: %w", name, err)
		}
		if want := path.Base(name[:len(name)-len(".yaml")]); s.ID != want {
			return nil, fmt.Errorf("schema %s: id %q does not match file name", name, s.ID)
		}
		list = append(list, &s)
	}
	return NewRegistry(list...)
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// prepare enforces structural rules, compiles patterns, coerces defaults, and
// builds the field index.  It is idempotent.
func prepare(s *Schema, src string) error {
	if !identRe.MatchString(s.ID) {
		return fmt.Errorf("schema %s: invalid id %q", src, s.ID)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s: no fields", src)
	}

	s.index = make(map[string]int, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		if err := validateField(f, src); err != nil {
			return err
		}
		if _, dup := s.index[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field name %q", src, f.Name)
		}
		s.index[f.Name] = i
	}

	site, ok := s.Field(ColSite)
	if !ok || site.Type != TypeSelect {
		return fmt.Errorf("schema %s: a 'site' select field is required", src)
	}

	for i := range s.Fields {
		if err := validateCoupling(s, &s.Fields[i], src); err != nil {
			return err
		}
	}

	if s.OrderBy == "" {
		s.OrderBy = ColCreatedAt
	}
	if !s.HasColumn(s.OrderBy) {
		return fmt.Errorf("schema %s: order_by %q is not a column", src, s.OrderBy)
	}

	if len(s.Columns) == 0 {
		for _, f := range s.Fields {
			if f.Name == ColSite {
				continue
			}
			s.Columns = append(s.Columns, ColumnDef{Field: f.Name, Label: f.Label})
			if len(s.Columns) == 3 {
				break
			}
		}
	}
	for i := range s.Columns {
		c := &s.Columns[i]
		if !s.HasColumn(c.Field) {
			return fmt.Errorf("schema %s: column %q is not a column", src, c.Field)
		}
		if c.Label == "" {
			c.Label = c.Field
		}
	}
	if s.Title == "" {
		s.Title = s.ID
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, src string) error {
	if !identRe.MatchString(f.Name) {
		return fmt.Errorf("schema %s: invalid field name %q", src, f.Name)
	}
	if _, managed := managedTypes[f.Name]; managed {
		return fmt.Errorf("schema %s: field %q is managed by the store", src, f.Name)
	}
	if f.Label == "" {
		return fmt.Errorf("schema %s: field %q missing 'label'", src, f.Name)
	}
	if !knownTypes[f.Type] {
		return fmt.Errorf("schema %s: field %q has unknown type %q", src, f.Name, f.Type)
	}

	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("schema %s: field %q invalid regex pattern: %v", src, f.Name, err)
		}
		f.pattern = re
	}
	if f.MinLength < 0 || f.MaxLength < 0 {
		return fmt.Errorf("schema %s: field %q minlength/maxlength cannot be negative", src, f.Name)
	}
	if f.MaxLength > 0 && f.MinLength > f.MaxLength {
		return fmt.Errorf("schema %s: field %q minlength greater than maxlength", src, f.Name)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("schema %s: field %q min greater than max", src, f.Name)
	}

	switch f.Type {
	case TypeSelect:
		if len(f.Options) == 0 {
			return fmt.Errorf("schema %s: select %q has no options", src, f.Name)
		}
	case TypeList:
		switch f.Delimiter {
		case "":
			f.Delimiter = DelimNewline
		case DelimNewline, DelimComma:
		default:
			return fmt.Errorf("schema %s: list %q has unknown delimiter %q", src, f.Name, f.Delimiter)
		}
	}
	if f.Inline && f.Type != TypeSelect && f.Type != TypeCheckbox {
		return fmt.Errorf("schema %s: only select and checkbox fields can be inline (%q)", src, f.Name)
	}
	if f.Asset && f.Type != TypeText && f.Type != TypeList {
		return fmt.Errorf("schema %s: asset field %q must be text or list", src, f.Name)
	}

	if f.Default != nil {
		v, msg := coerce(f, f.Default, time.Time{})
		if msg != "" {
			return fmt.Errorf("schema %s: field %q default: %s", src, f.Name, msg)
		}
		f.def = v
	}
	return nil
}

func validateCoupling(s *Schema, f *FieldDef, src string) error {
	if f.Clears != "" || f.Stamps != "" {
		if f.Type != TypeCheckbox {
			return fmt.Errorf("schema %s: clears/stamps on non-checkbox %q", src, f.Name)
		}
	}
	if f.Clears != "" {
		t, ok := s.Field(f.Clears)
		if !ok || t.Required {
			return fmt.Errorf("schema %s: %q clears %q, which must be an optional field", src, f.Name, f.Clears)
		}
	}
	if f.Stamps != "" {
		t, ok := s.Field(f.Stamps)
		if !ok || t.Type != TypeDateTime {
			return fmt.Errorf("schema %s: %q stamps %q, which must be a datetime field", src, f.Name, f.Stamps)
		}
	}
	if f.From != "" {
		if f.Type != TypeSlug {
			return fmt.Errorf("schema %s: 'from' on non-slug %q", src, f.Name)
		}
		if _, ok := s.Field(f.From); !ok {
			return fmt.Errorf("schema %s: slug %q derives from unknown field %q", src, f.Name, f.From)
		}
	}
	return nil
}
