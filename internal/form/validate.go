// internal/form/validate.go
//
// Server-side validation and normalisation.
//
// Context
//   Every create, update, and inline transition funnels through
//   Schema.Validate.  Input may come from a JSON body (strings, float64,
//   bool, []any), from a posted HTML form (strings only, see DecodeValues),
//   or from a stored row merged with a partial edit.  Validate accepts all
//   three and returns one canonical map the store can bind directly.
//
// Workflow
//   •  Each field is coerced by type, checked, and defaulted.  Errors are
//      collected in []ErrorField so the caller can highlight every problem at
//      once.
//   •  Any error means no output at all.  Callers never see a half-cleaned
//      record.
//   •  Coupling runs last, on clean values only: clears nulls its target and
//      stamps writes “now” the first time its checkbox turns on.
//
// Canonical value types
//   text, textarea, email, url, slug, select   string, or nil when blank
//   number                                    float64
//   integer                                   int64
//   checkbox                                  bool
//   date                                      "YYYY-MM-DD" string
//   datetime                                  time.Time in UTC
//   list                                      []string, never nil
//
// Notes
//   Values are stored as typed.  Escaping belongs to whatever renders them.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/siteadmin/internal/asset"
	"github.com/yanizio/siteadmin/internal/routing"
	"github.com/yanizio/siteadmin/internal/site"
)

// List delimiters.
const (
	DelimNewline = "newline"
	DelimComma   = "comma"
)

// AssetKeyMessage rejects a path that was not uploaded for the record's site.
const AssetKeyMessage = "Must be a file uploaded for this site."

// DateLayout is the canonical date representation.
const DateLayout = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var check = validator.New()

// -----------------------------------------------------------------------------
// Error types
// -----------------------------------------------------------------------------

// ErrorField describes a single validation failure.
type ErrorField struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ValidationError wraps []ErrorField and satisfies the error interface.
//
// Callers distinguish user input errors from system failures via
// IsValidationError / AsValidationError.
type ValidationError struct{ Fields []ErrorField }

func (ve ValidationError) Error() string {
	if len(ve.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", ve.Fields[0].Name, ve.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed on %d fields", len(ve.Fields))
}

// Map returns field name → message, the shape JSON clients consume.
func (ve ValidationError) Map() map[string]string {
	m := make(map[string]string, len(ve.Fields))
	for _, f := range ve.Fields {
		m[f.Name] = f.Message
	}
	return m
}

// IsValidationError reports whether err came from a failed Validate.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// AsValidationError unwraps err into a ValidationError.
func AsValidationError(err error) (ValidationError, bool) {
	var ve ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// -----------------------------------------------------------------------------
// Public API
// -----------------------------------------------------------------------------

// Validate checks input against s and returns the normalised record.  prev is
// the stored row for updates and nil for creates; read-only fields and
// existing stamps are taken from it.  now is the stamp time.
//
// Keys in input that are not schema fields are ignored.
func (s *Schema) Validate(input, prev map[string]any, now time.Time) (map[string]any, error) {
	now = now.UTC()
	out := make(map[string]any, len(s.Fields))
	var errs []ErrorField

	for i := range s.Fields {
		f := &s.Fields[i]
		if f.ReadOnly {
			out[f.Name] = prev[f.Name]
			continue
		}

		raw := input[f.Name]
		if f.Type == TypeSlug && f.From != "" && blank(raw) {
			if src, ok := input[f.From].(string); ok && strings.TrimSpace(src) != "" {
				raw = routing.MakeSlug(src)
			}
		}

		v, msg := coerce(f, raw, now)
		if msg == "" && f.Asset {
			msg = assetCheck(f, v, input[ColSite])
		}
		if msg != "" {
			errs = append(errs, ErrorField{f.Name, msg})
			continue
		}
		if v == nil {
			v = zeroValue(f)
		}
		if f.Required && empty(v) {
			errs = append(errs, ErrorField{f.Name, requiredMsg(f)})
			continue
		}
		out[f.Name] = v
	}

	if len(errs) > 0 {
		return nil, ValidationError{Fields: errs}
	}

	for _, f := range s.Fields {
		on, _ := out[f.Name].(bool)
		if f.Clears != "" && on {
			out[f.Clears] = nil
		}
		if f.Stamps != "" {
			if stamp, ok := prev[f.Stamps].(time.Time); ok && !stamp.IsZero() {
				out[f.Stamps] = stamp
			} else if on && out[f.Stamps] == nil {
				out[f.Stamps] = now
			}
		}
	}
	return out, nil
}

// DecodeValues converts posted form values into Validate input.  An absent
// checkbox means unchecked, the way browsers submit them.
func DecodeValues(s *Schema, posted url.Values) map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if f.ReadOnly {
			continue
		}
		vals, present := posted[f.Name]
		if f.Type == TypeCheckbox {
			out[f.Name] = present && len(vals) > 0 && !strings.EqualFold(vals[len(vals)-1], "false")
			continue
		}
		if present && len(vals) > 0 {
			out[f.Name] = vals[0]
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Field-level helpers
// -----------------------------------------------------------------------------

// coerce converts raw into f's canonical type and runs f's rules.  A blank
// value returns (nil, "") so defaults and required checks can run after.
func coerce(f *FieldDef, raw any, now time.Time) (any, string) {
	if raw == nil {
		return nil, ""
	}

	switch f.Type {
	case TypeText, TypeTextarea:
		s, ok := scalarString(raw)
		if !ok {
			return nil, invalidMsg(f, "Invalid input.")
		}
		if s == "" {
			return nil, ""
		}
		if msg := lengthCheck(f, s); msg != "" {
			return nil, msg
		}
		if f.pattern != nil && !f.pattern.MatchString(s) {
			return nil, invalidMsg(f, "Input does not match required format.")
		}
		return s, ""

	case TypeEmail:
		s, ok := scalarString(raw)
		if !ok {
			return nil, invalidMsg(f, "Invalid input.")
		}
		if s == "" {
			return nil, ""
		}
		if msg := lengthCheck(f, s); msg != "" {
			return nil, msg
		}
		if check.Var(s, "email") != nil {
			return nil, invalidMsg(f, "Must be a valid email address.")
		}
		return s, ""

	case TypeURL:
		s, ok := scalarString(raw)
		if !ok {
			return nil, invalidMsg(f, "Invalid input.")
		}
		if s == "" {
			return nil, ""
		}
		if msg := lengthCheck(f, s); msg != "" {
			return nil, msg
		}
		if check.Var(s, "http_url") != nil {
			return nil, invalidMsg(f, "Must be a valid http(s) URL.")
		}
		return s, ""

	case TypeSlug:
		s, ok := scalarString(raw)
		if !ok {
			return nil, invalidMsg(f, "Invalid input.")
		}
		if s == "" {
			return nil, ""
		}
		if !routing.ValidSlug(s) {
			return nil, invalidMsg(f, "Use lowercase letters, numbers, and hyphens only.")
		}
		if msg := lengthCheck(f, s); msg != "" {
			return nil, msg
		}
		return s, ""

	case TypeSelect:
		s, ok := scalarString(raw)
		if !ok {
			return nil, invalidMsg(f, "Invalid input.")
		}
		if s == "" {
			return nil, ""
		}
		if !optionAllowed(f.Options, s) {
			return nil, invalidMsg(f, "Must be one of: "+strings.Join(f.Options, ", ")+".")
		}
		return s, ""

	case TypeNumber:
		n, ok, isBlank := toFloat(raw)
		if isBlank {
			return nil, ""
		}
		if !ok {
			return nil, invalidMsg(f, "Must be a number.")
		}
		if msg := rangeCheck(f, n); msg != "" {
			return nil, msg
		}
		return n, ""

	case TypeInteger:
		if i, ok := toInt(raw); ok {
			if msg := rangeCheck(f, float64(i)); msg != "" {
				return nil, msg
			}
			return i, ""
		}
		n, ok, isBlank := toFloat(raw)
		if isBlank {
			return nil, ""
		}
		if !ok || n != float64(int64(n)) {
			return nil, invalidMsg(f, "Must be a whole number.")
		}
		if msg := rangeCheck(f, n); msg != "" {
			return nil, msg
		}
		return int64(n), ""

	case TypeCheckbox:
		b, ok := toBool(raw)
		if !ok {
			return nil, invalidMsg(f, "Must be true or false.")
		}
		return b, ""

	case TypeDate:
		switch v := raw.(type) {
		case time.Time:
			if v.IsZero() {
				return nil, ""
			}
			return v.UTC().Format(DateLayout), ""
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return nil, ""
			}
			if d, err := time.Parse(DateLayout, s); err == nil {
				return d.Format(DateLayout), ""
			}
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				return t.UTC().Format(DateLayout), ""
			}
		}
		return nil, invalidMsg(f, "Must be a date (YYYY-MM-DD).")

	case TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			if v.IsZero() {
				return nil, ""
			}
			return v.UTC(), ""
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				return nil, ""
			}
			for _, layout := range dateTimeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t.UTC(), ""
				}
			}
		}
		return nil, invalidMsg(f, "Must be a date and time.")

	case TypeList:
		items, ok := toList(raw, f.Delimiter)
		if !ok {
			return nil, invalidMsg(f, "Invalid list.")
		}
		for _, it := range items {
			if msg := lengthCheck(f, it); msg != "" {
				return nil, msg
			}
		}
		return items, ""
	}

	return nil, fmt.Sprintf("Unsupported field type %q.", f.Type)
}

// assetCheck requires every key of an asset field to be a well formed
// object key of the record's own site.  A record without a valid site is
// left to the site field's own error.
func assetCheck(f *FieldDef, v any, rawSite any) string {
	var keys []string
	switch k := v.(type) {
	case string:
		keys = []string{k}
	case []string:
		keys = k
	}
	siteID, _ := rawSite.(string)
	owner, siteErr := site.Parse(siteID)
	for _, key := range keys {
		err := asset.ValidateKey(key)
		if err == nil && siteErr == nil {
			err = asset.CheckOwned(owner, key)
		}
		if err != nil {
			return invalidMsg(f, AssetKeyMessage)
		}
	}
	return ""
}

// zeroValue is what a blank field stores: its default, false for checkboxes,
// an empty slice for lists, and nil otherwise.
func zeroValue(f *FieldDef) any {
	if f.def != nil {
		if l, ok := f.def.([]string); ok {
			return append([]string(nil), l...)
		}
		return f.def
	}
	switch f.Type {
	case TypeCheckbox:
		return false
	case TypeList:
		return []string{}
	}
	return nil
}

// SplitList splits s on the field delimiter, trims every item, and drops
// empties.  Comma lists also split on newlines so pasted text behaves.
func SplitList(s, delim string) []string {
	sep := func(r rune) bool { return r == '\n' || r == '\r' }
	if delim == DelimComma {
		sep = func(r rune) bool { return r == ',' || r == '\n' || r == '\r' }
	}
	out := []string{}
	for _, part := range strings.FieldsFunc(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList is the inverse of SplitList for form prefill.
func JoinList(items []string, delim string) string {
	if delim == DelimComma {
		return strings.Join(items, ", ")
	}
	return strings.Join(items, "\n")
}

func toList(raw any, delim string) ([]string, bool) {
	switch v := raw.(type) {
	case string:
		return SplitList(v, delim), true
	case []string:
		out := []string{}
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, true
	case []any:
		out := []string{}
		for _, item := range v {
			s, ok := scalarString(item)
			if !ok {
				return nil, false
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}

// scalarString renders strings, numbers, and bools as trimmed text.
func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case []byte:
		return strings.TrimSpace(string(v)), true
	case bool, int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(v), true
	}
	return "", false
}

// toFloat returns (value, ok, blank).  NaN and the infinities are not
// numbers as far as a form is concerned.
func toFloat(raw any) (float64, bool, bool) {
	n, ok, isBlank := parseFloat(raw)
	if ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
		return 0, false, false
	}
	return n, ok, isBlank
}

// toInt parses integer input exactly, without a detour through float64.
func toInt(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func parseFloat(raw any) (float64, bool, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true, false
	case float32:
		return float64(v), true, false
	case int:
		return float64(v), true, false
	case int32:
		return float64(v), true, false
	case int64:
		return float64(v), true, false
	case json.Number:
		n, err := v.Float64()
		return n, err == nil, false
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, true
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil, false
	}
	return 0, false, false
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "on", "1", "yes", "checked":
			return true, true
		case "false", "off", "0", "no", "":
			return false, true
		}
	}
	return false, false
}

// lengthCheck validates minlength / maxlength rules in characters.
func lengthCheck(f *FieldDef, s string) string {
	n := utf8.RuneCountInString(s)
	if f.MinLength > 0 && n < f.MinLength {
		return fmt.Sprintf("Must be at least %d characters.", f.MinLength)
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		return fmt.Sprintf("Must be at most %d characters.", f.MaxLength)
	}
	return ""
}

func rangeCheck(f *FieldDef, n float64) string {
	low := f.Min != nil && n < *f.Min
	high := f.Max != nil && n > *f.Max
	if !low && !high {
		return ""
	}
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("Must be between %s and %s.", fmtNum(*f.Min), fmtNum(*f.Max))
	case low:
		return fmt.Sprintf("Must be at least %s.", fmtNum(*f.Min))
	default:
		return fmt.Sprintf("Must be at most %s.", fmtNum(*f.Max))
	}
}

func fmtNum(n float64) string { return strconv.FormatFloat(n, 'f', -1, 64) }

func optionAllowed(opts []string, v string) bool {
	for _, o := range opts {
		if o == v {
			return true
		}
	}
	return false
}

func blank(raw any) bool {
	s, ok := raw.(string)
	return raw == nil || (ok && strings.TrimSpace(s) == "")
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	}
	return false
}

// user-friendly default messages
func requiredMsg(f *FieldDef) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return "This field is required."
}
func invalidMsg(f *FieldDef, fallback string) string {
	if f.ErrorMsg != "" {
		return f.ErrorMsg
	}
	return fallback
}
