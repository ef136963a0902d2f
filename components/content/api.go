// components/content/api.go
//
// JSON handlers under /api/sites/{site}.
//
// Replies
// -------
//	GET    /schemas                       [schema]
//	GET    /dashboard                     {counts}
//	GET    /settings                      {settings}
//	PUT    /settings/{key}                {setting, refresh}
//	GET    /{entity}                      {table}, or {error, table} on failure
//	POST   /{entity}                      201 {record, refresh}
//	GET    /{entity}/single               {record}, record is null before the first save
//	PUT    /{entity}/single               {record, refresh}
//	GET    /{entity}/{id}                 {record}
//	PUT    /{entity}/{id}                 {record, refresh}
//	DELETE /{entity}/{id}                 {success, warning?, refresh}
//	PATCH  /{entity}/{id}/fields/{field}  {record, refresh}
//
// Validation failures are 422 {error, fields}.  Everything else goes
// through apiError.

package content

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/siteadmin/internal/content"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/respond"
	"github.com/yanizio/siteadmin/internal/site"
)

// maxBodyBytes caps JSON request bodies.  Records hold text and object
// keys only, never file data.
const maxBodyBytes = 1 << 20

type recordBody struct {
	Record  content.Record `json:"record"`
	Refresh bool           `json:"refresh,omitempty"`
}

type tableBody struct {
	Error string     `json:"error,omitempty"`
	Table form.Table `json:"table"`
}

type deleteBody struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
	Refresh bool   `json:"refresh"`
}

/*──────────────────────────── schemas & dashboard ─────────────────────────*/

type schemaView struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Singleton bool        `json:"singleton"`
	Fields    []fieldView `json:"fields"`
}

type fieldView struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	Required  bool     `json:"required,omitempty"`
	Options   []string `json:"options,omitempty"`
	Delimiter string   `json:"delimiter,omitempty"`
	Asset     bool     `json:"asset,omitempty"`
	Inline    bool     `json:"inline,omitempty"`
	ReadOnly  bool     `json:"readonly,omitempty"`
}

func (c *Component) apiSchemas(w http.ResponseWriter, _ *http.Request) {
	all := c.svc.Schemas()
	out := make([]schemaView, 0, len(all))
	for _, sc := range all {
		v := schemaView{ID: sc.ID, Title: sc.Title, Singleton: sc.Singleton, Fields: make([]fieldView, 0, len(sc.Fields))}
		for _, f := range sc.Fields {
			if f.Name == form.ColSite {
				continue
			}
			v.Fields = append(v.Fields, fieldView{
				Name: f.Name, Label: f.Label, Type: f.Type, Required: f.Required,
				Options: f.Options, Delimiter: f.Delimiter, Asset: f.Asset,
				Inline: f.Inline, ReadOnly: f.ReadOnly,
			})
		}
		out = append(out, v)
	}
	respond.JSON(w, http.StatusOK, out)
}

func (c *Component) apiDashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := c.svc.Dashboard(r.Context(), siteFrom(r))
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"site": siteFrom(r), "counts": counts})
}

/*──────────────────────────── settings ────────────────────────────────────*/

func (c *Component) apiSettings(w http.ResponseWriter, r *http.Request) {
	all, err := c.settings.All(r.Context(), siteFrom(r))
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"settings": all})
}

func (c *Component) apiSetSetting(w http.ResponseWriter, r *http.Request) {
	k, err := site.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		apiError(w, r, err)
		return
	}
	var in struct {
		Value *bool `json:"value"`
	}
	if err := decodeBody(w, r, &in); err != nil || in.Value == nil {
		respond.Message(w, http.StatusBadRequest, `Request body must be {"value": true|false}.`)
		return
	}
	if err := c.settings.Set(r.Context(), siteFrom(r), k, *in.Value); err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"setting": site.Setting{Key: k, Value: *in.Value},
		"refresh": true,
	})
}

/*──────────────────────────── records ─────────────────────────────────────*/

func (c *Component) apiList(w http.ResponseWriter, r *http.Request) {
	s, entity := siteFrom(r), chi.URLParam(r, "entity")
	t, err := c.svc.Table(r.Context(), s, entity, tableOptions(s, entity))
	if err != nil {
		status, msg := respond.Classify(classify(err))
		respond.JSON(w, status, tableBody{Error: msg, Table: t})
		return
	}
	respond.JSON(w, http.StatusOK, tableBody{Table: t})
}

func (c *Component) apiCreate(w http.ResponseWriter, r *http.Request) {
	in, ok := readRecord(w, r)
	if !ok {
		return
	}
	rec, err := c.svc.Create(r.Context(), siteFrom(r), chi.URLParam(r, "entity"), in)
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, recordBody{Record: rec, Refresh: true})
}

func (c *Component) apiSingle(w http.ResponseWriter, r *http.Request) {
	rec, err := c.svc.Single(r.Context(), siteFrom(r), chi.URLParam(r, "entity"))
	switch {
	case errors.Is(err, content.ErrNotFound):
		respond.JSON(w, http.StatusOK, recordBody{})
		return
	case err != nil:
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, recordBody{Record: rec})
}

func (c *Component) apiSaveSingle(w http.ResponseWriter, r *http.Request) {
	in, ok := readRecord(w, r)
	if !ok {
		return
	}
	rec, err := c.svc.SaveSingle(r.Context(), siteFrom(r), chi.URLParam(r, "entity"), in)
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, recordBody{Record: rec, Refresh: true})
}

func (c *Component) apiGet(w http.ResponseWriter, r *http.Request) {
	rec, err := c.svc.Get(r.Context(), siteFrom(r), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, recordBody{Record: rec})
}

func (c *Component) apiUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := readRecord(w, r)
	if !ok {
		return
	}
	rec, err := c.svc.Update(r.Context(), siteFrom(r), chi.URLParam(r, "entity"), chi.URLParam(r, "id"), in)
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, recordBody{Record: rec, Refresh: true})
}

func (c *Component) apiDelete(w http.ResponseWriter, r *http.Request) {
	res, err := c.svc.Delete(r.Context(), siteFrom(r), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, deleteBody{Success: true, Warning: res.Warning, Refresh: true})
}

func (c *Component) apiSetField(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Value any `json:"value"`
	}
	if err := decodeBody(w, r, &in); err != nil {
		respond.Message(w, http.StatusBadRequest, BadBodyMessage)
		return
	}
	rec, err := c.svc.SetField(r.Context(), siteFrom(r),
		chi.URLParam(r, "entity"), chi.URLParam(r, "id"), chi.URLParam(r, "field"), in.Value)
	if err != nil {
		apiError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, recordBody{Record: rec, Refresh: true})
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// decodeBody reads one JSON value into v.  Numbers stay json.Number so
// integers survive without float rounding.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

// readRecord decodes a JSON object body, answering 400 when it is not one.
func readRecord(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var in map[string]any
	if err := decodeBody(w, r, &in); err != nil || in == nil {
		respond.Message(w, http.StatusBadRequest, BadBodyMessage)
		return nil, false
	}
	return in, true
}

func tableOptions(s site.Site, entity string) form.TableOptions {
	return form.TableOptions{
		PagePath: "/admin/" + s.String() + "/" + entity,
		APIPath:  "/api/sites/" + s.String() + "/" + entity,
	}
}
