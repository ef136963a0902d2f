// components/content/pages.go
//
// Server-rendered admin pages under /admin.
//
// Workflow
// --------
//  1. GET  /admin                        site picker.
//  2. GET  /admin/{site}                 dashboard with per-entity counts.
//  3. GET  /admin/{site}/{entity}        list table, or the edit form for
//                                        singleton entities.
//  4. GET  /admin/{site}/{entity}/new    empty create form.
//  5. GET  /admin/{site}/{entity}/{id}/edit
//  6. POST /admin/{site}/{entity}        create (or save the singleton).
//  7. POST /admin/{site}/{entity}/{id}   update.
//
// A rejected post re-renders the form with the submitted values and the
// per-field messages (422), or with the classified error above the fields.
// Success redirects to the list with 303.
//
// Notes
// -----
// • Fetch failures render inline: the table shows its error with no rows.
// • Row actions and uploads run through admin.js against the JSON API.
//
//------------------------------------------------------------------------------

package content

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/siteadmin/internal/auth"
	"github.com/yanizio/siteadmin/internal/content"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/respond"
	"github.com/yanizio/siteadmin/internal/routing"
	"github.com/yanizio/siteadmin/internal/site"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type navItem struct {
	Title  string
	URL    string
	Active bool
}

type page struct {
	Title     string
	Site      site.Site
	Sites     []site.Site
	Nav       []navItem
	Admin     auth.Admin
	CSRFToken string
	Error     string
	Body      template.HTML
}

/*──────────────────────────── site & dashboard ────────────────────────────*/

func (c *Component) pageSites(w http.ResponseWriter, r *http.Request) {
	body, err := partial("sites", site.All())
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.render(w, r, http.StatusOK, page{Title: "Sites", Body: body})
}

func (c *Component) pageDashboard(w http.ResponseWriter, r *http.Request) {
	s := siteFrom(r)
	p := page{Title: "Dashboard", Site: s}

	counts, err := c.svc.Dashboard(r.Context(), s)
	if err != nil {
		logger.FromContext(r.Context()).Errorw("dashboard", "err", err)
		_, p.Error = respond.Classify(classify(err))
	}
	p.Body, err = partial("dashboard", map[string]any{"Site": s, "Counts": counts})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.render(w, r, http.StatusOK, p)
}

/*──────────────────────────── entity pages ────────────────────────────────*/

func (c *Component) pageEntity(w http.ResponseWriter, r *http.Request) {
	s, entity := siteFrom(r), chi.URLParam(r, "entity")
	sc, err := c.svc.Schema(entity)
	if err != nil {
		c.fail(w, r, err)
		return
	}

	if sc.Singleton {
		rec, err := c.svc.Single(r.Context(), s, entity)
		if err != nil && !errors.Is(err, content.ErrNotFound) {
			c.fail(w, r, err)
			return
		}
		c.renderForm(w, r, http.StatusOK, sc, formState{Action: entityPath(s, entity), Values: rec})
		return
	}

	t, err := c.svc.Table(r.Context(), s, entity, tableOptions(s, entity))
	if err != nil {
		logger.FromContext(r.Context()).Warnw("list rendered with error", "entity", entity, "err", err)
	}
	body, err := partial("list", map[string]any{"Site": s, "Entity": entity, "Table": form.RenderTable(t)})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.render(w, r, http.StatusOK, page{Title: sc.Title, Site: s, Nav: c.nav(s, entity), Body: body})
}

func (c *Component) pageNew(w http.ResponseWriter, r *http.Request) {
	s, entity := siteFrom(r), chi.URLParam(r, "entity")
	sc, err := c.svc.Schema(entity)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if sc.Singleton {
		http.Redirect(w, r, entityPath(s, entity), http.StatusSeeOther)
		return
	}
	c.renderForm(w, r, http.StatusOK, sc, formState{Action: entityPath(s, entity), SubmitLabel: "Create"})
}

func (c *Component) pageEdit(w http.ResponseWriter, r *http.Request) {
	s, entity, id := siteFrom(r), chi.URLParam(r, "entity"), chi.URLParam(r, "id")
	sc, err := c.svc.Schema(entity)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	rec, err := c.svc.Get(r.Context(), s, entity, id)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.renderForm(w, r, http.StatusOK, sc, formState{Action: entityPath(s, entity) + "/" + id, Values: rec})
}

func (c *Component) postEntity(w http.ResponseWriter, r *http.Request) {
	s, entity := siteFrom(r), chi.URLParam(r, "entity")
	sc, in, ok := c.readForm(w, r, entity)
	if !ok {
		return
	}

	var err error
	if sc.Singleton {
		_, err = c.svc.SaveSingle(r.Context(), s, entity, in)
	} else {
		_, err = c.svc.Create(r.Context(), s, entity, in)
	}
	if err != nil {
		c.rejectForm(w, r, sc, formState{Action: entityPath(s, entity), Values: in}, err)
		return
	}
	http.Redirect(w, r, entityPath(s, entity), http.StatusSeeOther)
}

func (c *Component) postEdit(w http.ResponseWriter, r *http.Request) {
	s, entity, id := siteFrom(r), chi.URLParam(r, "entity"), chi.URLParam(r, "id")
	sc, in, ok := c.readForm(w, r, entity)
	if !ok {
		return
	}
	if _, err := c.svc.Update(r.Context(), s, entity, id, in); err != nil {
		c.rejectForm(w, r, sc, formState{Action: entityPath(s, entity) + "/" + id, Values: in}, err)
		return
	}
	http.Redirect(w, r, entityPath(s, entity), http.StatusSeeOther)
}

/*──────────────────────────── form helpers ────────────────────────────────*/

type formState struct {
	Action      string
	Values      map[string]any
	Errors      map[string]string
	FormError   string
	SubmitLabel string
}

func (c *Component) readForm(w http.ResponseWriter, r *http.Request, entity string) (*form.Schema, map[string]any, bool) {
	sc, err := c.svc.Schema(entity)
	if err != nil {
		c.fail(w, r, err)
		return nil, nil, false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, nil, false
	}
	return sc, form.DecodeValues(sc, r.PostForm), true
}

// rejectForm re-renders the form after a failed save.
func (c *Component) rejectForm(w http.ResponseWriter, r *http.Request, sc *form.Schema, st formState, err error) {
	if ve, ok := form.AsValidationError(err); ok {
		st.Errors = ve.Map()
		st.FormError = respond.ValidationMessage
		c.renderForm(w, r, http.StatusUnprocessableEntity, sc, st)
		return
	}
	status, msg := respond.Classify(classify(err))
	logger.FromContext(r.Context()).Errorw("save failed", "entity", sc.ID, "status", status, "err", err)
	st.FormError = msg
	c.renderForm(w, r, status, sc, st)
}

func (c *Component) renderForm(w http.ResponseWriter, r *http.Request, status int, sc *form.Schema, st formState) {
	tok, ok := c.token(w, r)
	if !ok {
		return
	}
	s := siteFrom(r)
	body, err := form.RenderForm(sc, form.RenderOptions{
		Action:      st.Action,
		Values:      st.Values,
		Errors:      st.Errors,
		FormError:   st.FormError,
		CSRFToken:   tok,
		SubmitLabel: st.SubmitLabel,
		Site:        s.String(),
		Folder:      sc.ID,
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	c.write(w, r, status, page{Title: sc.Title, Site: s, Nav: c.nav(s, sc.ID), CSRFToken: tok, Body: body})
}

/*──────────────────────────── page plumbing ───────────────────────────────*/

func (c *Component) nav(s site.Site, active string) []navItem {
	all := c.svc.Schemas()
	out := make([]navItem, 0, len(all))
	for _, sc := range all {
		out = append(out, navItem{Title: sc.Title, URL: entityPath(s, sc.ID), Active: sc.ID == active})
	}
	return out
}

func (c *Component) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	tok, err := c.tokens.Token()
	if err != nil {
		logger.FromContext(r.Context()).Errorw("csrf token", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return "", false
	}
	return tok, true
}

// render fills the CSRF token and writes p.
func (c *Component) render(w http.ResponseWriter, r *http.Request, status int, p page) {
	tok, ok := c.token(w, r)
	if !ok {
		return
	}
	p.CSRFToken = tok
	if p.Site != "" && p.Nav == nil {
		p.Nav = c.nav(p.Site, "")
	}
	c.write(w, r, status, p)
}

func (c *Component) write(w http.ResponseWriter, r *http.Request, status int, p page) {
	p.Sites = site.All()
	p.Admin, _ = auth.AdminFrom(r.Context())

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		logger.FromContext(r.Context()).Errorw("render page", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// fail renders an error page with the classified status and message.
func (c *Component) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := respond.Classify(classify(err))
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Errorw("page failed", "status", status, "err", err)
	} else {
		log.Warnw("page rejected", "status", status, "err", err)
	}
	c.render(w, r, status, page{Title: http.StatusText(status), Site: siteFrom(r), Error: msg})
}

func partial(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func entityPath(s site.Site, entity string) string {
	return routing.BuildPath("/admin/"+s.String(), entity)
}
