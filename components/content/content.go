// components/content/content.go
//
// Content component: the JSON API and the HTML admin pages for every
// entity schema, on both sites.
//
// Context
// -------
// One generic set of handlers serves all thirteen entity types.  The site
// and entity come from the URL, never from ambient state:
//
//	/api/sites/{site}/...   JSON, consumed by admin.js and API clients
//	/admin/{site}/...       server-rendered pages built from form.RenderForm
//	                        and form.RenderTable
//
// Both trees sit behind acl.RequireAdmin.  Writes additionally need
// content:write, and settings writes need settings:write (superadmin).
//
// Notes
// -----
// • siteCtx rejects anything but company and ngo with 404 before a handler
//   runs, and tags the request logger with the site.
// • Mutating JSON replies carry refresh: true so admin.js reloads the list.
// • Oxford commas, two spaces after periods.
//
//------------------------------------------------------------------------------

package content

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/siteadmin/internal/acl"
	"github.com/yanizio/siteadmin/internal/admin"
	"github.com/yanizio/siteadmin/internal/component"
	"github.com/yanizio/siteadmin/internal/content"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/respond"
	"github.com/yanizio/siteadmin/internal/site"
)

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Settings reads and writes per-site flags.  *site.SettingsStore
// implements it.
type Settings interface {
	All(ctx context.Context, s site.Site) ([]site.Setting, error)
	Set(ctx context.Context, s site.Site, k site.Key, value bool) error
}

// Tokens issues CSRF tokens for pages.  *form.CSRF implements it.
type Tokens interface {
	Token() (string, error)
}

// Component serves content pages and API routes.
type Component struct {
	svc       *admin.Service
	settings  Settings
	sessions  acl.SessionReader
	admins    acl.AdminLoader
	tokens    Tokens
	loginPath string
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "content" }

// Init copies the service, settings store, and session wiring from d.
func (c *Component) Init(d component.Deps) error {
	if d.Admin == nil || d.Settings == nil || d.Sessions == nil || d.Auth == nil || d.CSRF == nil {
		return errors.New("content component: admin service, settings, sessions, auth, and csrf are required")
	}
	c.svc, c.settings = d.Admin, d.Settings
	c.sessions, c.admins, c.tokens = d.Sessions, d.Auth, d.CSRF
	c.loginPath = d.LoginPath
	return nil
}

// Routes adds the API tree, the admin pages, and the static assets.
func (c *Component) Routes(r chi.Router) {
	gate := acl.RequireAdmin(c.sessions, c.admins, c.loginPath)
	read := acl.RequirePermission(acl.Content, acl.Read)
	write := acl.RequirePermission(acl.Content, acl.Write)

	r.Route("/api/sites/{site}", func(r chi.Router) {
		r.Use(gate, siteCtx)

		r.With(read).Get("/schemas", c.apiSchemas)
		r.With(read).Get("/dashboard", c.apiDashboard)

		r.Route("/settings", func(r chi.Router) {
			r.With(acl.RequirePermission(acl.Settings, acl.Read)).Get("/", c.apiSettings)
			r.With(acl.RequirePermission(acl.Settings, acl.Write)).Put("/{key}", c.apiSetSetting)
		})

		r.Route("/{entity}", func(r chi.Router) {
			r.With(read).Get("/", c.apiList)
			r.With(write).Post("/", c.apiCreate)
			r.With(read).Get("/single", c.apiSingle)
			r.With(write).Put("/single", c.apiSaveSingle)
			r.With(read).Get("/{id}", c.apiGet)
			r.With(write).Put("/{id}", c.apiUpdate)
			r.With(write).Delete("/{id}", c.apiDelete)
			r.With(write).Patch("/{id}/fields/{field}", c.apiSetField)
		})
	})

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/admin/static/*", http.StripPrefix("/admin/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(gate)
		r.Get("/admin", c.pageSites)
		r.Route("/admin/{site}", func(r chi.Router) {
			r.Use(siteCtx, read)
			r.Get("/", c.pageDashboard)
			r.Get("/{entity}", c.pageEntity)
			r.With(write).Post("/{entity}", c.postEntity)
			r.Get("/{entity}/new", c.pageNew)
			r.Get("/{entity}/{id}/edit", c.pageEdit)
			r.With(write).Post("/{entity}/{id}", c.postEdit)
		})
	})
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── site context ────────────────────────────────*/

type siteKey struct{}

// UnknownSiteMessage answers a site outside the fixed set.
const UnknownSiteMessage = "Unknown site."

// siteCtx parses {site}, answers 404 for anything unknown, and stores the
// parsed value for siteFrom.
func siteCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := site.Parse(chi.URLParam(r, "site"))
		if err != nil {
			if acl.WantsJSON(r) {
				respond.Message(w, http.StatusNotFound, UnknownSiteMessage)
				return
			}
			http.Error(w, UnknownSiteMessage, http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), siteKey{}, s)
		ctx = logger.With(ctx, "site", s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func siteFrom(r *http.Request) site.Site {
	s, _ := r.Context().Value(siteKey{}).(site.Site)
	return s
}

/*──────────────────────────── error mapping ───────────────────────────────*/

// Fixed messages for request errors the database layer knows nothing about.
const (
	UnknownEntityMessage  = "Unknown content type."
	UnknownColumnMessage  = "Unknown sort column."
	SingletonMessage      = "This content type holds one record per site."
	NotSingletonMessage   = "This content type holds many records."
	NotInlineMessage      = "This field cannot be changed from the list."
	UnknownSettingMessage = "Unknown setting."
	BadBodyMessage        = "Request body must be a JSON object."
)

// classify pins the status for errors the service and stores return.
func classify(err error) error {
	switch {
	case errors.Is(err, content.ErrUnknownEntity):
		return respond.WithStatus(http.StatusNotFound, UnknownEntityMessage, err)
	case errors.Is(err, content.ErrUnknownColumn):
		return respond.WithStatus(http.StatusBadRequest, UnknownColumnMessage, err)
	case errors.Is(err, admin.ErrSingleton):
		return respond.WithStatus(http.StatusBadRequest, SingletonMessage, err)
	case errors.Is(err, admin.ErrNotSingleton):
		return respond.WithStatus(http.StatusBadRequest, NotSingletonMessage, err)
	case errors.Is(err, admin.ErrNotInline):
		return respond.WithStatus(http.StatusBadRequest, NotInlineMessage, err)
	case errors.Is(err, site.ErrUnknownKey):
		return respond.WithStatus(http.StatusNotFound, UnknownSettingMessage, err)
	}
	return err
}

// apiError writes err as JSON.
func apiError(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, r, classify(err))
}
