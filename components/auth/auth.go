// components/auth/auth.go
//
// Authentication component: login page, login and logout endpoints, and
// the current-admin probe.
//
// Workflow
// --------
//  1. GET  {login_path}   renders the login form with a CSRF token and the
//                         `next` target the admin gate put in the query.
//  2. POST /auth/login    checks email and password against auth_user, then
//                         requires an admin_user row.  Success writes the
//                         session cookie and 303s to `next` (or /admin).
//                         Failure answers 400 for bad or missing
//                         credentials and 403 for a non-admin account, as
//                         {error} JSON, or as the re-rendered form when the
//                         client accepts text/html.
//  3. POST /auth/logout   clears the cookie and 303s to the login page.
//  4. GET  /auth/me       returns the admin record behind the session.
//
// Notes
// -----
// • The CSRF check runs in the router middleware, before these handlers.
// • Every attempt increments metrics.LoginAttempts by result.
//
//------------------------------------------------------------------------------

package auth

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/siteadmin/internal/acl"
	"github.com/yanizio/siteadmin/internal/auth"
	"github.com/yanizio/siteadmin/internal/component"
	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/metrics"
	"github.com/yanizio/siteadmin/internal/respond"
	"github.com/yanizio/siteadmin/internal/session"
)

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// InvalidCredentialsMessage answers a failed login.
const InvalidCredentialsMessage = "Invalid email or password."

// DefaultNext is where a login lands without a `next` target.
const DefaultNext = "/admin"

//go:embed templates/login.html
var templateFS embed.FS

var loginTpl = template.Must(template.ParseFS(templateFS, "templates/login.html"))

// Admins authenticates and reloads admins.  *auth.Store implements it.
type Admins interface {
	Login(ctx context.Context, email, password string) (auth.Admin, error)
	AdminByAuthUser(ctx context.Context, authUserID string) (auth.Admin, error)
}

// Sessions issues and reads the session cookie.  *session.Manager
// implements it.
type Sessions interface {
	Login(w http.ResponseWriter, d session.Data) error
	Logout(w http.ResponseWriter)
	Current(r *http.Request) (session.Data, bool)
}

// Tokens issues CSRF tokens.  *form.CSRF implements it.
type Tokens interface {
	Token() (string, error)
}

// Component encapsulates login functionality.
type Component struct {
	admins    Admins
	sessions  Sessions
	tokens    Tokens
	loginPath string
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Init copies the auth store, session manager, and CSRF signer from d.
func (c *Component) Init(d component.Deps) error {
	if d.Auth == nil || d.Sessions == nil || d.CSRF == nil {
		return errors.New("auth component: auth store, sessions, and csrf are required")
	}
	c.admins, c.sessions, c.tokens = d.Auth, d.Sessions, d.CSRF
	c.loginPath = d.LoginPath
	if c.loginPath == "" {
		c.loginPath = "/login"
	}
	return nil
}

// Routes adds the login page and the /auth endpoints.
func (c *Component) Routes(r chi.Router) {
	r.Get(c.loginPath, c.handleLoginPage)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", c.handleLogin)
		r.Post("/logout", c.handleLogout)
		r.With(acl.RequireAdmin(c.sessions, c.admins, c.loginPath)).Get("/me", c.handleMe)
	})
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Handlers ─────────────────────────────────────*/

type loginView struct {
	Action    string
	Next      string
	Email     string
	Error     string
	CSRFToken string
	CSRFField string
}

func (c *Component) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// Already signed in: skip the form.
	if d, ok := c.sessions.Current(r); ok {
		if _, err := c.admins.AdminByAuthUser(r.Context(), d.AuthUserID); err == nil {
			http.Redirect(w, r, safeNext(r.URL.Query().Get("next")), http.StatusSeeOther)
			return
		}
	}
	c.renderLogin(w, r, http.StatusOK, loginView{Next: safeNext(r.URL.Query().Get("next"))})
}

func (c *Component) handleLogin(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		respond.Message(w, http.StatusBadRequest, InvalidCredentialsMessage)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	next := safeNext(r.PostForm.Get("next"))

	a, err := c.admins.Login(r.Context(), email, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		metrics.LoginAttempts.WithLabelValues(metrics.ResultInvalid).Inc()
		log.Warnw("login failed", "email", email)
		c.loginFailed(w, r, http.StatusBadRequest, InvalidCredentialsMessage, email, next)
		return
	case errors.Is(err, auth.ErrNotAdmin):
		metrics.LoginAttempts.WithLabelValues(metrics.ResultDenied).Inc()
		log.Warnw("login by non-admin", "email", email)
		c.loginFailed(w, r, http.StatusForbidden, database.KindPermission.Message(), email, next)
		return
	case err != nil:
		metrics.LoginAttempts.WithLabelValues(metrics.ResultError).Inc()
		if !wantsHTML(r) {
			respond.Error(w, r, err)
			return
		}
		log.Errorw("login", "email", email, "err", err)
		c.loginFailed(w, r, http.StatusInternalServerError, database.FallbackMessage, email, next)
		return
	}

	if err := c.sessions.Login(w, session.Data{AdminID: a.ID, AuthUserID: a.AuthUserID}); err != nil {
		metrics.LoginAttempts.WithLabelValues(metrics.ResultError).Inc()
		respond.Error(w, r, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues(metrics.ResultOK).Inc()
	log.Infow("login", "admin", a.Email, "role", a.Role)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (c *Component) handleLogout(w http.ResponseWriter, r *http.Request) {
	c.sessions.Logout(w)
	if !wantsHTML(r) {
		respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}
	http.Redirect(w, r, c.loginPath, http.StatusSeeOther)
}

func (c *Component) handleMe(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.AdminFrom(r.Context())
	respond.JSON(w, http.StatusOK, a)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func (c *Component) loginFailed(w http.ResponseWriter, r *http.Request, status int, msg, email, next string) {
	if !wantsHTML(r) {
		respond.Message(w, status, msg)
		return
	}
	c.renderLogin(w, r, status, loginView{Next: next, Email: email, Error: msg})
}

func (c *Component) renderLogin(w http.ResponseWriter, r *http.Request, status int, v loginView) {
	tok, err := c.tokens.Token()
	if err != nil {
		logger.FromContext(r.Context()).Errorw("csrf token", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	v.Action = "/auth/login"
	v.CSRFToken = tok
	v.CSRFField = form.CSRFField

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := loginTpl.Execute(w, v); err != nil {
		logger.FromContext(r.Context()).Errorw("render login", "err", err)
	}
}

// wantsHTML reports a browser form post.  Anything else, including a bare
// curl call, gets JSON.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// safeNext keeps redirects on this host: a single leading slash, no
// scheme-relative or backslash tricks.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return DefaultNext
	}
	return next
}
