// internal/acl/middleware.go
//
// Chi middleware that gates the admin behind a real session.
//
// Context
// -------
// RequireAdmin runs on every /admin and /api route.  It decodes the session
// cookie, reloads the admin_user row, and attaches it to the request context
// (auth.WithAdmin).  Reloading on every request means a deleted admin row
// locks the account out at once.
//
// Failure handling depends on who is asking:
//
//	JSON caller   401 {error: "Authentication required."}, or 403 when the
//	              account is no longer an admin
//	HTML caller   303 to the login page with ?next=<original path>
//
// RequirePermission runs after RequireAdmin and answers 403 with the fixed
// permission message.
//
// Notes
// -----
// • A request is treated as JSON when its path starts with /api/ or its
//   Accept header prefers application/json.
// • Oxford commas, two spaces after periods.

package acl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/yanizio/siteadmin/internal/auth"
	"github.com/yanizio/siteadmin/internal/database"
	"github.com/yanizio/siteadmin/internal/logger"
	"github.com/yanizio/siteadmin/internal/respond"
	"github.com/yanizio/siteadmin/internal/session"
)

// SessionReader decodes the session cookie.
type SessionReader interface {
	Current(r *http.Request) (session.Data, bool)
}

// AdminLoader resolves the admin behind a session.
type AdminLoader interface {
	AdminByAuthUser(ctx context.Context, authUserID string) (auth.Admin, error)
}

// AuthRequiredMessage is the 401 body text.
var AuthRequiredMessage = database.KindAuth.Message()

// RequireAdmin ensures the request carries a valid session for an admin.
func RequireAdmin(sess SessionReader, admins AdminLoader, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, ok := sess.Current(r)
			if !ok {
				deny(w, r, http.StatusUnauthorized, AuthRequiredMessage, loginPath)
				return
			}

			a, err := admins.AdminByAuthUser(r.Context(), d.AuthUserID)
			switch {
			case errors.Is(err, auth.ErrNotAdmin):
				logger.FromContext(r.Context()).Warnw("session for non-admin", "auth_user_id", d.AuthUserID)
				deny(w, r, http.StatusForbidden, database.KindPermission.Message(), loginPath)
				return
			case err != nil:
				if WantsJSON(r) {
					respond.Error(w, r, err)
					return
				}
				logger.FromContext(r.Context()).Errorw("acl load admin", "err", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx := auth.WithAdmin(r.Context(), a)
			ctx = logger.With(ctx, "admin", a.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission verifies that the admin's role allows component/action.
func RequirePermission(component, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := auth.AdminFrom(r.Context())
			if !ok {
				respond.Message(w, http.StatusUnauthorized, AuthRequiredMessage)
				return
			}
			if !Allowed(a.Role, component, action) {
				forbid(w, r, a)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WantsJSON reports whether r expects a JSON reply.
func WantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func forbid(w http.ResponseWriter, r *http.Request, a auth.Admin) {
	logger.FromContext(r.Context()).Warnw("permission denied", "role", a.Role, "path", r.URL.Path)
	respond.Message(w, http.StatusForbidden, database.KindPermission.Message())
}

func deny(w http.ResponseWriter, r *http.Request, status int, msg, loginPath string) {
	if WantsJSON(r) {
		respond.Message(w, status, msg)
		return
	}
	target := loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}
