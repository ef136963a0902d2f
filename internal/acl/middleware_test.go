// internal/acl/middleware_test.go
//
// Gate behaviour for JSON and HTML callers.
//
// Run: go test ./internal/acl -v

package acl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yanizio/siteadmin/internal/auth"
	"github.com/yanizio/siteadmin/internal/session"
)

type fakeSession struct {
	d  session.Data
	ok bool
}

func (f fakeSession) Current(*http.Request) (session.Data, bool) { return f.d, f.ok }

type fakeAdmins struct {
	a   auth.Admin
	err error
}

func (f fakeAdmins) AdminByAuthUser(context.Context, string) (auth.Admin, error) { return f.a, f.err }

var editor = auth.Admin{ID: "a-1", AuthUserID: "u-1", Email: "ed@example.org", Role: auth.RoleEditor}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error
}

func TestRequireAdmin_NoSession(t *testing.T) {
	gate := RequireAdmin(fakeSession{}, fakeAdmins{}, "/login")(http.NotFoundHandler())

	rec := serve(gate, http.MethodGet, "/api/sites/ngo/projects")
	if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "Authentication required." {
		t.Fatalf("JSON: status %d", rec.Code)
	}

	rec = serve(gate, http.MethodGet, "/admin/ngo/projects?x=1")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("HTML: status %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?next=%2Fadmin%2Fngo%2Fprojects%3Fx%3D1" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestRequireAdmin_NotAdmin(t *testing.T) {
	gate := RequireAdmin(
		fakeSession{d: session.Data{AuthUserID: "u-9"}, ok: true},
		fakeAdmins{err: auth.ErrNotAdmin}, "/login",
	)(http.NotFoundHandler())

	rec := serve(gate, http.MethodGet, "/api/sites/company/services")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
	if msg := errorBody(t, rec); msg != "Permission denied, please log in with admin access." {
		t.Fatalf("message %q", msg)
	}
}

func TestRequireAdmin_LoadFailure(t *testing.T) {
	gate := RequireAdmin(
		fakeSession{d: session.Data{AuthUserID: "u-1"}, ok: true},
		fakeAdmins{err: errors.New("db down")}, "/login",
	)(http.NotFoundHandler())

	if rec := serve(gate, http.MethodGet, "/api/auth/me"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRequireAdmin_AttachesAdmin(t *testing.T) {
	var got auth.Admin
	gate := RequireAdmin(
		fakeSession{d: session.Data{AuthUserID: "u-1"}, ok: true},
		fakeAdmins{a: editor}, "/login",
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.AdminFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	if rec := serve(gate, http.MethodGet, "/admin"); rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if got.ID != editor.ID {
		t.Fatalf("admin not attached: %+v", got)
	}
}

func withAdmin(a auth.Admin, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), a)))
	})
}

func TestRequirePermission(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	settingsWrite := RequirePermission(Settings, Write)(ok)

	if rec := serve(withAdmin(editor, settingsWrite), http.MethodPut, "/api/sites/ngo/settings/blog_enabled"); rec.Code != http.StatusForbidden {
		t.Fatalf("editor: status %d", rec.Code)
	}
	super := auth.Admin{ID: "a-2", Role: auth.RoleSuperadmin}
	if rec := serve(withAdmin(super, settingsWrite), http.MethodPut, "/api/sites/ngo/settings/blog_enabled"); rec.Code != http.StatusNoContent {
		t.Fatalf("superadmin: status %d", rec.Code)
	}
	if rec := serve(settingsWrite, http.MethodPut, "/api/sites/ngo/settings/blog_enabled"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d", rec.Code)
	}
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		role      auth.Role
		component string
		action    string
		want      bool
	}{
		{auth.RoleEditor, Content, Write, true},
		{auth.RoleEditor, Settings, Read, true},
		{auth.RoleEditor, Settings, Write, false},
		{auth.RoleSuperadmin, Settings, Write, true},
		{auth.Role("viewer"), Content, Read, false},
		{auth.RoleSuperadmin, "billing", Read, false},
	}
	for _, tc := range cases {
		if got := Allowed(tc.role, tc.component, tc.action); got != tc.want {
			t.Errorf("Allowed(%s, %s, %s) = %v", tc.role, tc.component, tc.action, got)
		}
	}
}

func TestWantsJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	r.Header.Set("Accept", "application/json")
	if !WantsJSON(r) {
		t.Error("Accept: application/json not detected")
	}
	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("Accept", "text/html,application/json;q=0.9")
	if WantsJSON(r) {
		t.Error("browser Accept treated as JSON")
	}
}
