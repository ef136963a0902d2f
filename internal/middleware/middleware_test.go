package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanizio/siteadmin/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestForceHTTPS(t *testing.T) {
	cases := []struct {
		name  string
		url   string
		proto string
		want  int
	}{
		{"plain http redirects", "http://admin.example.org/admin?x=1", "", http.StatusPermanentRedirect},
		{"localhost passes", "http://localhost:8080/admin", "", http.StatusNoContent},
		{"proxied https passes", "http://admin.example.org/admin", "https", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.proto != "" {
				r.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			rec := httptest.NewRecorder()
			ForceHTTPS(ok).ServeHTTP(rec, r)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusPermanentRedirect && rec.Header().Get("Location") != "https://admin.example.org/admin?x=1" {
				t.Fatalf("Location = %q", rec.Header().Get("Location"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Security("https://cdn.example.org")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("handler override lost")
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "img-src 'self' data: https://cdn.example.org;") {
		t.Errorf("CSP = %q", csp)
	}
	for _, h := range []string{"Strict-Transport-Security", "Content-Security-Policy", "X-Content-Type-Options"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("%s missing", h)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	var sawLogger bool
	h := RequestLogger(zap.New(core).Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logger.FromContext(r.Context()) != zap.S()
		http.Error(w, "nope", http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/ngo/projects", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !sawLogger {
		t.Error("handler did not receive the request logger")
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry (healthz skipped), got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["status"] != int64(404) {
		t.Fatalf("unexpected entry: %v %v", entries[0].Level, entries[0].ContextMap())
	}
}

type tokenSet map[string]bool

func (s tokenSet) Verify(tok string) bool { return s[tok] }

func TestCSRF(t *testing.T) {
	h := CSRF(tokenSet{"good": true})(ok)

	cases := []struct {
		name   string
		method string
		path   string
		header string
		body   string
		ctype  string
		want   int
	}{
		{"get passes", http.MethodGet, "/admin/ngo/projects", "", "", "", http.StatusNoContent},
		{"header token", http.MethodDelete, "/api/sites/ngo/projects/1", "good", "", "", http.StatusNoContent},
		{"form token", http.MethodPost, "/admin/ngo/projects", "", "csrf_token=good&title=x", "application/x-www-form-urlencoded", http.StatusNoContent},
		{"missing token", http.MethodPost, "/api/sites/ngo/projects", "", `{"title":"x"}`, "application/json", http.StatusForbidden},
		{"bad token", http.MethodPatch, "/api/sites/ngo/projects/1/fields/status", "forged", "", "", http.StatusForbidden},
		{"json body field ignored", http.MethodPost, "/api/sites/ngo/projects", "", `{"csrf_token":"good"}`, "application/json", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			if tc.header != "" {
				r.Header.Set(CSRFHeader, tc.header)
			}
			if tc.ctype != "" {
				r.Header.Set("Content-Type", tc.ctype)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusForbidden && strings.HasPrefix(tc.path, "/api/") &&
				!strings.Contains(rec.Body.String(), CSRFMessage) {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}
