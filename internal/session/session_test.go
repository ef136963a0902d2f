package session

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var (
	hashKey  = bytes.Repeat([]byte("h"), 32)
	blockKey = bytes.Repeat([]byte("b"), 32)
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(hashKey, blockKey, Options{MaxAge: time.Hour, Secure: true})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// carry copies the cookies set on rec onto a new request.
func carry(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestLoginThenCurrent(t *testing.T) {
	m := newManager(t)
	rec := httptest.NewRecorder()
	if err := m.Login(rec, Data{AdminID: "a-1", AuthUserID: "u-1"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || !cookies[0].Secure || cookies[0].Name != CookieName {
		t.Fatalf("unexpected cookie: %+v", cookies)
	}

	d, ok := m.Current(carry(rec))
	if !ok || d.AdminID != "a-1" || d.AuthUserID != "u-1" || d.IssuedAt.IsZero() {
		t.Fatalf("Current = %+v, %v", d, ok)
	}
}

func TestCurrent_RejectsTampered(t *testing.T) {
	m := newManager(t)
	rec := httptest.NewRecorder()
	if err := m.Login(rec, Data{AdminID: "a-1", AuthUserID: "u-1"}); err != nil {
		t.Fatal(err)
	}
	c := rec.Result().Cookies()[0]
	b := []byte(c.Value)
	b[10] ^= 0x01
	c.Value = string(b)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(c)
	if _, ok := m.Current(r); ok {
		t.Fatal("tampered cookie accepted")
	}
}

func TestCurrent_RejectsOtherKeys(t *testing.T) {
	m := newManager(t)
	rec := httptest.NewRecorder()
	if err := m.Login(rec, Data{AdminID: "a-1", AuthUserID: "u-1"}); err != nil {
		t.Fatal(err)
	}
	other, err := NewManager(bytes.Repeat([]byte("x"), 32), blockKey, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := other.Current(carry(rec)); ok {
		t.Fatal("cookie signed with a different key accepted")
	}
}

func TestCurrent_Missing(t *testing.T) {
	m := newManager(t)
	if _, ok := m.Current(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Fatal("no cookie reported a session")
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	m := newManager(t)
	rec := httptest.NewRecorder()
	m.Logout(rec)
	c := rec.Result().Cookies()
	if len(c) != 1 || c[0].MaxAge >= 0 || c[0].Value != "" {
		t.Fatalf("unexpected logout cookie: %+v", c)
	}
}

func TestNewManager_ShortKeys(t *testing.T) {
	if _, err := NewManager([]byte("short"), blockKey, Options{}); err != ErrShortKey {
		t.Fatalf("short hash key: got %v", err)
	}
	if _, err := NewManager(hashKey, []byte("seventeen bytes!!"), Options{}); err != ErrShortKey {
		t.Fatalf("bad block key: got %v", err)
	}
}
