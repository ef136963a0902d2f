// internal/session/session.go
//
// Signed and encrypted admin session cookie.
//
// Context
//   After a successful login the auth component stores the admin's ids in a
//   cookie named "siteadmin_session".  The payload is encoded with
//   gorilla/securecookie: HMAC-SHA256 over the value (hash key) and AES
//   encryption (block key), plus an embedded timestamp that securecookie
//   checks against MaxAge on every decode.
//
//   The cookie carries identifiers only.  The admin gate reloads the
//   admin_user row on every request, so revoking an admin takes effect
//   immediately rather than at cookie expiry.
//
// Style
//   Two-space sentence spacing, Oxford comma, terse inline notes.
//
//------------------------------------------------------------------------------

package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// CookieName is the session cookie's name.
const CookieName = "siteadmin_session"

// ErrShortKey is returned when a key cannot sign or encrypt safely.
var ErrShortKey = errors.New("session hash key must be at least 32 bytes and block key 16, 24, or 32 bytes")

// Data is the cookie payload.
type Data struct {
	AdminID    string
	AuthUserID string
	IssuedAt   time.Time
}

// Options tunes the cookie.
type Options struct {
	MaxAge time.Duration // ≤ 0 means 12 hours.
	Secure bool          // Send over HTTPS only.
}

// Manager encodes and decodes session cookies.
type Manager struct {
	sc     *securecookie.SecureCookie
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewManager builds a Manager.  hashKey signs, blockKey encrypts.
func NewManager(hashKey, blockKey []byte, opts Options) (*Manager, error) {
	if len(hashKey) < 32 {
		return nil, ErrShortKey
	}
	switch len(blockKey) {
	case 16, 24, 32:
	default:
		return nil, ErrShortKey
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 12 * time.Hour
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(opts.MaxAge / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{sc: sc, maxAge: opts.MaxAge, secure: opts.Secure, now: time.Now}, nil
}

// Login writes a fresh session cookie for d.
func (m *Manager) Login(w http.ResponseWriter, d Data) error {
	if d.IssuedAt.IsZero() {
		d.IssuedAt = m.now().UTC()
	}
	val, err := m.sc.Encode(CookieName, d)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    val,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.maxAge / time.Second),
		Expires:  m.now().Add(m.maxAge),
	})
	return nil
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Current decodes the session on r.
//
// ok == false when the cookie is missing, tampered with, or expired.
func (m *Manager) Current(r *http.Request) (d Data, ok bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Data{}, false
	}
	if err := m.sc.Decode(CookieName, c.Value, &d); err != nil {
		return Data{}, false
	}
	if d.AuthUserID == "" {
		return Data{}, false
	}
	return d, true
}
