// internal/auth/store.go
//
// Credential check and admin lookup.
//
// Context
// -------
// Two tables back sign-in:
//
//	auth_user   (id, email, password_hash, …)   every account that can log in
//	admin_user  (id, auth_user_id, email, role) the subset allowed into admin
//
// Login is a two-step check.  Authenticate compares the bcrypt hash on
// auth_user; AdminByAuthUser then requires a matching admin_user row.  A
// valid account with no admin row is ErrNotAdmin, which the login handler
// reports as 403 rather than 400.
//
// Notes
// -----
// • An unknown email still runs one bcrypt comparison against a fixed hash so
//   the response time does not reveal which emails exist.
// • Emails are compared lower-cased and trimmed.
// • Oxford commas, two spaces after periods.

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// Role is an admin permission level.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleEditor     Role = "editor"
)

// Valid reports whether r is a recognised role.
func (r Role) Valid() bool { return r == RoleSuperadmin || r == RoleEditor }

var (
	// ErrInvalidCredentials covers a missing account and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotAdmin is returned when the account has no admin_user row.
	ErrNotAdmin = errors.New("account is not an admin")
)

// Admin is one admin_user row.
type Admin struct {
	ID         string    `db:"id"           json:"id"`
	AuthUserID string    `db:"auth_user_id" json:"auth_user_id"`
	Email      string    `db:"email"        json:"email"`
	Role       Role      `db:"role"         json:"role"`
	CreatedAt  time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"   json:"updated_at"`
}

// dummyHash is compared when the email is unknown.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("unknown-account"), bcrypt.DefaultCost)
	return h
})

// Store reads auth_user and admin_user.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps db.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// Authenticate checks email and password and returns the auth_user id.
func (st *Store) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	var row struct {
		ID   string `db:"id"`
		Hash string `db:"password_hash"`
	}
	err := st.db.GetContext(ctx, &row, st.db.Rebind(`
	    SELECT  id, password_hash
	    FROM    auth_user
	    WHERE   email = ?`), email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return "", ErrInvalidCredentials
	case err != nil:
		return "", fmt.Errorf("load auth user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.Hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return row.ID, nil
}

// AdminByAuthUser returns the admin row linked to authUserID.
func (st *Store) AdminByAuthUser(ctx context.Context, authUserID string) (Admin, error) {
	var a Admin
	err := st.db.GetContext(ctx, &a, st.db.Rebind(`
	    SELECT  id, auth_user_id, email, role, created_at, updated_at
	    FROM    admin_user
	    WHERE   auth_user_id = ?`), authUserID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Admin{}, ErrNotAdmin
	case err != nil:
		return Admin{}, fmt.Errorf("load admin: %w", err)
	}
	if !a.Role.Valid() {
		return Admin{}, fmt.Errorf("%w: role %q", ErrNotAdmin, a.Role)
	}
	return a, nil
}

// Login runs Authenticate then AdminByAuthUser.
func (st *Store) Login(ctx context.Context, email, password string) (Admin, error) {
	uid, err := st.Authenticate(ctx, email, password)
	if err != nil {
		return Admin{}, err
	}
	return st.AdminByAuthUser(ctx, uid)
}

// HashPassword returns a bcrypt hash suitable for auth_user.password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
