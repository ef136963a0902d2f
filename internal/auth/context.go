// internal/auth/context.go
//
// Request-scoped admin identity.
//
// Usage
// -----
//
//	// The admin gate attaches the signed-in admin after the session check.
//	ctx = auth.WithAdmin(ctx, a)
//
//	// Handlers downstream read it back.
//	a, ok := auth.AdminFrom(ctx)
//
// Notes
// -----
// • The value is a copy, so handlers cannot mutate the gate's view of the
//   admin.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// adminKey is unexported to avoid context-key collisions.
type adminKey struct{}

// WithAdmin returns a new context carrying a.
func WithAdmin(ctx context.Context, a Admin) context.Context {
	return context.WithValue(ctx, adminKey{}, a)
}

// AdminFrom extracts the admin from ctx.  It returns (Admin{}, false) when no
// admin is attached.
func AdminFrom(ctx context.Context) (Admin, bool) {
	a, ok := ctx.Value(adminKey{}).(Admin)
	return a, ok
}
