// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  cmd/web blank-imports the
// components, calls Init(deps) on every one that implements Initializer,
// and then lets each add its page and API routes to the shared router.

package component

import (
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/siteadmin/internal/admin"
	"github.com/yanizio/siteadmin/internal/asset"
	"github.com/yanizio/siteadmin/internal/auth"
	"github.com/yanizio/siteadmin/internal/form"
	"github.com/yanizio/siteadmin/internal/session"
	"github.com/yanizio/siteadmin/internal/site"
)

// Deps is the shared wiring handed to every component.
type Deps struct {
	Admin     *admin.Service
	Settings  *site.SettingsStore
	Auth      *auth.Store
	Sessions  *session.Manager
	CSRF      *form.CSRF
	Assets    asset.Store
	MaxUpload int64  // Upload cap in bytes; ≤ 0 uses asset.DefaultMaxBytes.
	LoginPath string // HTML login page, e.g. "/login".
}

// Initializer is optional.  If a Component implements it, cmd/web calls
// Init(deps) once before Routes.
type Initializer interface {
	Init(Deps) error
}

// Component contract.
//
// Routes should add BOTH page and API endpoints to r, e.g:
//
//	r.Get("/login", c.loginPage)
//	r.Route("/api/assets", func(api chi.Router) { ... })
type Component interface {
	Name() string
	Routes(r chi.Router)
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name, so routes mount in
// the same order on every boot.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount initialises and mounts every registered component on r.
func Mount(r chi.Router, d Deps) error {
	for _, c := range All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(d); err != nil {
				return err
			}
		}
		c.Routes(r)
	}
	return nil
}
