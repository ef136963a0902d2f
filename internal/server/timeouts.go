// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout        abort slow-loris headers and bodies (15 s)
//   • WriteTimeout       cap total response time (30 s)
//   • IdleTimeout        close keep-alives on idle clients (60 s)
//   • ReadHeaderTimeout  bound header reads separately (5 s)
//
// This helper centralises those defaults so cmd/web doesn't repeat
// boilerplate.  Zero values in Timeouts fall back to them.
//

package server

import (
	"net/http"
	"time"
)

// Timeouts overrides the defaults; zero keeps the default.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

const (
	defaultRead       = 15 * time.Second
	defaultWrite      = 30 * time.Second
	defaultIdle       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// New constructs an *http.Server with sensible defaults.
func New(addr string, handler http.Handler, t Timeouts) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       orDefault(t.Read, defaultRead),
		WriteTimeout:      orDefault(t.Write, defaultWrite),
		IdleTimeout:       orDefault(t.Idle, defaultIdle),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
