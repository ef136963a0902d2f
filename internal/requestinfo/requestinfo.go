//
//  internal/requestinfo/requestinfo.go
//
//  Per-request client metadata for the audit log: user-agent summary,
//  client IP, and a best-effort geolocation.  These structs are inert.
//  They hold no database handles or large buffers, so they are safe to
//  log or JSON-encode.
//
//  Dependencies
//  • internal/ua                        (uasurfer wrapper)
//  • github.com/oschwald/geoip2-golang  (MaxMind lookup)
//

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/yanizio/siteadmin/internal/ua"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// Geo holds IP-based geolocation hints.
// These are best-effort and may be empty if the DB has no match.
type Geo struct {
	IP         net.IP // Client address after proxy headers.
	CountryISO string // "US", "KE", "FR", ...
	City       string // "Nairobi", "Paris", ...
}

// RequestInfo is stored in the request context by Enrich.
type RequestInfo struct {
	UA        ua.Info
	Geo       Geo
	Timestamp time.Time
}

// LogFields returns key/value pairs for a sugared logger.
func (i *RequestInfo) LogFields() []any {
	if i == nil {
		return nil
	}
	ip := ""
	if i.Geo.IP != nil {
		ip = i.Geo.IP.String()
	}
	return []any{
		"ip", ip,
		"country", i.Geo.CountryISO,
		"browser", i.UA.String(),
	}
}

//
//  -----------------------------
//  Package-level state
//  -----------------------------
//

// geoReader is a MaxMind handle.  It is safe for concurrent reads, which is
// all we ever perform.  Nil means geolocation is disabled.
var geoReader atomic.Pointer[geoip2.Reader]

// InitGeo opens the GeoLite2-City database.  An empty path leaves
// geolocation disabled.
func InitGeo(dbPath string) error {
	if dbPath == "" {
		return nil
	}
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return fmt.Errorf("requestinfo: open GeoLite2 DB: %w", err)
	}
	if old := geoReader.Swap(r); old != nil {
		old.Close()
	}
	return nil
}

// CloseGeo releases the reader opened by InitGeo.
func CloseGeo() {
	if r := geoReader.Swap(nil); r != nil {
		r.Close()
	}
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich.
// It returns nil if the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// WithInfo stores info in ctx.
func WithInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

//
//  -----------------------------
//  Internal helpers
//  -----------------------------
//

// lookupGeo returns best-effort Geo data using the global reader.
func lookupGeo(ip net.IP) Geo {
	r := geoReader.Load()
	if r == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := r.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{
		IP:         ip,
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}
