// internal/site/site.go
//
// Tenant discriminator.
//
// Context
// -------
// Every content row belongs to exactly one of the two affiliated websites.
// Handlers parse the site from the URL and pass it explicitly down to the
// service and store layers; nothing reads an ambient "current site".
//
// Notes
// -----
// • Values are lowercase and match the `site` column verbatim.
// • Oxford commas, two spaces after periods.
package site

import (
	"errors"
	"fmt"
)

// Site is the tenant discriminator stored on every row.
type Site string

const (
	Company Site = "company"
	NGO     Site = "ngo"
)

// ErrUnknownSite is returned by Parse for anything outside the fixed set.
var ErrUnknownSite = errors.New("unknown site")

// All returns the recognised sites in display order.
func All() []Site { return []Site{Company, NGO} }

// Parse validates raw and returns the matching Site.
func Parse(raw string) (Site, error) {
	switch Site(raw) {
	case Company, NGO:
		return Site(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSite, raw)
	}
}

func (s Site) String() string { return string(s) }

// Names returns All as plain strings, handy for select options.
func Names() []string {
	out := make([]string, 0, 2)
	for _, s := range All() {
		out = append(out, s.String())
	}
	return out
}
