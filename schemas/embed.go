// Package schemas embeds the entity definitions the admin engine is built
// from.  One YAML file per table; see internal/form for the field grammar.
package schemas

import "embed"

//go:embed *.yaml
var FS embed.FS
