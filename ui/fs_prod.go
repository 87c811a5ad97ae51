//go:build !debug

package ui

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var assets embed.FS

// FS returns the embedded templates and static files (production: baked into binary).
func FS() fs.FS {
	return assets
}
