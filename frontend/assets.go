// Package frontend embeds the default browser UI assets linked into the
// binary. The Directory Renderer falls back to these whenever no
// --assets override directory is configured.
package frontend

import (
	"embed"
	"io/fs"
)

//go:embed assets/index.html assets/index.css assets/index.js assets/favicon.ico
var embedded embed.FS

// GetEmbeddedFS returns the embedded default asset filesystem, rooted so
// that "index.html" etc. are top-level entries.
func GetEmbeddedFS() (fs.FS, error) {
	return fs.Sub(embedded, "assets")
}
