package templates

import (
	"embed"
	"io/fs"
)

//go:embed all:bundled
var bundledFS embed.FS

// Bundled returns the default templates shipped with manuscript.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundledFS, "bundled")
	if err != nil {
		panic(err)
	}
	return sub
}
