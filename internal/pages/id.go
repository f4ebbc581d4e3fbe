package pages

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IndexID is the id of the root page (pages/index.md).
const IndexID = "index"

var pageExt = regexp.MustCompile(`(?i)\.(md|html?)$`)

// NormalizeID turns a request path or a file path relative to the pages
// directory into a page id.
//
//	/docs/intro.html -> docs/intro
//	docs/index.md    -> docs
//	index.md         -> index
//	/                -> index
//
// Only a single trailing "index" segment is stripped, and a bare "index"
// stays as is. ".." segments never climb above the pages directory.
func NormalizeID(id string) string {
	id = filepath.ToSlash(id)
	id = pageExt.ReplaceAllString(id, "")
	id = path.Clean("/" + id)
	id = strings.Trim(id, "/")
	id = strings.TrimSuffix(id, "/"+IndexID)
	if id == "" {
		return IndexID
	}
	return id
}
