// Package templates resolves, renders and builds html/template files.
//
// Templates live in two trees: the project's templates/ directory and the
// bundled defaults shipped with manuscript. References are resolved as
// follows:
//
//	@name       project tree first, then the bundled tree
//	./name      relative to the including file, inside that file's tree only
//	name        with an including file: same as ./name
//	            without one: project tree only
//
// The extension is optional. A bundled default can therefore be overridden
// by dropping a file with the same name into the project's templates
// directory, while relative includes never cross from one tree into the
// other.
package templates

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/conneroisu/manuscript/internal/errors"
)

// Ext is the template file extension.
const Ext = ".tmpl"

// OverrideMarker prefixes references resolved project-first with a bundled fallback.
const OverrideMarker = "@"

// Tree names.
const (
	TreeProject = "project"
	TreeBundled = "bundled"
)

// Template is a resolved template file.
type Template struct {
	// Tree is TreeProject or TreeBundled.
	Tree string
	// Path is the slash-separated path inside the tree.
	Path string
	// File is the path on disk, empty for embedded templates.
	File string

	root fs.FS
}

// String identifies the template in logs and errors.
func (t Template) String() string {
	if t.File != "" {
		return t.File
	}
	return t.Tree + ":" + t.Path
}

// ReadSource returns the template's contents.
func (t Template) ReadSource() ([]byte, error) {
	if t.root == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInternalError, "unresolved template "+t.String())
	}
	return fs.ReadFile(t.root, t.Path)
}

type tree struct {
	name string
	fsys fs.FS
	// dir is the on-disk location, empty for embedded trees
	dir string
}

// Resolver maps template references to files.
type Resolver struct {
	project tree
	bundled tree
}

// NewResolver creates a resolver over the project templates directory and a
// bundled tree. bundledDir is the bundled tree's on-disk location, or empty
// when it is embedded.
func NewResolver(projectDir string, bundled fs.FS, bundledDir string) *Resolver {
	r := &Resolver{
		project: tree{name: TreeProject, dir: projectDir},
		bundled: tree{name: TreeBundled, fsys: bundled, dir: bundledDir},
	}
	if projectDir != "" {
		r.project.fsys = os.DirFS(projectDir)
	}
	return r
}

// NormalizeRef appends the template extension when ref does not end with it.
func NormalizeRef(ref string) string {
	if strings.HasSuffix(ref, Ext) {
		return ref
	}
	return ref + Ext
}

// Resolve maps ref to a template. from is the including template, or nil
// for a top-level reference. A reference with no matching file yields
// ok == false and a nil error; only unexpected filesystem failures are
// returned as errors.
func (r *Resolver) Resolve(ref string, from *Template) (Template, bool, error) {
	name := NormalizeRef(ref)

	switch {
	case strings.HasPrefix(name, OverrideMarker):
		stripped := strings.TrimPrefix(name, OverrideMarker)
		for _, t := range []tree{r.project, r.bundled} {
			found, ok, err := t.lookup(stripped)
			if err != nil || ok {
				return found, ok, err
			}
		}
		return Template{}, false, nil

	case from != nil:
		t, ok := r.treeOf(from)
		if !ok {
			return Template{}, false, nil
		}
		return t.lookup(path.Join(path.Dir(from.Path), name))

	default:
		return r.project.lookup(name)
	}
}

// GetTemplate is Resolve for references that must exist. A missing
// template is an ErrTemplateNotFound carrying ref.
func (r *Resolver) GetTemplate(ref string, from *Template) (Template, error) {
	t, ok, err := r.Resolve(ref, from)
	if err != nil {
		return Template{}, err
	}
	if !ok {
		e := errors.NewTemplateNotFoundError(ref)
		if from != nil {
			e = e.WithContext("from", from.String())
		}
		return Template{}, e
	}
	return t, nil
}

func (r *Resolver) treeOf(t *Template) (tree, bool) {
	switch t.Tree {
	case TreeProject:
		return r.project, true
	case TreeBundled:
		return r.bundled, true
	}
	return tree{}, false
}

// lookup checks for a regular file at name inside the tree. Names that would
// leave the tree are treated as missing.
func (t tree) lookup(name string) (Template, bool, error) {
	if t.fsys == nil {
		return Template{}, false, nil
	}
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if !fs.ValidPath(name) || name == "." {
		return Template{}, false, nil
	}

	info, err := fs.Stat(t.fsys, name)
	if err != nil {
		if errors.IsNotExist(err) || isNotDir(err) {
			return Template{}, false, nil
		}
		return Template{}, false, errors.FileOperationError("stat template", name, err)
	}
	if !info.Mode().IsRegular() {
		return Template{}, false, nil
	}

	found := Template{Tree: t.name, Path: name, root: t.fsys}
	if t.dir != "" {
		found.File = filepath.Join(t.dir, filepath.FromSlash(name))
	}
	return found, true, nil
}

// a path component that is a file, as in "page.tmpl/x.tmpl"
func isNotDir(err error) bool {
	return stderrors.Is(err, syscall.ENOTDIR)
}
