package options

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/manuscript/internal/errors"
)

//go:embed all:resources
var resources embed.FS

// Resources returns the starter files copied into new workspaces.
func Resources() fs.FS {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		panic(err)
	}
	return sub
}

// copyResources copies every starter file whose target does not exist yet.
// Existing files are never overwritten.
func (s *Store) copyResources(ctx context.Context) error {
	return fs.WalkDir(s.resources, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		target := filepath.Join(s.root, filepath.FromSlash(name))
		if _, err := os.Stat(target); err == nil {
			return nil
		} else if !errors.IsNotExist(err) {
			return errors.FileOperationError("stat", target, err)
		}

		data, err := fs.ReadFile(s.resources, name)
		if err != nil {
			return errors.FileOperationError("read resource", name, err)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.FileOperationError("mkdir", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return errors.FileOperationError("write", target, err)
		}
		s.logger.Info(ctx, "Created", "file", name)
		return nil
	})
}
