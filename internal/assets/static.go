package assets

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/conneroisu/manuscript/internal/options"
)

// Static copies the static directory into the dist directory on build. The
// dev server serves static files directly, so there is nothing to watch.
type Static struct {
	store  *options.Store
	logger logging.Logger
}

// NewStatic creates the static files manager.
func NewStatic(store *options.Store) *Static {
	return &Static{store: store, logger: store.Logger().WithComponent("static")}
}

func (s *Static) Name() string { return "static" }

func (s *Static) Init(context.Context) error { return nil }

func (s *Static) Watch(context.Context) error { return nil }

// Build copies every file below static/ to the same relative path in dist/.
func (s *Static) Build(ctx context.Context) error {
	root := s.store.StaticDir()
	p := pool.New().WithErrors().WithContext(ctx)

	err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			if file == root && errors.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}
		p.Go(func(ctx context.Context) error {
			if err := copyFile(file, filepath.Join(s.store.DistDir(), rel)); err != nil {
				return err
			}
			s.logger.Info(ctx, "Copied static file", "file", filepath.ToSlash(rel))
			return nil
		})
		return nil
	})
	if waitErr := p.Wait(); waitErr != nil {
		return waitErr
	}
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileOperation, "listing static files")
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.FileOperationError("open", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.FileOperationError("mkdir", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return errors.FileOperationError("create", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.FileOperationError("copy", dst, err)
	}
	if err := out.Close(); err != nil {
		return errors.FileOperationError("close", dst, err)
	}
	return nil
}
