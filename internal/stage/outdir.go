package stage

import (
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
)

// stagingDir builds the output directory in a sibling temporary directory
// and moves it into place on commit, so a failed run never leaves a
// half-populated output directory behind.
type stagingDir struct {
	final string
	tmp   string
}

// newStagingDir removes any previous output directory at dir and creates an
// empty staging directory next to it.
func newStagingDir(dir string) (*stagingDir, error) {
	if dir == "" {
		return nil, errors.Wrap(errdefs.ErrInvalidArgument, "output dir is empty")
	}
	clean := filepath.Clean(dir)
	if clean == "/" || clean == "." {
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "refusing to operate on output dir %q", clean)
	}
	info, err := os.Lstat(clean)
	switch {
	case err == nil && !info.IsDir():
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "output dir is not a directory: %s", clean)
	case err == nil:
		if err := os.RemoveAll(clean); err != nil {
			return nil, errors.Wrapf(err, "failed to remove %s", clean)
		}
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "failed to stat %s", clean)
	}

	parent := filepath.Dir(clean)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory %s", parent)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(clean)+".staging-")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create staging directory in %s", parent)
	}
	return &stagingDir{final: clean, tmp: tmp}, nil
}

func (s *stagingDir) path(name string) string {
	return filepath.Join(s.tmp, name)
}

func (s *stagingDir) commit() error {
	if err := os.Chmod(s.tmp, 0o755); err != nil {
		return errors.Wrapf(err, "failed to chmod %s", s.tmp)
	}
	if err := os.Rename(s.tmp, s.final); err != nil {
		return errors.Wrapf(err, "failed to move %s to %s", s.tmp, s.final)
	}
	return nil
}

func (s *stagingDir) discard() {
	_ = os.RemoveAll(s.tmp)
}
