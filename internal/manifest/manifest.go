package manifest

import (
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"

	"sigstage/internal/stage"
)

// Entry names one artifact of a release.
type Entry struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Path string `json:"path" yaml:"path" toml:"path"`
}

// Manifest is the list of artifacts a staging run operates on.
type Manifest struct {
	Artifacts []Entry `json:"artifacts" yaml:"artifacts" toml:"artifacts"`
}

// ParseArtifactFlag parses a --artifact value. "name=path" names the
// artifact explicitly; a bare path is named after its base name.
func ParseArtifactFlag(value string) (Entry, error) {
	if strings.TrimSpace(value) == "" {
		return Entry{}, errors.Wrap(errdefs.ErrInvalidArgument, "empty artifact")
	}
	name, path, ok := strings.Cut(value, "=")
	if !ok {
		return Entry{Name: filepath.Base(filepath.Clean(value)), Path: value}, nil
	}
	if name == "" {
		return Entry{}, errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %q has no name", value)
	}
	if path == "" {
		return Entry{}, errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %q has no path", value)
	}
	return Entry{Name: name, Path: path}, nil
}

// Add appends entries to the manifest.
func (m *Manifest) Add(entries ...Entry) {
	m.Artifacts = append(m.Artifacts, entries...)
}

// Validate checks that the manifest names at least one artifact and that
// names are present and unique.
func (m *Manifest) Validate() error {
	if m == nil || len(m.Artifacts) == 0 {
		return errors.Wrap(errdefs.ErrInvalidArgument, "manifest lists no artifacts")
	}
	seen := make(map[string]struct{}, len(m.Artifacts))
	for i, e := range m.Artifacts {
		if strings.TrimSpace(e.Name) == "" {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifacts[%d]: name is required", i)
		}
		if strings.TrimSpace(e.Path) == "" {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifacts[%d] (%s): path is required", i, e.Name)
		}
		if _, ok := seen[e.Name]; ok {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifacts[%d]: duplicate name %q", i, e.Name)
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

// Resolve returns the stage artifacts of the manifest. Relative paths are
// joined to workDir, which must be absolute.
func (m *Manifest) Resolve(workDir string) []stage.Artifact {
	out := make([]stage.Artifact, 0, len(m.Artifacts))
	for _, e := range m.Artifacts {
		p := filepath.Clean(e.Path)
		if !filepath.IsAbs(p) {
			p = filepath.Join(workDir, p)
		}
		out = append(out, stage.Artifact{Name: e.Name, Path: p})
	}
	return out
}
