package stage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// CompanionSuffix is appended to an artifact's file name to name the file
// holding its attestation.
const CompanionSuffix = ".sigstore.json"

// Artifact is a build output to stage, identified by a logical name.
type Artifact struct {
	Name string
	Path string
}

// FileName is the name the artifact is staged under.
func (a Artifact) FileName() string {
	return filepath.Base(a.Path)
}

// StagedArtifact describes one artifact in the output directory.
type StagedArtifact struct {
	Name     string
	Source   string
	FileName string
	Digest   digest.Digest

	// Attestation is the companion file name, empty when unmatched.
	Attestation string
	// Line is the 1-based attestation line that matched, 0 when unmatched.
	Line int
}

// HashFile streams the file at path through SHA-256.
func HashFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", errors.Wrapf(err, "failed to hash %s", path)
	}
	return d, nil
}

// validateArtifacts checks the preconditions of a staging run.
func validateArtifacts(artifacts []Artifact, outputDir string) error {
	if len(artifacts) == 0 {
		return errors.Wrap(errdefs.ErrInvalidArgument, "no artifacts to stage")
	}
	names := make(map[string]struct{}, len(artifacts))
	// files maps every name the output directory will hold, artifact copies
	// and companions alike, to the artifact that owns it.
	files := make(map[string]outputFile, 2*len(artifacts))
	for i, a := range artifacts {
		if strings.TrimSpace(a.Name) == "" {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %d has no name", i)
		}
		if strings.TrimSpace(a.Path) == "" {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %q has no path", a.Name)
		}
		if _, ok := names[a.Name]; ok {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "duplicate artifact name %q", a.Name)
		}
		names[a.Name] = struct{}{}

		file := a.FileName()
		companion := file + CompanionSuffix
		if prev, ok := files[file]; ok {
			if prev.companion {
				return errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %q would be overwritten by the attestation of %q (%s)", a.Name, prev.owner, file)
			}
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifacts %q and %q would both be staged as %s", prev.owner, a.Name, file)
		}
		if prev, ok := files[companion]; ok {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %q would be overwritten by the attestation of %q (%s)", prev.owner, a.Name, companion)
		}
		files[file] = outputFile{owner: a.Name}
		files[companion] = outputFile{owner: a.Name, companion: true}

		if within(outputDir, a.Path) {
			return errors.Wrapf(errdefs.ErrInvalidArgument, "artifact %q is inside the output directory %s", a.Name, outputDir)
		}
	}
	return nil
}

type outputFile struct {
	owner     string
	companion bool
}

func within(dir, path string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
