package stage

import (
	"bytes"
	"context"
	"io"

	"github.com/containerd/continuity/fs"
	"github.com/containerd/log"
	"github.com/moby/sys/atomicwriter"
	"github.com/pkg/errors"

	"sigstage/internal/bundle"
	"sigstage/internal/trace"
)

// Stager copies artifacts into OutputDir and pairs each with the attestation
// record that names its digest.
type Stager struct {
	OutputDir string

	// Trace receives every staging decision. Nil discards them.
	Trace trace.Sink
}

// NewStager returns a Stager writing to outputDir.
func NewStager(outputDir string) *Stager {
	return &Stager{OutputDir: outputDir, Trace: trace.NopSink{}}
}

// Result describes a successful run.
type Result struct {
	OutputDir string
	Artifacts []StagedArtifact
}

// Matched returns the number of artifacts that have an attestation.
func (r *Result) Matched() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Attestation != "" {
			n++
		}
	}
	return n
}

// Stage runs one staging pass.
//
// The previous output directory is removed first. Every artifact is copied
// and hashed in input order. When attestations is nil the run ends there;
// otherwise every non-blank line of it must decode as a Sigstore bundle, and
// each artifact whose digest a bundle names gets the line written verbatim to
// "<file name>.sigstore.json". Artifacts no bundle names fail the run with
// an *UnmatchedError.
//
// The output directory only appears once the whole run has succeeded.
func (s *Stager) Stage(ctx context.Context, artifacts []Artifact, attestations io.Reader) (_ *Result, retErr error) {
	if err := validateArtifacts(artifacts, s.OutputDir); err != nil {
		return nil, err
	}

	dir, err := newStagingDir(s.OutputDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if retErr != nil {
			dir.discard()
		}
	}()

	res := &Result{OutputDir: dir.final, Artifacts: make([]StagedArtifact, 0, len(artifacts))}
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		staged, err := s.stageArtifact(ctx, dir, a)
		if err != nil {
			return nil, err
		}
		res.Artifacts = append(res.Artifacts, staged)
	}

	pending, err := newPendingSet(res.Artifacts)
	if err != nil {
		return nil, err
	}

	if attestations == nil {
		log.G(ctx).Debug("no attestations supplied, skipping matching")
	} else {
		blob, err := io.ReadAll(attestations)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read attestations")
		}
		if err := s.match(ctx, dir, blob, pending); err != nil {
			return nil, err
		}
		if names := pending.remaining(); len(names) > 0 {
			for _, a := range res.Artifacts {
				if a.Attestation == "" {
					trace.SafeRecord(s.Trace, trace.Event{Kind: trace.EventArtifactUnmatched, Artifact: a.Name, Digest: a.Digest.String()})
				}
			}
			return nil, &UnmatchedError{Names: names}
		}
	}

	if err := dir.commit(); err != nil {
		return nil, err
	}
	log.G(ctx).WithFields(log.Fields{
		"dir":       res.OutputDir,
		"artifacts": len(res.Artifacts),
		"attested":  res.Matched(),
	}).Info("staged artifacts")
	return res, nil
}

func (s *Stager) stageArtifact(ctx context.Context, dir *stagingDir, a Artifact) (StagedArtifact, error) {
	target := dir.path(a.FileName())
	if err := fs.CopyFile(target, a.Path); err != nil {
		return StagedArtifact{}, errors.Wrapf(err, "failed to copy %s to %s", a.Path, target)
	}
	// The digest describes the staged bytes, not the source.
	d, err := HashFile(target)
	if err != nil {
		return StagedArtifact{}, err
	}

	log.G(ctx).WithFields(log.Fields{
		"artifact": a.Name,
		"file":     a.FileName(),
		"digest":   d,
	}).Debug("staged artifact")
	trace.SafeRecord(s.Trace, trace.Event{Kind: trace.EventArtifactStaged, Artifact: a.Name, Digest: d.String()})

	return StagedArtifact{
		Name:     a.Name,
		Source:   a.Path,
		FileName: a.FileName(),
		Digest:   d,
	}, nil
}

// ForEachRecord calls fn with every non-blank line of blob and its 1-based
// line number. Lines are split on "\n" only and passed on unmodified.
// Iteration stops at the first error fn returns.
func ForEachRecord(blob []byte, fn func(line int, record []byte) error) error {
	for i, record := range bytes.Split(blob, []byte("\n")) {
		if len(bytes.TrimSpace(record)) == 0 {
			continue
		}
		if err := fn(i+1, record); err != nil {
			return err
		}
	}
	return nil
}

// match consumes the attestation blob line by line and claims pending
// artifacts. The first record naming a digest wins; later ones are ignored
// like any other digest that is not pending.
func (s *Stager) match(ctx context.Context, dir *stagingDir, blob []byte, pending *pendingSet) error {
	return ForEachRecord(blob, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		digests, err := bundle.ExtractDigests(line)
		if err != nil {
			return &RecordError{Line: lineNo, Err: err}
		}

		for _, d := range bundle.Sorted(digests) {
			index, ok := pending.claim(d)
			if !ok {
				log.G(ctx).WithFields(log.Fields{"line": lineNo, "digest": d}).Debug("ignoring attestation for unknown digest")
				trace.SafeRecord(s.Trace, trace.Event{Kind: trace.EventAttestationIgnored, Digest: d.String(), Line: lineNo})
				continue
			}

			a := &pending.staged[index]
			name := a.FileName + CompanionSuffix
			if err := atomicwriter.WriteFile(dir.path(name), line, 0o644); err != nil {
				return errors.Wrapf(err, "failed to write to %s", dir.path(name))
			}
			a.Attestation = name
			a.Line = lineNo

			log.G(ctx).WithFields(log.Fields{
				"artifact": a.Name,
				"line":     lineNo,
				"digest":   d,
			}).Debug("matched attestation")
			trace.SafeRecord(s.Trace, trace.Event{Kind: trace.EventAttestationMatched, Artifact: a.Name, Digest: d.String(), Line: lineNo})
		}
		return nil
	})
}
