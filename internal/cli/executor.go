package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/containerd/log"
	"github.com/moby/sys/atomicwriter"
	"github.com/pkg/errors"

	"sigstage/internal/manifest"
	"sigstage/internal/stage"
	"sigstage/internal/trace"
)

// StageRequest is everything one staging run needs.
type StageRequest struct {
	OutputDir    string
	Artifacts    []stage.Artifact
	Attestations io.Reader
	Trace        trace.Sink
}

// ArtifactStager is the minimal engine interface the CLI wires into.
//
// This allows the CLI to prove exit-code mapping (including panic) in tests
// without depending on staging internals.
type ArtifactStager interface {
	Stage(ctx context.Context, req StageRequest) (*stage.Result, error)
}

type defaultStager struct{}

func (defaultStager) Stage(ctx context.Context, req StageRequest) (*stage.Result, error) {
	s := stage.NewStager(req.OutputDir)
	s.Trace = req.Trace
	return s.Stage(ctx, req.Artifacts, req.Attestations)
}

type CLIResult struct {
	ExitCode int
	Result   *stage.Result
}

// Execute is the default entrypoint for running a canonical invocation.
func Execute(ctx context.Context, inv CLIInvocation) (CLIResult, error) {
	return ExecuteWithStager(ctx, inv, defaultStager{})
}

// ExecuteWithStager maps a canonical CLIInvocation to a staging run.
//
// Responsibilities:
//   - Assemble the artifact list from the manifest and --artifact flags.
//   - Initialize trace output before staging and finalize after staging,
//     even on panic/failure.
//   - Translate staging outcomes to semantic exit codes.
func ExecuteWithStager(ctx context.Context, inv CLIInvocation, stager ArtifactStager) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError
	if stager == nil {
		return res, errors.New("nil stager")
	}

	artifacts, err := loadArtifacts(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	rec := trace.NewRecorder()
	traceWriter, err := newTraceWriter(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	defer func() {
		// Always finalize trace output deterministically.
		if err := traceWriter.Finalize(rec.Trace()); err != nil {
			log.G(ctx).WithError(err).Warn("failed to write trace")
		}
	}()

	attestations, closeAttestations, err := openAttestations(inv.AttestationsPath)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}
	defer closeAttestations()

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			res.Result = nil
			execErr = fmt.Errorf("panic: %v", r)
		}
	}()

	log.G(ctx).WithFields(log.Fields{
		"artifacts":    len(artifacts),
		"attestations": inv.AttestationsPath,
		"output":       inv.OutputDir,
	}).Debug("starting staging run")

	result, err := stager.Stage(ctx, StageRequest{
		OutputDir:    inv.OutputDir,
		Artifacts:    artifacts,
		Attestations: attestations,
		Trace:        rec,
	})
	if err != nil {
		res.ExitCode = ExitCode(err)
		return res, err
	}
	res.Result = result
	res.ExitCode = ExitSuccess
	return res, nil
}

func loadArtifacts(inv CLIInvocation) ([]stage.Artifact, error) {
	m := &manifest.Manifest{}
	if inv.ManifestPath != "" {
		loaded, err := manifest.Load(inv.ManifestPath)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	m.Add(inv.Artifacts...)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m.Resolve(inv.WorkDir), nil
}

// openAttestations returns a nil reader when no attestation file was given,
// which the stager treats as "copy only".
func openAttestations(path string) (io.Reader, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open attestations")
	}
	return f, func() { _ = f.Close() }, nil
}

type traceFileWriter struct {
	enabled bool
	path    string
}

func newTraceWriter(inv CLIInvocation) (*traceFileWriter, error) {
	if !inv.Trace.Enabled {
		return &traceFileWriter{enabled: false}, nil
	}
	if inv.Trace.Path == "" {
		return nil, errors.New("trace enabled but path is empty")
	}
	if within(inv.OutputDir, inv.Trace.Path) {
		return nil, errors.Errorf("trace path %s is inside the output directory", inv.Trace.Path)
	}
	if err := os.MkdirAll(filepath.Dir(inv.Trace.Path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create trace dir")
	}
	// Create an empty trace file eagerly so the destination is reserved and
	// so that even a panic results in a deterministic artifact.
	w := &traceFileWriter{enabled: true, path: inv.Trace.Path}
	return w, w.write(trace.ReconcileTrace{ArtifactSet: trace.ArtifactSetHash(nil)})
}

func (w *traceFileWriter) Finalize(t trace.ReconcileTrace) error {
	if w == nil || !w.enabled {
		return nil
	}
	return w.write(t)
}

func (w *traceFileWriter) write(t trace.ReconcileTrace) error {
	b, err := t.CanonicalJSON()
	if err != nil {
		return err
	}
	return atomicwriter.WriteFile(w.path, b, 0o644)
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
