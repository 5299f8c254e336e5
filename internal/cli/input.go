package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/spf13/pflag"

	"sigstage/internal/bundle"
	"sigstage/internal/manifest"
	"sigstage/internal/stage"
)

const (
	ExitSuccess           = 0
	ExitUnattested        = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
	ExitAttestationError  = 5
)

// LogLevels are the accepted --log-level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

type TraceConfig struct {
	Enabled bool
	Path    string
}

// CLIInvocation is the fully canonicalized, deterministic description of a run.
//
// All paths are normalized (Clean) and all relative paths are resolved relative
// to WorkDir.
//
// NOTE: WorkDir is required and must be absolute; this prevents any dependency
// on the process current working directory.
type CLIInvocation struct {
	WorkDir          string
	ManifestPath     string
	Artifacts        []manifest.Entry
	AttestationsPath string
	OutputDir        string
	Trace            TraceConfig
	LogLevel         string

	OriginalManifest     string
	OriginalAttestations string
	OriginalOutput       string
	OriginalTrace        string
}

type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// stageOptions holds raw flag values before canonicalization.
type stageOptions struct {
	workDir      string
	manifest     string
	artifacts    []string
	attestations string
	outputDir    string
	tracePath    string
	logLevel     string
}

func addStageFlags(flags *pflag.FlagSet, o *stageOptions) {
	flags.StringVar(&o.workDir, "workdir", "", "Absolute working directory. Required.")
	flags.StringVar(&o.manifest, "manifest", "", "Artifact manifest (.toml, .yaml, .yml or .json)")
	flags.StringArrayVar(&o.artifacts, "artifact", nil, "Artifact to stage as name=path or path (repeatable)")
	flags.StringVar(&o.attestations, "attestations", "", "File with one Sigstore bundle per line (optional)")
	flags.StringVar(&o.outputDir, "output-dir", "", "Directory to stage artifacts into. Required.")
	flags.StringVar(&o.tracePath, "trace", "", "Trace output path (optional)")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level: "+strings.Join(LogLevels, "|"))
}

// ParseInvocation parses stage flags into a canonical CLIInvocation.
//
// Determinism goals:
//   - Does not read env vars.
//   - Does not read/assume the process CWD.
//   - Requires WorkDir to be explicit and absolute.
func ParseInvocation(args []string) (CLIInvocation, error) {
	flags := pflag.NewFlagSet("sigstage", pflag.ContinueOnError)
	flags.SetOutput(io.Discard) // parsing errors are returned, not printed

	var o stageOptions
	addStageFlags(flags, &o)
	if err := flags.Parse(args); err != nil {
		return CLIInvocation{}, invalidInvocationf("%v", err)
	}
	return o.canonicalize(flags.Args())
}

func (o stageOptions) canonicalize(positional []string) (CLIInvocation, error) {
	if len(positional) != 0 {
		return CLIInvocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(positional, " "))
	}

	if strings.TrimSpace(o.workDir) == "" {
		return CLIInvocation{}, invalidInvocationf("--workdir is required")
	}
	workDir := filepath.Clean(o.workDir)
	if !filepath.IsAbs(workDir) {
		return CLIInvocation{}, invalidInvocationf("--workdir must be an absolute path (got %q)", workDir)
	}

	if o.outputDir == "" {
		return CLIInvocation{}, invalidInvocationf("--output-dir is required")
	}
	if o.manifest == "" && len(o.artifacts) == 0 {
		return CLIInvocation{}, invalidInvocationf("at least one of --manifest or --artifact is required")
	}

	level, err := parseLogLevel(o.logLevel)
	if err != nil {
		return CLIInvocation{}, err
	}

	resolvedOutput, err := resolveUnderWorkDir(workDir, o.outputDir)
	if err != nil {
		return CLIInvocation{}, err
	}
	if resolvedOutput == workDir {
		return CLIInvocation{}, invalidInvocationf("--output-dir must not be the working directory")
	}

	inv := CLIInvocation{
		WorkDir:              workDir,
		OutputDir:            resolvedOutput,
		LogLevel:             level,
		OriginalManifest:     o.manifest,
		OriginalAttestations: o.attestations,
		OriginalOutput:       o.outputDir,
		OriginalTrace:        o.tracePath,
	}

	if o.manifest != "" {
		if inv.ManifestPath, err = resolveUnderWorkDir(workDir, o.manifest); err != nil {
			return CLIInvocation{}, err
		}
	}
	for _, raw := range o.artifacts {
		e, err := manifest.ParseArtifactFlag(raw)
		if err != nil {
			return CLIInvocation{}, invalidInvocationf("invalid --artifact: %v", err)
		}
		inv.Artifacts = append(inv.Artifacts, e)
	}
	if o.attestations != "" {
		if inv.AttestationsPath, err = resolveUnderWorkDir(workDir, o.attestations); err != nil {
			return CLIInvocation{}, err
		}
	}
	if strings.TrimSpace(o.tracePath) != "" {
		resolvedTrace, err := resolveUnderWorkDir(workDir, o.tracePath)
		if err != nil {
			return CLIInvocation{}, err
		}
		inv.Trace = TraceConfig{Enabled: true, Path: resolvedTrace}
	}

	return inv, nil
}

func parseLogLevel(raw string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(raw))
	for _, l := range LogLevels {
		if n == l {
			return n, nil
		}
	}
	return "", invalidInvocationf("invalid --log-level %q (expected %s)", raw, strings.Join(LogLevels, "|"))
}

func resolveUnderWorkDir(workDir, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", invalidInvocationf("path must not be empty")
	}
	clean := filepath.Clean(p)
	if clean == "." {
		return "", invalidInvocationf("path must not be '.'")
	}

	// If absolute, accept as-is; it is still deterministic.
	// If relative, resolve under WorkDir.
	if filepath.IsAbs(clean) {
		return clean, nil
	}

	// WorkDir is required to be absolute, so Join does not consult process CWD.
	return filepath.Clean(filepath.Join(workDir, clean)), nil
}

// ExitCode maps an error from any stage of a run to its semantic exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		invErr    *InvocationError
		unmatched *stage.UnmatchedError
		recErr    *stage.RecordError
		bundleErr *bundle.Error
	)
	switch {
	case errors.As(err, &invErr) && invErr != nil:
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	case errors.As(err, &unmatched):
		return ExitUnattested
	case errors.As(err, &recErr), errors.As(err, &bundleErr):
		return ExitAttestationError
	case errdefs.IsInvalidArgument(err):
		return ExitConfigError
	default:
		return ExitInternalError
	}
}
