package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sigstage/internal/manifest"
)

func TestParseInvocation_DeterministicStruct(t *testing.T) {
	workDir := t.TempDir()
	args := []string{
		"--workdir", workDir,
		"--manifest", "release/../release.toml",
		"--artifact", "extra=dist/./extra.bin",
		"--artifact", "dist/other.bin",
		"--attestations", "./attest/..//bundles.jsonl",
		"--output-dir", "out/./",
		"--trace", "traces/../trace.json",
		"--log-level", "DEBUG",
	}

	inv1, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv2, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(inv1, inv2) {
		t.Fatalf("expected identical invocations, got\n%#v\n%#v", inv1, inv2)
	}

	if inv1.WorkDir != filepath.Clean(workDir) {
		t.Fatalf("workdir not canonicalized: %q", inv1.WorkDir)
	}
	if inv1.ManifestPath != filepath.Join(workDir, "release.toml") {
		t.Fatalf("manifest path not resolved/canonicalized: %q", inv1.ManifestPath)
	}
	if inv1.AttestationsPath != filepath.Join(workDir, "bundles.jsonl") {
		t.Fatalf("attestations path not resolved/canonicalized: %q", inv1.AttestationsPath)
	}
	if inv1.OutputDir != filepath.Join(workDir, "out") {
		t.Fatalf("output dir not resolved/canonicalized: %q", inv1.OutputDir)
	}
	if !inv1.Trace.Enabled || inv1.Trace.Path != filepath.Join(workDir, "trace.json") {
		t.Fatalf("trace not resolved/canonicalized: %#v", inv1.Trace)
	}
	if inv1.LogLevel != "debug" {
		t.Fatalf("log level not normalized: %q", inv1.LogLevel)
	}
	wantArtifacts := []manifest.Entry{
		{Name: "extra", Path: "dist/./extra.bin"},
		{Name: "other.bin", Path: "dist/other.bin"},
	}
	if !reflect.DeepEqual(inv1.Artifacts, wantArtifacts) {
		t.Fatalf("unexpected artifacts: %#v", inv1.Artifacts)
	}
}

func TestParseInvocation_ResolvesRelativePathsAgainstWorkDir_NotCwd(t *testing.T) {
	workDir := t.TempDir()
	otherCwd := t.TempDir()

	oldCwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldCwd) })

	if err := os.Chdir(otherCwd); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}

	inv, err := ParseInvocation([]string{
		"--workdir", workDir,
		"--manifest", "m.yaml",
		"--attestations", "a.jsonl",
		"--output-dir", "out",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inv.ManifestPath != filepath.Join(workDir, "m.yaml") {
		t.Fatalf("expected manifest under workdir, got %q", inv.ManifestPath)
	}
	if inv.AttestationsPath != filepath.Join(workDir, "a.jsonl") {
		t.Fatalf("expected attestations under workdir, got %q", inv.AttestationsPath)
	}
	if inv.OutputDir != filepath.Join(workDir, "out") {
		t.Fatalf("expected output under workdir, got %q", inv.OutputDir)
	}
	if inv.Trace.Enabled {
		t.Fatalf("expected trace disabled, got %#v", inv.Trace)
	}
	if inv.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", inv.LogLevel)
	}
}

func TestParseInvocation_IgnoresEnvironmentVariables(t *testing.T) {
	workDir := t.TempDir()
	args := []string{
		"--workdir", workDir,
		"--artifact", "a.bin",
		"--output-dir", "out",
	}

	inv1, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("DEBUG", "1")
	t.Setenv("SIGSTAGE_OUTPUT_DIR", "/tmp/elsewhere")
	t.Setenv("SOME_OTHER_VAR", "some value")

	inv2, err := ParseInvocation(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(inv1, inv2) {
		t.Fatalf("expected env vars to not affect parsing, got\n%#v\n%#v", inv1, inv2)
	}
}

func TestParseInvocation_InvalidInvocations(t *testing.T) {
	workDir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing workdir", args: []string{"--artifact", "a", "--output-dir", "o"}},
		{name: "relative workdir", args: []string{"--workdir", "relative", "--artifact", "a", "--output-dir", "o"}},
		{name: "missing output dir", args: []string{"--workdir", workDir, "--artifact", "a"}},
		{name: "output dir is workdir", args: []string{"--workdir", workDir, "--artifact", "a", "--output-dir", workDir}},
		{name: "output dir is dot", args: []string{"--workdir", workDir, "--artifact", "a", "--output-dir", "./"}},
		{name: "no artifacts", args: []string{"--workdir", workDir, "--output-dir", "o"}},
		{name: "bad artifact", args: []string{"--workdir", workDir, "--artifact", "a=", "--output-dir", "o"}},
		{name: "bad log level", args: []string{"--workdir", workDir, "--artifact", "a", "--output-dir", "o", "--log-level", "loud"}},
		{name: "unknown flag", args: []string{"--workdir", workDir, "--artifact", "a", "--output-dir", "o", "--mode", "clean"}},
		{name: "positional", args: []string{"--workdir", workDir, "--artifact", "a", "--output-dir", "o", "extra"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseInvocation(tc.args)
			if err == nil {
				t.Fatalf("expected error")
			}
			if ExitCode(err) != ExitInvalidInvocation {
				t.Fatalf("expected exit code %d, got %d (%v)", ExitInvalidInvocation, ExitCode(err), err)
			}
		})
	}
}
