package stage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"

	"sigstage/internal/bundle/bundletest"
)

func TestPendingSet(t *testing.T) {
	staged := []StagedArtifact{
		{Name: "a", Digest: digest.FromString("a")},
		{Name: "b", Digest: digest.FromString("b")},
		{Name: "c", Digest: digest.FromString("c")},
	}
	p, err := newPendingSet(staged)
	assert.NilError(t, err)
	assert.Check(t, is.DeepEqual(p.remaining(), []string{"a", "b", "c"}))

	i, ok := p.claim(digest.FromString("b"))
	assert.Check(t, ok)
	assert.Check(t, is.Equal(i, 1))

	_, ok = p.claim(digest.FromString("b"))
	assert.Check(t, !ok, "second claim of the same digest must fail")
	_, ok = p.claim(digest.FromString("unknown"))
	assert.Check(t, !ok)

	assert.Check(t, is.DeepEqual(p.remaining(), []string{"a", "c"}))

	p.claim(digest.FromString("c"))
	p.claim(digest.FromString("a"))
	assert.Check(t, is.Len(p.remaining(), 0))
}

func TestPendingSet_Duplicate(t *testing.T) {
	_, err := newPendingSet([]StagedArtifact{
		{Name: "a", Digest: digest.FromString("x")},
		{Name: "b", Digest: digest.FromString("y")},
		{Name: "c", Digest: digest.FromString("x")},
	})
	assert.Check(t, is.Error(err, fmt.Sprintf(`artifacts "a" and "c" have the same digest %s`, digest.FromString("x"))))
}

// TestStage_Coverage checks that a run succeeds exactly when every artifact
// is named by some record, however the digests are spread over records.
func TestStage_Coverage(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		contents := rapid.SliceOfNDistinct(rapid.StringN(0, 16, -1), 1, 6, rapid.ID[string]).Draw(t, "contents")
		attested := rapid.SliceOfN(rapid.Bool(), len(contents), len(contents)).Draw(t, "attested")
		decoys := rapid.IntRange(0, 3).Draw(t, "decoys")

		root, err := os.MkdirTemp("", "coverage")
		if err != nil {
			t.Fatal(err)
		}
		defer os.RemoveAll(root)

		artifacts := make([]Artifact, len(contents))
		var subjects []digest.Digest
		for i, c := range contents {
			path := filepath.Join(root, fmt.Sprintf("artifact-%d.bin", i))
			if err := os.WriteFile(path, []byte(c), 0o644); err != nil {
				t.Fatal(err)
			}
			artifacts[i] = Artifact{Name: fmt.Sprintf("artifact-%d", i), Path: path}
			if attested[i] {
				subjects = append(subjects, digest.FromString(c))
			}
		}
		for i := 0; i < decoys; i++ {
			subjects = append(subjects, digest.FromString(fmt.Sprintf("decoy subject longer than any drawn content %d", i)))
		}
		subjects = rapid.Permutation(subjects).Draw(t, "order")

		// Each subject goes either in a shared envelope or its own message
		// signature record.
		var lines [][]byte
		var shared []digest.Digest
		for i, d := range subjects {
			if rapid.Bool().Draw(t, fmt.Sprintf("envelope-%d", i)) {
				shared = append(shared, d)
				continue
			}
			lines = append(lines, bundletest.MessageSignature(d))
		}
		if len(shared) > 0 {
			lines = append(lines, bundletest.Envelope(shared))
		}

		out := filepath.Join(root, "out")
		res, err := NewStager(out).Stage(context.Background(), artifacts, bytes.NewReader(bundletest.Blob(lines...)))

		var want []string
		for i, ok := range attested {
			if !ok {
				want = append(want, artifacts[i].Name)
			}
		}
		if len(want) > 0 {
			var unmatched *UnmatchedError
			if !errors.As(err, &unmatched) {
				t.Fatalf("expected UnmatchedError, got %v", err)
			}
			if fmt.Sprint(unmatched.Names) != fmt.Sprint(want) {
				t.Fatalf("unmatched %v, want %v", unmatched.Names, want)
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Fatalf("output dir exists after failure: %v", err)
			}
			return
		}

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, a := range res.Artifacts {
			companion, err := os.ReadFile(filepath.Join(out, a.Attestation))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(companion, lines[a.Line-1]) {
				t.Fatalf("%s: companion does not match line %d", a.Name, a.Line)
			}
		}
	})
}
