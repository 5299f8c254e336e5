package trace

import (
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
)

// ComputeTraceHash computes the digest of a canonical trace encoding, as
// produced by ReconcileTrace.CanonicalJSON. Empty input has no hash.
func ComputeTraceHash(canonicalEncoding []byte) string {
	if len(canonicalEncoding) == 0 {
		return ""
	}
	return digest.FromBytes(canonicalEncoding).String()
}

// ArtifactSetHash identifies a set of artifact digests independent of the
// order they were staged in. Duplicates count once.
func ArtifactSetHash(digests []string) string {
	sorted := slices.Clone(digests)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return digest.FromString(strings.Join(sorted, "\n")).String()
}
