// Package stage prepares a directory of build artifacts for upload, pairing
// each artifact with the Sigstore bundle that attests to it.
//
// Attestation tooling usually emits every bundle of a build into one file,
// one JSON document per line. Stage hashes each artifact, decodes every line
// with package bundle and writes the line that names an artifact's digest to
// "<artifact file name>.sigstore.json" next to the copied artifact. When
// attestations are supplied, every artifact must be matched.
package stage
