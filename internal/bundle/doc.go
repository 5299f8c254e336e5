// Package bundle decodes Sigstore bundle v0.3 records and extracts the content
// digests they attest to.
//
// A bundle carries exactly one of two content variants:
//
//   - messageSignature: a single digest of the signed blob, tagged with a
//     hash algorithm name.
//   - dsseEnvelope: a DSSE envelope whose payload is an in-toto statement
//     listing one or more subjects, each with its own digest.
//
// The JSON encoding has no discriminator field; the variant is chosen by which
// of the two objects is present. Parse turns that into the Content sum type.
//
// Signatures, verification material and transparency log entries are not
// inspected. Only digests are extracted.
package bundle
