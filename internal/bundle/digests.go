package bundle

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/in-toto/in-toto-golang/in_toto"
	"github.com/opencontainers/go-digest"
	protocommon "github.com/sigstore/protobuf-specs/gen/pb-go/common/v1"
)

// StatementTypeV1 is the _type of an in-toto v1 statement.
const StatementTypeV1 = "https://in-toto.io/Statement/v1"

// DigestSet is the set of content digests a record attests to. Digests are
// always SHA-256, so equality of two members is equality of their raw bytes.
type DigestSet = mapset.Set[digest.Digest]

// NewDigestSet returns a DigestSet holding ds.
func NewDigestSet(ds ...digest.Digest) DigestSet {
	return mapset.NewThreadUnsafeSet(ds...)
}

// Sorted returns the members of set in lexical order.
func Sorted(set DigestSet) []digest.Digest {
	out := set.ToSlice()
	slices.Sort(out)
	return out
}

// ExtractDigests parses a single bundle record and returns every digest it
// attests to.
func ExtractDigests(record []byte) (DigestSet, error) {
	b, err := Parse(record)
	if err != nil {
		return nil, err
	}
	return b.Digests()
}

// Digests returns the single digest of the signed blob.
func (m *MessageSignature) Digests() (DigestSet, error) {
	algorithm := m.MessageDigest.Algorithm
	if algorithm != protocommon.HashAlgorithm_SHA2_256.String() {
		return nil, newError(ErrUnsupportedDigestAlgorithm, "messageSignature.messageDigest.algorithm", algorithm, nil)
	}
	const field = "messageSignature.messageDigest.digest"
	raw, err := base64.StdEncoding.DecodeString(m.MessageDigest.Digest)
	if err != nil {
		return nil, newError(ErrMalformedEncoding, field, "", err)
	}
	d, err := fromRaw(field, raw)
	if err != nil {
		return nil, err
	}
	return NewDigestSet(d), nil
}

// Statement decodes the in-toto statement carried in the envelope payload.
func (e *Envelope) Statement() (*in_toto.StatementHeader, error) {
	if e.PayloadType != in_toto.PayloadType {
		return nil, newError(ErrUnsupportedPayloadType, "dsseEnvelope.payloadType", e.PayloadType, nil)
	}
	payload, err := e.DecodeB64Payload()
	if err != nil {
		return nil, newError(ErrMalformedEncoding, "dsseEnvelope.payload", "", err)
	}
	var statement in_toto.StatementHeader
	if err := json.Unmarshal(payload, &statement); err != nil {
		return nil, newError(ErrMalformedBundle, "dsseEnvelope.payload", "", err)
	}
	if statement.Type != StatementTypeV1 {
		return nil, newError(ErrUnexpectedStatementType, "dsseEnvelope.payload._type", statement.Type, nil)
	}
	return &statement, nil
}

// Digests returns the sha256 digest of every subject of the statement.
func (e *Envelope) Digests() (DigestSet, error) {
	statement, err := e.Statement()
	if err != nil {
		return nil, err
	}
	set := NewDigestSet()
	for i, subject := range statement.Subject {
		field := fmt.Sprintf("dsseEnvelope.payload.subject[%d].digest.sha256", i)
		encoded, ok := subject.Digest[digest.SHA256.String()]
		if !ok {
			return nil, newError(ErrMalformedBundle, field, "", errMissing)
		}
		raw, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, newError(ErrMalformedEncoding, field, "", err)
		}
		d, err := fromRaw(field, raw)
		if err != nil {
			return nil, err
		}
		set.Add(d)
	}
	return set, nil
}

// fromRaw lifts raw SHA-256 bytes into a digest.Digest.
func fromRaw(field string, raw []byte) (digest.Digest, error) {
	if want := digest.SHA256.Size(); len(raw) != want {
		return "", newError(ErrMalformedEncoding, field, "", fmt.Errorf("digest is %d bytes, want %d", len(raw), want))
	}
	return digest.NewDigestFromBytes(digest.SHA256, raw), nil
}
