// Package bundletest builds Sigstore bundle records for tests.
package bundletest

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/in-toto/in-toto-golang/in_toto"
	"github.com/opencontainers/go-digest"

	"sigstage/internal/bundle"
)

type options struct {
	mediaType     string
	algorithm     string
	payloadType   string
	statementType string
	encoding      *base64.Encoding
}

// Option overrides one field of a generated record.
type Option func(*options)

func WithMediaType(mediaType string) Option {
	return func(o *options) { o.mediaType = mediaType }
}

func WithAlgorithm(algorithm string) Option {
	return func(o *options) { o.algorithm = algorithm }
}

func WithPayloadType(payloadType string) Option {
	return func(o *options) { o.payloadType = payloadType }
}

func WithStatementType(statementType string) Option {
	return func(o *options) { o.statementType = statementType }
}

// WithPayloadEncoding sets the base64 alphabet of a DSSE payload.
func WithPayloadEncoding(enc *base64.Encoding) Option {
	return func(o *options) { o.encoding = enc }
}

func apply(opts []Option) options {
	o := options{
		mediaType:     bundle.MediaTypeV03,
		algorithm:     "SHA2_256",
		payloadType:   in_toto.PayloadType,
		statementType: bundle.StatementTypeV1,
		encoding:      base64.StdEncoding,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MessageSignature returns a single-line messageSignature bundle for d.
func MessageSignature(d digest.Digest, opts ...Option) []byte {
	o := apply(opts)
	return marshal(map[string]any{
		"mediaType":            o.mediaType,
		"verificationMaterial": verificationMaterial(),
		"messageSignature": map[string]any{
			"messageDigest": map[string]any{
				"algorithm": o.algorithm,
				"digest":    base64.StdEncoding.EncodeToString(raw(d)),
			},
			"signature": base64.StdEncoding.EncodeToString([]byte("signature")),
		},
	})
}

// Envelope returns a single-line dsseEnvelope bundle whose in-toto statement
// lists one subject per digest.
func Envelope(subjects []digest.Digest, opts ...Option) []byte {
	return EnvelopeWithPayload(Statement(subjects, opts...), opts...)
}

// EnvelopeWithPayload wraps an arbitrary payload in a dsseEnvelope bundle.
func EnvelopeWithPayload(payload []byte, opts ...Option) []byte {
	o := apply(opts)
	return marshal(map[string]any{
		"mediaType":            o.mediaType,
		"verificationMaterial": verificationMaterial(),
		"dsseEnvelope": map[string]any{
			"payload":     o.encoding.EncodeToString(payload),
			"payloadType": o.payloadType,
			"signatures": []map[string]any{{
				"sig":   base64.StdEncoding.EncodeToString([]byte("signature")),
				"keyid": "",
			}},
		},
	})
}

// Statement returns an in-toto statement with one subject per digest.
func Statement(subjects []digest.Digest, opts ...Option) []byte {
	o := apply(opts)
	list := make([]map[string]any, 0, len(subjects))
	for i, d := range subjects {
		list = append(list, map[string]any{
			"name":   fmt.Sprintf("subject-%d", i),
			"digest": map[string]string{d.Algorithm().String(): d.Encoded()},
		})
	}
	return marshal(map[string]any{
		"_type":         o.statementType,
		"subject":       list,
		"predicateType": "https://slsa.dev/provenance/v1",
		"predicate":     map[string]any{},
	})
}

// Blob joins records into a merged attestation file, one record per line.
func Blob(records ...[]byte) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		buf.Write(r)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func verificationMaterial() map[string]any {
	return map[string]any{"publicKey": map[string]any{"hint": "test"}}
}

func raw(d digest.Digest) []byte {
	b, err := hex.DecodeString(d.Encoded())
	if err != nil {
		panic(err)
	}
	return b
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
