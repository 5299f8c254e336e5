package bundle

import (
	"bytes"
	"encoding/json"

	"github.com/secure-systems-lab/go-securesystemslib/dsse"
)

// Media types of a Sigstore bundle v0.3. Both spellings name the same format.
const (
	MediaTypeV03       = "application/vnd.dev.sigstore.bundle+json;version=0.3"
	MediaTypeV03Legacy = "application/vnd.dev.sigstore.bundle.v0.3+json"
)

// Variant names the content variant of a bundle.
type Variant string

const (
	VariantMessageSignature Variant = "messageSignature"
	VariantDSSEEnvelope     Variant = "dsseEnvelope"
)

// Bundle is a decoded Sigstore bundle. Records are immutable once parsed.
type Bundle struct {
	MediaType string
	Content   Content
}

// Content is implemented by *MessageSignature and *Envelope only.
type Content interface {
	Variant() Variant
	Digests() (DigestSet, error)

	isContent()
}

// MessageSignature is the messageSignature content of a bundle.
type MessageSignature struct {
	MessageDigest MessageDigest `json:"messageDigest"`
	Signature     string        `json:"signature"`
}

// MessageDigest is the digest of the signed blob. Digest is base64 encoded;
// Algorithm is a HashAlgorithm enum name such as "SHA2_256".
type MessageDigest struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

func (*MessageSignature) Variant() Variant { return VariantMessageSignature }
func (*MessageSignature) isContent()       {}

// Envelope is the dsseEnvelope content of a bundle.
type Envelope struct {
	dsse.Envelope
}

func (*Envelope) Variant() Variant { return VariantDSSEEnvelope }
func (*Envelope) isContent()       {}

// Parse decodes one bundle record.
//
// Top-level field names match exactly. The media type is checked before
// either content object is decoded, so a record of an unknown bundle
// version is rejected on its media type alone.
func Parse(record []byte) (*Bundle, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil {
		return nil, newError(ErrMalformedBundle, "", "", err)
	}
	rawMediaType, ok := fields["mediaType"]
	if !ok || !present(rawMediaType) {
		return nil, newError(ErrMalformedBundle, "mediaType", "", errMissing)
	}
	var mediaType string
	if err := json.Unmarshal(rawMediaType, &mediaType); err != nil {
		return nil, newError(ErrMalformedBundle, "mediaType", "", err)
	}
	switch mediaType {
	case MediaTypeV03, MediaTypeV03Legacy:
	default:
		return nil, newError(ErrUnsupportedMediaType, "mediaType", mediaType, nil)
	}

	rawMessage := fields[string(VariantMessageSignature)]
	rawEnvelope := fields[string(VariantDSSEEnvelope)]
	b := &Bundle{MediaType: mediaType}
	hasMessage := present(rawMessage)
	hasEnvelope := present(rawEnvelope)
	switch {
	case hasMessage && hasEnvelope:
		return nil, newError(ErrMalformedBundle, "", "", errBothContents)
	case hasMessage:
		var ms MessageSignature
		if err := json.Unmarshal(rawMessage, &ms); err != nil {
			return nil, newError(ErrMalformedBundle, string(VariantMessageSignature), "", err)
		}
		b.Content = &ms
	case hasEnvelope:
		var env Envelope
		if err := json.Unmarshal(rawEnvelope, &env); err != nil {
			return nil, newError(ErrMalformedBundle, string(VariantDSSEEnvelope), "", err)
		}
		b.Content = &env
	default:
		return nil, newError(ErrMalformedBundle, "", "", errNoContent)
	}
	return b, nil
}

// Digests returns the digests the bundle attests to.
func (b *Bundle) Digests() (DigestSet, error) {
	return b.Content.Digests()
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
