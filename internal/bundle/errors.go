package bundle

import (
	"errors"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
)

var (
	ErrMalformedBundle            = errors.New("malformed sigstore bundle")
	ErrUnsupportedMediaType       = errors.New("unsupported sigstore media type")
	ErrUnsupportedDigestAlgorithm = errors.New("unsupported message digest algorithm")
	ErrUnsupportedPayloadType     = errors.New("unsupported dsse payload type")
	ErrUnexpectedStatementType    = errors.New("unsupported in-toto statement type")
	ErrMalformedEncoding          = errors.New("malformed encoding")

	errMissing      = errors.New("field is missing")
	errBothContents = errors.New("both messageSignature and dsseEnvelope are present")
	errNoContent    = errors.New("neither messageSignature nor dsseEnvelope is present")
)

// Error describes why a record could not be turned into digests.
//
// Kind is one of the Err* sentinels above. Field is the JSON path of the
// offending value inside the record (for example "dsseEnvelope.payloadType")
// and Value is the offending value itself when reporting it helps.
// Every Error also matches errdefs.ErrInvalidArgument.
type Error struct {
	Kind  error
	Field string
	Value string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Value != "" {
		b.WriteString(" ")
		b.WriteString(strconv.Quote(e.Value))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind, errdefs.ErrInvalidArgument}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind error, field, value string, cause error) *Error {
	return &Error{Kind: kind, Field: field, Value: value, Err: cause}
}

