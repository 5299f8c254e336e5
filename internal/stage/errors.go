package stage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/opencontainers/go-digest"
)

// UnmatchedError is returned when attestation input was supplied but some
// artifacts were not matched by any record. Names are in input order.
type UnmatchedError struct {
	Names []string
}

func (e *UnmatchedError) Error() string {
	quoted := make([]string, len(e.Names))
	for i, n := range e.Names {
		quoted[i] = strconv.Quote(n)
	}
	return fmt.Sprintf("some artifacts were not attested: [%s]", strings.Join(quoted, ", "))
}

func (e *UnmatchedError) Unwrap() error { return errdefs.ErrFailedPrecondition }

// DuplicateDigestError is returned when two artifacts have identical content.
// Matching by digest could not tell them apart.
type DuplicateDigestError struct {
	Digest digest.Digest
	First  string
	Second string
}

func (e *DuplicateDigestError) Error() string {
	return fmt.Sprintf("artifacts %q and %q have the same digest %s", e.First, e.Second, e.Digest)
}

func (e *DuplicateDigestError) Unwrap() error { return errdefs.ErrInvalidArgument }

// RecordError wraps a failure to decode one attestation line.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("attestation line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
