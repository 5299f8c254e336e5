package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ReconcileTrace is the canonical, deterministic record of one staging run.
//
// Invariants:
//   - ArtifactSet identifies the set of artifact digests the run started from.
//   - Events capture logical decisions only: which artifact was staged, which
//     attestation line matched or was ignored, which artifact stayed pending.
//   - No timestamps, paths of temporary directories or error strings.
//
// Canonical representation:
//   - Events are sorted via Canonicalize() using a fully-specified ordering.
//   - JSON serialization uses a custom marshaler to fix field order and omit
//     absent optional fields.
//
// Two runs over identical artifacts and attestation files produce identical
// bytes from CanonicalJSON.
type ReconcileTrace struct {
	ArtifactSet string
	Events      []Event
}

// EventKind is the stable discriminator for Event. The string values are
// part of the trace's canonical bytes; do not rename.
type EventKind string

const (
	EventArtifactStaged     EventKind = "ArtifactStaged"
	EventAttestationMatched EventKind = "AttestationMatched"
	EventAttestationIgnored EventKind = "AttestationIgnored"
	EventArtifactUnmatched  EventKind = "ArtifactUnmatched"
)

// Event is a single logical decision.
type Event struct {
	Kind EventKind

	// Artifact is the logical artifact name. Empty only for
	// EventAttestationIgnored, where the digest belongs to no artifact.
	Artifact string

	// Digest is the content digest the decision was made on.
	Digest string

	// Line is the 1-based attestation line, or 0 for artifact-only events.
	Line int
}

// Validate checks basic invariants and returns a descriptive error.
func (t *ReconcileTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.ArtifactSet == "" {
		return errors.New("artifactSet is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Digest == "" {
			return fmt.Errorf("events[%d].digest is required", i)
		}
		if isArtifactEvent(e.Kind) && e.Artifact == "" {
			return fmt.Errorf("events[%d].artifact is required for kind %q", i, e.Kind)
		}
		if isLineEvent(e.Kind) && e.Line <= 0 {
			return fmt.Errorf("events[%d].line is required for kind %q", i, e.Kind)
		}
		if e.Line < 0 {
			return fmt.Errorf("events[%d].line is negative", i)
		}
	}
	return nil
}

func isArtifactEvent(kind EventKind) bool {
	return kind != EventAttestationIgnored
}

func isLineEvent(kind EventKind) bool {
	return kind == EventAttestationMatched || kind == EventAttestationIgnored
}

// Canonicalize sorts the events into their canonical order:
// (artifact, kind, digest, line). Ignored attestations have no artifact and
// therefore sort first.
func (t *ReconcileTrace) Canonicalize() {
	if t == nil {
		return
	}
	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.Artifact != b.Artifact {
			return a.Artifact < b.Artifact
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Digest != b.Digest {
			return a.Digest < b.Digest
		}
		return a.Line < b.Line
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventArtifactStaged:
		return 10
	case EventAttestationMatched:
		return 20
	case EventAttestationIgnored:
		return 30
	case EventArtifactUnmatched:
		return 40
	default:
		return 1000
	}
}

// CanonicalJSON returns the canonical JSON encoding of the trace.
// It canonicalizes a copy of the trace to avoid mutating the caller's slices.
func (t ReconcileTrace) CanonicalJSON() ([]byte, error) {
	copyTrace := ReconcileTrace{ArtifactSet: t.ArtifactSet}
	copyTrace.Events = make([]Event, len(t.Events))
	copy(copyTrace.Events, t.Events)
	copyTrace.Canonicalize()
	if err := copyTrace.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyTrace)
}

// Hash returns the digest of the canonical JSON bytes.
func (t ReconcileTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order. It does not sort; see CanonicalJSON.
func (t ReconcileTrace) MarshalJSON() ([]byte, error) {
	if t.ArtifactSet == "" {
		return nil, errors.New("artifactSet is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"artifactSet":`)
	as, _ := json.Marshal(t.ArtifactSet)
	buf.Write(as)

	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.Artifact != "" {
		buf.WriteString(`,"artifact":`)
		ab, _ := json.Marshal(e.Artifact)
		buf.Write(ab)
	}

	buf.WriteString(`,"digest":`)
	db, _ := json.Marshal(e.Digest)
	buf.Write(db)

	if e.Line > 0 {
		buf.WriteString(`,"line":`)
		buf.WriteString(strconv.Itoa(e.Line))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
