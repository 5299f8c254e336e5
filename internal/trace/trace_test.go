package trace

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

var (
	digestA = digest.FromString("A").String()
	digestB = digest.FromString("B").String()
	digestZ = digest.FromString("Z").String()
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := ReconcileTrace{
		ArtifactSet: "set",
		Events: []Event{
			{Kind: EventAttestationMatched, Artifact: "b", Digest: digestB, Line: 2},
			{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA},
			{Kind: EventAttestationIgnored, Digest: digestZ, Line: 1},
			{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB},
		},
	}
	trace2 := ReconcileTrace{
		ArtifactSet: "set",
		Events: []Event{
			{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB},
			{Kind: EventAttestationIgnored, Digest: digestZ, Line: 1},
			{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA},
			{Kind: EventAttestationMatched, Artifact: "b", Digest: digestB, Line: 2},
		},
	}

	b1, err := trace1.CanonicalJSON()
	assert.NilError(t, err)
	b2, err := trace2.CanonicalJSON()
	assert.NilError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestCanonicalOrdering(t *testing.T) {
	tr := ReconcileTrace{
		ArtifactSet: "set",
		Events: []Event{
			{Kind: EventArtifactUnmatched, Artifact: "b", Digest: "sha256:b"},
			{Kind: EventArtifactStaged, Artifact: "b", Digest: "sha256:b"},
			{Kind: EventAttestationMatched, Artifact: "a", Digest: "sha256:a", Line: 3},
			{Kind: EventArtifactStaged, Artifact: "a", Digest: "sha256:a"},
			{Kind: EventAttestationIgnored, Digest: "sha256:z", Line: 1},
		},
	}
	b, err := tr.CanonicalJSON()
	assert.NilError(t, err)

	expected := `{"artifactSet":"set","events":[` +
		`{"kind":"AttestationIgnored","digest":"sha256:z","line":1},` +
		`{"kind":"ArtifactStaged","artifact":"a","digest":"sha256:a"},` +
		`{"kind":"AttestationMatched","artifact":"a","digest":"sha256:a","line":3},` +
		`{"kind":"ArtifactStaged","artifact":"b","digest":"sha256:b"},` +
		`{"kind":"ArtifactUnmatched","artifact":"b","digest":"sha256:b"}]}`
	assert.Equal(t, string(b), expected)
}

func TestCanonicalJSON_DoesNotMutateCaller(t *testing.T) {
	events := []Event{
		{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB},
		{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA},
	}
	tr := ReconcileTrace{ArtifactSet: "set", Events: events}
	_, err := tr.CanonicalJSON()
	assert.NilError(t, err)
	assert.Check(t, is.Equal(events[0].Artifact, "b"))
}

func TestHash_IgnoresInsertionOrder(t *testing.T) {
	tr1 := ReconcileTrace{ArtifactSet: "s", Events: []Event{
		{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA},
		{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB},
	}}
	tr2 := ReconcileTrace{ArtifactSet: "s", Events: []Event{
		{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB},
		{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA},
	}}

	h1, err := tr1.Hash()
	assert.NilError(t, err)
	h2, err := tr2.Hash()
	assert.NilError(t, err)
	assert.Equal(t, h1, h2)
	assert.NilError(t, digest.Digest(h1).Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		trace ReconcileTrace
		err   string
	}{
		{
			name:  "missing artifact set",
			trace: ReconcileTrace{},
			err:   "artifactSet is required",
		},
		{
			name:  "missing digest",
			trace: ReconcileTrace{ArtifactSet: "s", Events: []Event{{Kind: EventArtifactStaged, Artifact: "a"}}},
			err:   "events[0].digest is required",
		},
		{
			name:  "matched without artifact",
			trace: ReconcileTrace{ArtifactSet: "s", Events: []Event{{Kind: EventAttestationMatched, Digest: digestA, Line: 1}}},
			err:   `events[0].artifact is required for kind "AttestationMatched"`,
		},
		{
			name:  "ignored without line",
			trace: ReconcileTrace{ArtifactSet: "s", Events: []Event{{Kind: EventAttestationIgnored, Digest: digestA}}},
			err:   `events[0].line is required for kind "AttestationIgnored"`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.trace.Validate(), tc.err)
		})
	}
}

func TestRecorder_TraceDerivesArtifactSet(t *testing.T) {
	r1 := NewRecorder()
	r1.Record(Event{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA})
	r1.Record(Event{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB})

	r2 := NewRecorder()
	r2.Record(Event{Kind: EventArtifactStaged, Artifact: "b", Digest: digestB})
	r2.Record(Event{Kind: EventArtifactStaged, Artifact: "a", Digest: digestA})

	tr1 := r1.Trace()
	tr2 := r2.Trace()
	assert.Equal(t, tr1.ArtifactSet, tr2.ArtifactSet)
	assert.Check(t, is.Equal(tr1.Events[0].Artifact, "a"))

	empty := NewRecorder().Trace()
	assert.NilError(t, empty.Validate())
	assert.Check(t, empty.ArtifactSet != tr1.ArtifactSet)
}

type panickingSink struct{}

func (panickingSink) Record(Event) { panic("boom") }

func TestSafeRecord_SwallowsPanics(t *testing.T) {
	SafeRecord(panickingSink{}, Event{Kind: EventArtifactStaged})
	SafeRecord(nil, Event{Kind: EventArtifactStaged})
}
