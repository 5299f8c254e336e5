package trace

import "sync"

// Sink is the minimal interface the stager depends on.
//
// Record must be inert: it must not panic and must not return errors.
// The caller must assume Record may be a no-op.
type Sink interface {
	Record(event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord records an event and guarantees inertness even if the sink is buggy.
// It intentionally swallows panics.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder is an in-memory collector.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all recorded events.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Trace builds a canonical ReconcileTrace from the recorded events. The
// artifact set is derived from the ArtifactStaged events, so a run that failed
// before staging anything still yields a valid (empty-set) trace.
func (r *Recorder) Trace() ReconcileTrace {
	events := r.Snapshot()
	var staged []string
	for _, e := range events {
		if e.Kind == EventArtifactStaged {
			staged = append(staged, e.Digest)
		}
	}
	tr := ReconcileTrace{ArtifactSet: ArtifactSetHash(staged), Events: events}
	tr.Canonicalize()
	return tr
}
