package stage

import (
	"github.com/opencontainers/go-digest"
)

// pendingSet maps the digest of every artifact not yet matched to its index
// in the staged list. Entries are only ever removed after construction.
// staged aliases the caller's slice so claims can be recorded in place.
type pendingSet struct {
	byDigest map[digest.Digest]int
	staged   []StagedArtifact
}

func newPendingSet(staged []StagedArtifact) (*pendingSet, error) {
	p := &pendingSet{
		byDigest: make(map[digest.Digest]int, len(staged)),
		staged:   staged,
	}
	for i, a := range staged {
		if j, ok := p.byDigest[a.Digest]; ok {
			return nil, &DuplicateDigestError{Digest: a.Digest, First: staged[j].Name, Second: a.Name}
		}
		p.byDigest[a.Digest] = i
	}
	return p, nil
}

// claim removes d from the set and returns the index of the artifact it
// belonged to. ok is false when d was never pending or was already claimed.
func (p *pendingSet) claim(d digest.Digest) (index int, ok bool) {
	index, ok = p.byDigest[d]
	if ok {
		delete(p.byDigest, d)
	}
	return index, ok
}

// remaining returns the names of the unmatched artifacts in input order.
func (p *pendingSet) remaining() []string {
	var names []string
	for _, a := range p.staged {
		if _, ok := p.byDigest[a.Digest]; ok {
			names = append(names, a.Name)
		}
	}
	return names
}
