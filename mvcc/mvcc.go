// Package mvcc implements the per-cell lock-candidate list the core
// consults before obsoleting or removing an entry. It is not a
// multiversion history; it is the narrow "who else currently holds or
// wants a lock on this key" bookkeeping.
package mvcc

import (
	"sync"

	"github.com/shaj13/gridentry"
)

// Candidate is one lock holder or waiter.
type Candidate struct {
	Version gridentry.Version
	Node    uint32
	Thread  uint64
	Local   bool
	Owner   bool
}

// List is a concurrency-safe MVCCCandidates implementation: a small
// slice guarded by a mutex. A key carries a handful of candidates at any
// time, never a long history.
type List struct {
	mu         sync.Mutex
	candidates []Candidate
}

// New returns an empty candidate list.
func New() *List {
	return &List{}
}

// Add registers a candidate (owner or waiter) for v.
func (l *List) Add(c Candidate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.candidates = append(l.candidates, c)
}

// Release removes the candidate for v, if present.
func (l *List) Release(v gridentry.Version) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.candidates[:0]
	for _, c := range l.candidates {
		if gridentry.CompareVersions(c.Version, v) != 0 {
			out = append(out, c)
		}
	}
	l.candidates = out
}

func (l *List) AnyOwner() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if c.Owner {
			return true
		}
	}
	return false
}

func (l *List) IsEmpty(exclude ...gridentry.Version) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		excluded := false
		for _, e := range exclude {
			if gridentry.CompareVersions(c.Version, e) == 0 {
				excluded = true
				break
			}
		}
		if !excluded {
			return false
		}
	}
	return true
}

func (l *List) HasCandidate(v gridentry.Version) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if gridentry.CompareVersions(c.Version, v) == 0 {
			return true
		}
	}
	return false
}

func (l *List) LocalCandidate(thread uint64) (gridentry.Version, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if c.Local && c.Thread == thread {
			return c.Version, true
		}
	}
	return gridentry.Version{}, false
}

func (l *List) LocalOwner() (gridentry.Version, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if c.Local && c.Owner {
			return c.Version, true
		}
	}
	return gridentry.Version{}, false
}

func (l *List) IsLocallyOwned(v gridentry.Version) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if c.Local && c.Owner && gridentry.CompareVersions(c.Version, v) == 0 {
			return true
		}
	}
	return false
}

func (l *List) IsLocallyOwnedByThread(v gridentry.Version, thread uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if c.Local && c.Owner && c.Thread == thread && gridentry.CompareVersions(c.Version, v) == 0 {
			return true
		}
	}
	return false
}

func (l *List) IsOwnedBy(v gridentry.Version) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if c.Owner && gridentry.CompareVersions(c.Version, v) == 0 {
			return true
		}
	}
	return false
}

func (l *List) Candidate(v gridentry.Version) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if gridentry.CompareVersions(c.Version, v) == 0 {
			return c, true
		}
	}
	return nil, false
}

func (l *List) RemoteCandidate(node uint32, thread uint64) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.candidates {
		if !c.Local && c.Node == node && c.Thread == thread {
			return c, true
		}
	}
	return nil, false
}

// PermitsObsoletion reports whether the list allows the cell carrying it
// to become obsolete at version v: it must be empty of every candidate
// except possibly one matching v itself (the obsoleting writer's own
// lock).
func (l *List) PermitsObsoletion(v gridentry.Version) bool {
	return l.IsEmpty(v)
}
