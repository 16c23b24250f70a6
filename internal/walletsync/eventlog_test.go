package walletsync

import (
	"sync"
	"testing"
)

// eventRecorder collects every event emitted during a test in arrival
// order. Events are always emitted from under a Manager's internal
// lock, so a single mutex here is enough to keep recording race-free.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) callback() EventCallback {
	return func(ev Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	}
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// expectSubsequence is the event-order recognizer every scenario test
// uses: it fails t unless want appears, in order, as a (possibly
// non-contiguous) subsequence of got. This lets a scenario assert the
// handful of transitions it cares about without over-specifying every
// interleaved event along the way.
func expectSubsequence(t *testing.T, got []EventKind, want ...EventKind) {
	t.Helper()
	i := 0
	for _, k := range got {
		if i < len(want) && k == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Fatalf("event order mismatch: want subsequence %v, got %v", want, got)
	}
}

// expectNoneBetween fails t if an event of kind forbidden appears
// strictly between the first occurrence of from and the following
// occurrence of to.
func expectNoneBetween(t *testing.T, got []EventKind, from, to, forbidden EventKind) {
	t.Helper()
	start, end := -1, -1
	for i, k := range got {
		if k == from && start == -1 {
			start = i
			continue
		}
		if k == to && start != -1 && end == -1 {
			end = i
		}
	}
	if start == -1 || end == -1 {
		return
	}
	for _, k := range got[start+1 : end] {
		if k == forbidden {
			t.Fatalf("found forbidden %v between %v and %v in %v", forbidden, from, to, got)
		}
	}
}

// count reports how many events of kind k appear in got.
func count(got []EventKind, k EventKind) int {
	n := 0
	for _, x := range got {
		if x == k {
			n++
		}
	}
	return n
}
