// Package addrset tracks the set of wallet addresses a scan has already
// queried, so that only newly-discovered addresses (from gap-limit
// expansion) are re-queried on a given block range.
package addrset

import "sync"

// Tracker is a set of address strings. Address sets in this system are
// small (tens of entries, not millions), so a plain locked map is
// enough; no probabilistic-filter machinery needed.
type Tracker struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{set: make(map[string]struct{})}
}

// NewFrom returns a tracker seeded with addrs.
func NewFrom(addrs []string) *Tracker {
	t := New()
	for _, a := range addrs {
		t.set[a] = struct{}{}
	}
	return t
}

// Add inserts addr and reports whether it was newly added.
func (t *Tracker) Add(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.set[addr]; ok {
		return false
	}
	t.set[addr] = struct{}{}
	return true
}

// Contains reports whether addr is already tracked.
func (t *Tracker) Contains(addr string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.set[addr]
	return ok
}

// Delta adds every address in addrs not already tracked and returns just
// those newly-added addresses, in the order they appeared in addrs.
func (t *Tracker) Delta(addrs []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var delta []string
	for _, a := range addrs {
		if _, ok := t.set[a]; ok {
			continue
		}
		t.set[a] = struct{}{}
		delta = append(delta, a)
	}
	return delta
}

// Snapshot returns every tracked address, in unspecified order.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.set))
	for a := range t.set {
		out = append(out, a)
	}
	return out
}

// Len reports the number of tracked addresses.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.set)
}
