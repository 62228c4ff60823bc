package registry

import (
	"sort"
	"sync"
	"time"
)

// PeerRecord is the presence entry of one peer listener.
type PeerRecord struct {
	Addr       string
	LastSeen   time.Time
	Heartbeats uint64
}

// Table is the presence table keyed by "ip:port". Every method holds the
// lock for its whole check-and-act sequence.
type Table struct {
	mu      sync.Mutex
	peers   map[string]*PeerRecord
	timeout time.Duration
	now     func() time.Time
}

// NewTable returns an empty table evicting records older than timeout.
// now may be nil, meaning time.Now.
func NewTable(timeout time.Duration, now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}
	return &Table{
		peers:   make(map[string]*PeerRecord),
		timeout: timeout,
		now:     now,
	}
}

// Upsert creates or refreshes the record for addr. It reports whether the
// record is new and returns a copy of its state. Heartbeats counts every
// REGISTER including the first.
func (t *Table) Upsert(addr string) (PeerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.peers[addr]
	if !ok {
		rec = &PeerRecord{Addr: addr, LastSeen: now, Heartbeats: 1}
		t.peers[addr] = rec
		return *rec, true
	}

	// last_seen never goes backwards even if the clock does
	if now.After(rec.LastSeen) {
		rec.LastSeen = now
	}
	rec.Heartbeats++
	return *rec, false
}

// Remove deletes addr and returns its last state.
func (t *Table) Remove(addr string) (PeerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.peers[addr]
	if !ok {
		return PeerRecord{}, false
	}
	delete(t.peers, addr)
	return *rec, true
}

// Evict drops every stale record and returns their addresses.
func (t *Table) Evict() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictLocked()
}

func (t *Table) evictLocked() []string {
	now := t.now()
	var evicted []string
	for addr, rec := range t.peers {
		if now.Sub(rec.LastSeen) > t.timeout {
			delete(t.peers, addr)
			evicted = append(evicted, addr)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// List evicts stale records and returns the remaining addresses, sorted.
func (t *Table) List() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictLocked()
	out := make([]string, 0, len(t.peers))
	for addr := range t.peers {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}
