package link

import "sync"

// List is the displayed entry list for one page load.
// It is safe for concurrent use; updates are keyed by entry ID and never replace the list.
// Each entry is enriched at most once per List: a failed attempt leaves it Unenriched for good.
type List struct {
	index     map[string]int
	entries   []Entry
	attempted []bool
	mu        sync.RWMutex
}

// NewList copies entries into a new List. Entries with an empty state start Unenriched.
// When IDs repeat, updates address the first entry with that ID.
func NewList(entries []Entry) *List {
	l := &List{
		entries:   make([]Entry, len(entries)),
		attempted: make([]bool, len(entries)),
		index:     make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.State == "" {
			e.State = Unenriched
		}
		l.entries[i] = e
		if _, dup := l.index[e.ID]; !dup {
			l.index[e.ID] = i
		}
	}
	return l
}

// Snapshot returns a copy of the current entries in display order.
func (l *List) Snapshot() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Get returns the entry with the given ID.
func (l *List) Get(id string) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return Entry{}, false
	}
	return l.entries[i], true
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Begin moves an Unenriched entry that was never attempted to Enriching.
// It reports whether the transition happened.
func (l *List) Begin(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok || l.attempted[i] || l.entries[i].State != Unenriched {
		return false
	}
	l.attempted[i] = true
	l.entries[i].State = Enriching
	return true
}

// Resolve ends enrichment for an Enriching entry. On success the subtitle is replaced and
// the entry becomes Enriched; otherwise it returns to Unenriched with its subtitle intact.
// It reports whether the subtitle was replaced; calls for entries that are not Enriching
// are ignored.
func (l *List) Resolve(id, subtitle string, ok bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, found := l.index[id]
	if !found || l.entries[i].State != Enriching {
		return false
	}
	if ok && subtitle != "" {
		l.entries[i].Subtitle = subtitle
		l.entries[i].State = Enriched
		return true
	}
	l.entries[i].State = Unenriched
	return false
}

// Settle returns every entry still Enriching to Unenriched, keeping its static subtitle.
// It returns the number of entries settled.
func (l *List) Settle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for i := range l.entries {
		if l.entries[i].State == Enriching {
			l.entries[i].State = Unenriched
			n++
		}
	}
	return n
}
