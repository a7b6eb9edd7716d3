package timeline

import "go.mau.fi/csync/id"

// Index is the global EventsById deduplication map: at most
// one live node per event id, shared by every room's Timeline. It is not
// internally locked — callers hold csync's single client mutex across any
// sequence of Register/Lookup calls that must be atomic with a timeline
// mutation.
type Index struct {
	entries map[id.EventID]*node
}

// NewIndex creates an empty deduplication index.
func NewIndex() *Index {
	return &Index{entries: make(map[id.EventID]*node)}
}

// Register records n as the live node for eventID. If eventID was already
// registered to a different node, that node is unlinked from whatever
// timeline owns it — any outstanding Handle pointing at it becomes
// orphaned and will self-heal by re-resolving through this index.
func (idx *Index) Register(eventID id.EventID, n *node) {
	if old, ok := idx.entries[eventID]; ok && old != n {
		if old.owner != nil {
			old.owner.spliceReplace(old, nil)
		}
	}
	idx.entries[eventID] = n
}

func (idx *Index) lookup(eventID id.EventID) (*node, bool) {
	n, ok := idx.entries[eventID]
	return n, ok
}

// Lookup is the public face of the global EventsById index: it
// returns a Handle to the live node for eventID, or false if no event with
// that id has ever been registered.
func (idx *Index) Lookup(eventID id.EventID) (*Handle, bool) {
	n, ok := idx.lookup(eventID)
	if !ok {
		return nil, false
	}
	return &Handle{idx: idx, eventID: eventID, node: n}, true
}

// Len returns the number of distinct event ids currently indexed.
func (idx *Index) Len() int {
	return len(idx.entries)
}
