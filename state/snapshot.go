// Package state implements the pure state-resolution fold described by the
// synchronization engine: turning an ordered event stream into a snapshot
// mapping (type, state_key) to content.
package state

import (
	"reflect"

	"golang.org/x/exp/maps"

	"go.mau.fi/csync/event"
)

// Key identifies one entry of a Snapshot: an event type plus the state_key
// that disambiguates multiple state events of that type.
type Key = event.StateKey

// Snapshot is a persistent, immutable mapping of state keys to content.
// Updates never mutate a Snapshot in place; With and Without return a new
// value, leaving every previously handed-out Snapshot valid. A nil
// *Snapshot behaves like an empty one.
type Snapshot struct {
	entries map[Key]event.Content
}

// Empty returns the empty snapshot.
func Empty() *Snapshot {
	return &Snapshot{}
}

// Get returns the content stored at key, if any.
func (s *Snapshot) Get(key Key) (event.Content, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.entries[key]
	return c, ok
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// With returns a new snapshot equal to s but with key set to content. s is
// left unmodified; this is a copy-on-write map clone, adequate for the
// handful-to-low-thousands of state keys a room typically carries.
func (s *Snapshot) With(key Key, content event.Content) *Snapshot {
	var entries map[Key]event.Content
	if s != nil {
		entries = s.entries
	}
	next := maps.Clone(entries)
	if next == nil {
		next = make(map[Key]event.Content, 1)
	}
	next[key] = content
	return &Snapshot{entries: next}
}

// Without returns a new snapshot equal to s but with key removed.
func (s *Snapshot) Without(key Key) *Snapshot {
	if s.Len() == 0 {
		return Empty()
	}
	if _, ok := s.entries[key]; !ok {
		return s
	}
	next := maps.Clone(s.entries)
	delete(next, key)
	return &Snapshot{entries: next}
}

// Keys returns the snapshot's keys in no particular order.
func (s *Snapshot) Keys() []Key {
	keys := make([]Key, 0, s.Len())
	if s == nil {
		return keys
	}
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// Equal reports whether two snapshots hold the same set of entries with
// deeply-equal content. Used by tests to check the forward/backward
// resolve round-trip invariant.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, k := range s.Keys() {
		v, _ := s.Get(k)
		ov, ok := other.Get(k)
		if !ok || !reflect.DeepEqual(v, ov) {
			return false
		}
	}
	return true
}
