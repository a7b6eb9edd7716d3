// Package timeline implements the gap-tracked, doubly-linked per-room
// timeline described by the synchronization engine: a sequence of
// resolved events interleaved with explicit "holes" that are lazily
// filled from /rooms/{id}/messages, plus the cross-timeline event
// deduplication index.
package timeline

import (
	"fmt"

	"go.mau.fi/csync/id"
	"go.mau.fi/csync/mxerr"
	"go.mau.fi/csync/state"
)

// HoleToken is the pair of pagination tokens a hole carries. Either may be
// empty, meaning "open-ended in that direction".
type HoleToken struct {
	From string
	To   string
}

// node is one link of the timeline's doubly linked list. It is never
// exposed directly; callers interact through Handle, which tolerates a
// node being unlinked (displaced by deduplication) out from under it.
type node struct {
	prev, next *node
	owner      *Timeline
	event      *state.EventWithState // nil if this node is a hole
	hole       *HoleToken             // nil if this node is an event
	detached   bool
}

func (n *node) isHole() bool { return n.hole != nil }

// Timeline is the doubly-linked, gap-tracked sequence of events for a
// single room. It is not safe for concurrent use; csync's Client
// serializes all timeline mutation and traversal under its single mutex
//.
type Timeline struct {
	roomID     id.RoomID
	head, tail *node
	idx        *Index
}

// New creates an empty timeline for roomID, registering new events through
// idx, the client-wide deduplication index.
func New(roomID id.RoomID, idx *Index) *Timeline {
	return &Timeline{roomID: roomID, idx: idx}
}

func (t *Timeline) RoomID() id.RoomID { return t.roomID }

// IsEmpty reports whether the timeline has no points at all.
func (t *Timeline) IsEmpty() bool { return t.head == nil }

func (t *Timeline) handleForNode(n *node) *Handle {
	return &Handle{idx: t.idx, eventID: n.event.Event.EventID, node: n}
}

// First returns a handle to the earliest non-hole point in the timeline.
// A timeline consisting only of holes is a broken invariant.
func (t *Timeline) First() (*Handle, error) {
	n := t.head
	for n != nil && n.isHole() {
		n = n.next
	}
	if n == nil {
		if t.head == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: timeline %s has no non-hole point", mxerr.ErrInternal, t.roomID)
	}
	return t.handleForNode(n), nil
}

// Last returns a handle to the most recent non-hole point in the timeline.
func (t *Timeline) Last() (*Handle, error) {
	n := t.tail
	for n != nil && n.isHole() {
		n = n.prev
	}
	if n == nil {
		if t.tail == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: timeline %s has no non-hole point", mxerr.ErrInternal, t.roomID)
	}
	return t.handleForNode(n), nil
}

// appendAtTail links nodes, in order, onto the end of the timeline.
func (t *Timeline) appendAtTail(nodes []*node) {
	if len(nodes) == 0 {
		return
	}
	for _, n := range nodes {
		n.owner = t
	}
	for i := 0; i < len(nodes)-1; i++ {
		nodes[i].next = nodes[i+1]
		nodes[i+1].prev = nodes[i]
	}
	first, last := nodes[0], nodes[len(nodes)-1]
	if t.tail != nil {
		t.tail.next = first
		first.prev = t.tail
	} else {
		t.head = first
	}
	t.tail = last
}

// spliceReplace unlinks old and links replacements (already linked to one
// another, in order) in its place. An empty replacements slice removes old
// from the timeline entirely.
func (t *Timeline) spliceReplace(old *node, replacements []*node) {
	prev, next := old.prev, old.next
	old.detached = true
	old.prev, old.next = nil, nil

	if len(replacements) == 0 {
		if prev != nil {
			prev.next = next
		} else {
			t.head = next
		}
		if next != nil {
			next.prev = prev
		} else {
			t.tail = prev
		}
		return
	}

	for _, n := range replacements {
		n.owner = t
	}
	for i := 0; i < len(replacements)-1; i++ {
		replacements[i].next = replacements[i+1]
		replacements[i+1].prev = replacements[i]
	}
	first, last := replacements[0], replacements[len(replacements)-1]
	first.prev = prev
	last.next = next
	if prev != nil {
		prev.next = first
	} else {
		t.head = first
	}
	if next != nil {
		next.prev = last
	} else {
		t.tail = last
	}
}

// AppendHole appends a hole to the end of the timeline. If the timeline
// already ends in a hole, the two are merged (extending the known gap)
// rather than creating two adjacent holes, which would violate the
// timeline's no-adjacent-holes invariant.
func (t *Timeline) AppendHole(tok HoleToken) {
	if t.tail != nil && t.tail.isHole() {
		t.tail.hole.To = tok.To
		return
	}
	t.appendAtTail([]*node{{hole: &tok}})
}

// AppendEventsWithState appends resolved events to the end of the
// timeline, registering each through the deduplication index, and returns
// a handle to each newly appended point.
func (t *Timeline) AppendEventsWithState(events []state.EventWithState) []*Handle {
	nodes := make([]*node, len(events))
	for i := range events {
		ewsCopy := events[i]
		nodes[i] = &node{event: &ewsCopy}
	}
	t.appendAtTail(nodes)
	handles := make([]*Handle, len(nodes))
	for i, n := range nodes {
		t.idx.Register(n.event.Event.EventID, n)
		handles[i] = t.handleForNode(n)
	}
	return handles
}
