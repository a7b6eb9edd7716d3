package timeline

import (
	"fmt"

	"golang.org/x/exp/slices"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/mxerr"
	"go.mau.fi/csync/state"
)

// Direction is the traversal direction a hole is being filled in.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// FetchedChunk is the already-decoded result of one /rooms/{id}/messages
// call: the events needed to fill a hole, plus the server's pagination
// cursors.
type FetchedChunk struct {
	// State is response.state: state events needed to reconstruct the
	// snapshot in force immediately before Chunk's first event.
	State []*event.ClientEvent
	// Chunk is response.chunk: the events filling (part of) the hole, in
	// the order the server returned them (ascending for dir=f, descending
	// for dir=b).
	Chunk []*event.ClientEvent
	// End is response.end: the pagination cursor for the remaining
	// unfetched part of the range, or "" if the hole is now fully known.
	End string
}

// neighborState returns the state snapshot in force adjacent to hole in
// the direction fill is proceeding from: the state of the event right
// before the hole for a forward fill, or right after it for a backward
// fill. An open timeline boundary (no such neighbor) resolves to the
// empty snapshot.
func neighborState(holeNode *node, dir Direction) (*state.Snapshot, error) {
	var neighbor *node
	if dir == Forward {
		neighbor = holeNode.prev
	} else {
		neighbor = holeNode.next
	}
	if neighbor == nil {
		return state.Empty(), nil
	}
	if neighbor.isHole() {
		return nil, fmt.Errorf("%w: hole adjacent to another hole", mxerr.ErrInternal)
	}
	return neighbor.event.State, nil
}

// FillHole replaces the hole named by ref with the events in fetched,
// splicing in a residual hole if fetched.End indicates the range is only
// partially known, and registering every new event through the
// deduplication index. It performs no I/O and acquires no lock; the
// caller (csync's Client) is responsible for the fill-lock coordination
// and the network round trip.
//
// It returns a handle to the first newly available event encountered when
// continuing the traversal in dir, or nil if fetched.Chunk was empty.
func (t *Timeline) FillHole(ref *HoleRef, dir Direction, fetched FetchedChunk) (*Handle, error) {
	holeNode := ref.node
	if holeNode.detached {
		return nil, fmt.Errorf("%w: hole was already resolved", mxerr.ErrInternal)
	}
	tok := *holeNode.hole

	base, err := neighborState(holeNode, dir)
	if err != nil {
		return nil, err
	}
	_, preChunkState, err := state.Resolve(fetched.State, base, false)
	if err != nil {
		return nil, err
	}

	rewind := dir == Backward
	resolved, _, err := state.Resolve(fetched.Chunk, preChunkState, rewind)
	if err != nil {
		return nil, err
	}

	var replacement []*node
	var traversalHandle *Handle

	switch dir {
	case Forward:
		replacement = make([]*node, 0, len(resolved)+1)
		for i := range resolved {
			ewsCopy := resolved[i]
			replacement = append(replacement, &node{event: &ewsCopy})
		}
		if fetched.End != "" {
			replacement = append(replacement, &node{hole: &HoleToken{From: fetched.End, To: tok.To}})
		}
		t.spliceReplace(holeNode, replacement)
		t.registerAll(replacement)
		if len(resolved) > 0 {
			traversalHandle = t.handleForNode(replacement[0])
		}
	case Backward:
		replacement = make([]*node, 0, len(resolved)+1)
		if fetched.End != "" {
			replacement = append(replacement, &node{hole: &HoleToken{From: tok.From, To: fetched.End}})
		}
		// resolved is newest-first (matching the dir=b response order);
		// the list stores events oldest-first.
		slices.Reverse(resolved)
		for i := range resolved {
			ewsCopy := resolved[i]
			replacement = append(replacement, &node{event: &ewsCopy})
		}
		t.spliceReplace(holeNode, replacement)
		t.registerAll(replacement)
		if len(resolved) > 0 {
			traversalHandle = t.handleForNode(replacement[len(replacement)-1])
		}
	}

	if len(fetched.Chunk) == 0 {
		return nil, nil
	}
	return traversalHandle, nil
}

func (t *Timeline) registerAll(nodes []*node) {
	for _, n := range nodes {
		if n.event != nil {
			t.idx.Register(n.event.Event.EventID, n)
		}
	}
}
