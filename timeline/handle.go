package timeline

import (
	"fmt"

	"go.mau.fi/csync/id"
	"go.mau.fi/csync/mxerr"
	"go.mau.fi/csync/state"
)

// Handle is a reference to one event point in a timeline. Handles survive
// deduplication: if the node they pointed at is displaced, the
// handle detects this on next use and transparently re-resolves itself
// through the global index by event id.
type Handle struct {
	idx     *Index
	eventID id.EventID
	node    *node
}

func (h *Handle) resolve() (*node, error) {
	if h.node != nil && !h.node.detached {
		return h.node, nil
	}
	n, ok := h.idx.lookup(h.eventID)
	if !ok {
		return nil, fmt.Errorf("%w: event %s is not registered in the index", mxerr.ErrInternal, h.eventID)
	}
	h.node = n
	return n, nil
}

// EventID returns the event id this handle refers to. It never changes,
// even across re-resolution.
func (h *Handle) EventID() id.EventID {
	return h.eventID
}

// EventWithState returns the event and state snapshot this handle points
// to, re-resolving through the index first if the handle was orphaned.
func (h *Handle) EventWithState() (*state.EventWithState, error) {
	n, err := h.resolve()
	if err != nil {
		return nil, err
	}
	return n.event, nil
}

// PeekResult is the outcome of a non-blocking traversal step.
type PeekResult struct {
	// Handle is set if the adjacent point is a resolved event.
	Handle *Handle
	// Hole is set if the adjacent point is an unfilled hole.
	Hole *HoleRef
	// End is true if there is no adjacent point at all.
	End bool
}

// HoleRef opaquely identifies a specific hole node so it can be passed to
// Timeline.FillHole. It becomes stale if the hole it names has already
// been filled; FillHole detects this.
type HoleRef struct {
	node *node
}

// Token returns the pagination tokens the referenced hole carries.
func (r *HoleRef) Token() HoleToken {
	return *r.node.hole
}

// Resolved reports whether the hole this ref names has already been filled
// by a concurrent FillHole call. Callers re-check this under the client
// lock before issuing the network call for a fill.
func (r *HoleRef) Resolved() bool {
	return r.node.detached
}

// PeekNext is the non-blocking next_sync operation: it never
// performs I/O, returning a Hole result instead of filling it.
func (h *Handle) PeekNext() (PeekResult, error) {
	n, err := h.resolve()
	if err != nil {
		return PeekResult{}, err
	}
	return peek(n.next), nil
}

// PeekPrevious is the non-blocking previous_sync operation.
func (h *Handle) PeekPrevious() (PeekResult, error) {
	n, err := h.resolve()
	if err != nil {
		return PeekResult{}, err
	}
	return peek(n.prev), nil
}

func peek(n *node) PeekResult {
	if n == nil {
		return PeekResult{End: true}
	}
	if n.isHole() {
		return PeekResult{Hole: &HoleRef{node: n}}
	}
	return PeekResult{Handle: &Handle{idx: n.owner.idx, eventID: n.event.Event.EventID, node: n}}
}
