package state

import (
	"go.mau.fi/csync/event"
)

// EventWithState pairs a timeline event with the state snapshot in force
// at that point: the state after the event if it is itself state-bearing,
// otherwise the state that was in force when the event was accepted.
type EventWithState struct {
	Event *event.ClientEvent
	State *Snapshot
}

// Resolve folds events into prior (the empty snapshot if prior is nil) and
// returns one EventWithState per input event plus the final snapshot.
//
// When rewind is false (forward resolution), events are folded
// in the order given: each state-bearing event updates the snapshot at its
// (type, state_key) before being emitted.
//
// When rewind is true (backward resolution, used when backfilling with
// dir=b), events must be supplied in the order they are to be undone —
// typically most-recent-first, matching the order /rooms/{id}/messages
// returns a dir=b chunk. Each state-bearing event is emitted against the
// snapshot in force *before* it is undone; the snapshot is then rolled
// back to what it held before that event by consulting
// unsigned.prev_content (removing the key if prev_content is absent).
//
// Resolve only accepts ClientEvents, so "rewind across a stripped event"
// can't be expressed at all — stripped state is folded separately with
// FoldStripped, which never rewinds. The error return is kept for
// interface symmetry with that guarantee and for future fallible checks.
func Resolve(events []*event.ClientEvent, prior *Snapshot, rewind bool) ([]EventWithState, *Snapshot, error) {
	if rewind {
		return resolveBackward(events, prior)
	}
	return resolveForward(events, prior)
}

func resolveForward(events []*event.ClientEvent, prior *Snapshot) ([]EventWithState, *Snapshot, error) {
	cur := prior
	out := make([]EventWithState, 0, len(events))
	for _, evt := range events {
		if evt.IsState() {
			cur = cur.With(evt.Key(), evt.Content)
		}
		out = append(out, EventWithState{Event: evt, State: cur})
	}
	return out, cur, nil
}

func resolveBackward(events []*event.ClientEvent, prior *Snapshot) ([]EventWithState, *Snapshot, error) {
	cur := prior
	out := make([]EventWithState, 0, len(events))
	for _, evt := range events {
		if !evt.IsState() {
			out = append(out, EventWithState{Event: evt, State: cur})
			continue
		}
		out = append(out, EventWithState{Event: evt, State: cur})
		if evt.Unsigned.PrevContent != nil {
			cur = cur.With(evt.Key(), evt.Unsigned.PrevContent)
		} else {
			cur = cur.Without(evt.Key())
		}
	}
	return out, cur, nil
}

// FoldStripped folds stripped state (invite_state/knock_state) into prior.
// Stripped state never produces timeline entries; it only contributes to
// the snapshot.
func FoldStripped(events []*event.StrippedState, prior *Snapshot) *Snapshot {
	cur := prior
	for _, evt := range events {
		cur = cur.With(evt.Key(), evt.Content)
	}
	return cur
}
