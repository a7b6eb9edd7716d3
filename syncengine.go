package csync

import (
	"context"
	"fmt"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
	"go.mau.fi/csync/pushrules"
	"go.mau.fi/csync/state"
	"go.mau.fi/csync/timeline"
)

// pushRulesEventType is the account data type carrying the user's push
// rules.
const pushRulesEventType event.Type = "m.push_rules"

// Sync performs exactly one /sync request and merges the result into the
// client's rooms, honoring the syncing/filling gate pair from
// §5 rule 1: a sync in flight is shared by concurrent callers rather than
// issuing a second HTTP request (testable property 5).
func (c *Client) Sync(ctx context.Context, timeoutMs int, presence SetPresence) error {
	c.gate.mu.Lock()
	for c.gate.filling {
		c.gate.cond.Wait()
	}
	if c.gate.syncing {
		for c.gate.syncing {
			c.gate.cond.Wait()
		}
		c.gate.mu.Unlock()
		return nil
	}
	c.gate.syncing = true
	c.gate.mu.Unlock()

	err := c.doSync(ctx, timeoutMs, presence)

	c.gate.mu.Lock()
	c.gate.syncing = false
	c.gate.cond.Broadcast()
	c.gate.mu.Unlock()
	return err
}

func (c *Client) doSync(ctx context.Context, timeoutMs int, presence SetPresence) error {
	if err := c.EnsureFilter(ctx); err != nil {
		return fmt.Errorf("ensuring sync filter: %w", err)
	}

	c.mu.Lock()
	originalBatch := c.nextBatch
	c.mu.Unlock()

	resp, err := c.syncRequest(ctx, originalBatch, timeoutMs, presence)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextBatch = resp.NextBatch
	c.foldPresence(resp.Presence.Events)
	c.foldGlobalAccountData(resp.AccountData.Events)
	c.foldInvites(resp.Rooms.Invite)
	c.foldKnocks(resp.Rooms.Knock)
	if err := c.foldJoined(resp.Rooms.Join, originalBatch); err != nil {
		return err
	}
	if err := c.foldLeft(resp.Rooms.Leave, originalBatch); err != nil {
		return err
	}
	return nil
}

// foldPresence folds presence.events into presenceState: presence events
// aren't state-keyed by (type, state_key), so each one simply replaces the
// sender's last-known presence content.
func (c *Client) foldPresence(events []*event.ClientEvent) {
	for _, evt := range events {
		c.presenceState[evt.Sender] = evt.Content
	}
}

func (c *Client) foldGlobalAccountData(events []*event.ClientEvent) {
	for _, evt := range events {
		if evt.Type != pushRulesEventType {
			continue
		}
		unknown, ok := evt.Content.(*event.UnknownContent)
		if !ok {
			continue
		}
		rules, err := pushrules.Parse(unknown.Raw)
		if err != nil {
			c.Log.Warn().Err(err).Msg("failed to parse m.push_rules account data")
			continue
		}
		c.pushRules = rules
	}
}

// foldInvites folds rooms.invite into invited_state.
func (c *Client) foldInvites(invites map[id.RoomID]apiInvitedRoom) {
	for roomID, inv := range invites {
		snap := state.FoldStripped(inv.InviteState.Events, state.Empty())
		c.invitedState[roomID] = &InvitedRoom{RoomID: roomID, State: snap}
	}
}

// foldKnocks folds rooms.knock into knock_state.
func (c *Client) foldKnocks(knocks map[id.RoomID]apiKnockedRoom) {
	for roomID, k := range knocks {
		snap := state.FoldStripped(k.KnockState.Events, state.Empty())
		c.knockState[roomID] = &KnockedRoom{RoomID: roomID, State: snap}
	}
}

// foldJoined folds rooms.join into joined_rooms.
func (c *Client) foldJoined(joins map[id.RoomID]apiJoinedRoom, originalBatch string) error {
	for roomID, j := range joins {
		room, ok := c.joinedRooms[roomID]
		if !ok {
			room = &JoinedRoom{
				RoomID:   roomID,
				State:    state.Empty(),
				Timeline: timeline.New(roomID, c.idx),
			}
			c.joinedRooms[roomID] = room
		}
		delete(c.leftRooms, roomID)

		room.AccountData = j.AccountData.Events
		room.Ephemeral = j.Ephemeral.Events

		_, stateAfterDelta, err := state.Resolve(j.State.Events, room.State, false)
		if err != nil {
			return fmt.Errorf("folding state for %s: %w", roomID, err)
		}

		final, err := c.syncTimeline(room.Timeline, j.Timeline, stateAfterDelta, originalBatch)
		if err != nil {
			return fmt.Errorf("syncing timeline for %s: %w", roomID, err)
		}
		room.State = final
		room.UnreadNotifications = fromWireCounts(j.UnreadNotifications)
		if len(j.UnreadThreadNotifications) > 0 {
			if room.UnreadThreadNotifications == nil {
				room.UnreadThreadNotifications = make(map[id.EventID]UnreadNotificationCounts, len(j.UnreadThreadNotifications))
			}
			for threadID, counts := range j.UnreadThreadNotifications {
				room.UnreadThreadNotifications[threadID] = fromWireCounts(counts)
			}
		}
	}
	return nil
}

// foldLeft folds rooms.leave into left_rooms: like
// foldJoined but without ephemeral or unread notification counts.
func (c *Client) foldLeft(leaves map[id.RoomID]apiLeftRoom, originalBatch string) error {
	for roomID, l := range leaves {
		var tl *timeline.Timeline
		var base *state.Snapshot
		if existing, ok := c.joinedRooms[roomID]; ok {
			tl, base = existing.Timeline, existing.State
			delete(c.joinedRooms, roomID)
		} else if existing, ok := c.leftRooms[roomID]; ok {
			tl, base = existing.Timeline, existing.State
		} else {
			tl, base = timeline.New(roomID, c.idx), state.Empty()
		}

		_, stateAfterDelta, err := state.Resolve(l.State.Events, base, false)
		if err != nil {
			return fmt.Errorf("folding state for left room %s: %w", roomID, err)
		}
		final, err := c.syncTimeline(tl, l.Timeline, stateAfterDelta, originalBatch)
		if err != nil {
			return fmt.Errorf("syncing timeline for left room %s: %w", roomID, err)
		}
		c.leftRooms[roomID] = &LeftRoom{
			RoomID:      roomID,
			AccountData: l.AccountData.Events,
			State:       final,
			Timeline:    tl,
		}
	}
	return nil
}

// syncTimeline appends a gap hole when
// the room's delivered prev_batch diverges from the since token this sync
// was issued with, resolves the new events against priorState, appends
// them, applies any redactions among them, and returns the resulting
// snapshot — priorState unchanged if the chunk was empty, per the
// recompute rule for an empty chunk.
//
// originalBatch == "" (this process's very first sync) always suppresses
// the hole: there is no prior batch token to express a gap against.
func (c *Client) syncTimeline(tl *timeline.Timeline, apiTimeline apiTimeline, priorState *state.Snapshot, originalBatch string) (*state.Snapshot, error) {
	if originalBatch != "" && apiTimeline.PrevBatch != originalBatch {
		tl.AppendHole(timeline.HoleToken{From: originalBatch, To: apiTimeline.PrevBatch})
	}

	resolved, final, err := state.Resolve(apiTimeline.Events, priorState, false)
	if err != nil {
		return nil, err
	}
	tl.AppendEventsWithState(resolved)

	for _, ews := range resolved {
		if ews.Event.Type != event.TypeRoomRedaction {
			continue
		}
		rc, ok := ews.Event.Content.(*event.RedactionContent)
		if !ok || rc.Redacts == "" {
			continue
		}
		timeline.ApplyRedaction(c.idx, rc.Redacts, ews.Event)
	}

	return final, nil
}
