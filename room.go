package csync

import (
	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
	"go.mau.fi/csync/state"
	"go.mau.fi/csync/timeline"
)

// UnreadNotificationCounts is the decoded unread_notifications /
// per-thread unread notification block from a joined room's sync section.
type UnreadNotificationCounts struct {
	HighlightCount    int
	NotificationCount int
}

func fromWireCounts(w unreadNotificationCounts) UnreadNotificationCounts {
	return UnreadNotificationCounts{HighlightCount: w.HighlightCount, NotificationCount: w.NotificationCount}
}

// JoinedRoom is the reduced, locally-maintained projection of a room the
// client is joined to. State always equals the
// timeline's last event's state when the timeline has any event, and the
// most recently delivered /sync state snapshot otherwise (invariant 1).
type JoinedRoom struct {
	RoomID                    id.RoomID
	AccountData               []*event.ClientEvent
	Ephemeral                 []*event.ClientEvent
	State                     *state.Snapshot
	Timeline                  *timeline.Timeline
	UnreadNotifications       UnreadNotificationCounts
	UnreadThreadNotifications map[id.EventID]UnreadNotificationCounts
}

// LeftRoom is the reduced projection of a room the client has left.
type LeftRoom struct {
	RoomID      id.RoomID
	AccountData []*event.ClientEvent
	State       *state.Snapshot
	Timeline    *timeline.Timeline
}

// InvitedRoom carries only the stripped state delivered for a pending
// invite.
type InvitedRoom struct {
	RoomID id.RoomID
	State  *state.Snapshot
}

// KnockedRoom carries only the stripped state delivered for a pending
// knock.
type KnockedRoom struct {
	RoomID id.RoomID
	State  *state.Snapshot
}
