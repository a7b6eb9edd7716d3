package csync

import (
	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
)

// eventsField is the repeated "{ events: [...] }" wrapper the sync
// response uses for account_data, ephemeral, presence, and (via
// strippedEventsField) invite_state/knock_state.
type eventsField struct {
	Events []*event.ClientEvent `json:"events"`
}

type strippedEventsField struct {
	Events []*event.StrippedState `json:"events"`
}

type unreadNotificationCounts struct {
	HighlightCount    int `json:"highlight_count"`
	NotificationCount int `json:"notification_count"`
}

type apiTimeline struct {
	Events    []*event.ClientEvent `json:"events"`
	Limited   bool                 `json:"limited"`
	PrevBatch string               `json:"prev_batch,omitempty"`
}

type apiJoinedRoom struct {
	AccountData               eventsField                             `json:"account_data"`
	Ephemeral                 eventsField                             `json:"ephemeral"`
	State                     eventsField                             `json:"state"`
	Timeline                  apiTimeline                             `json:"timeline"`
	UnreadNotifications       unreadNotificationCounts                `json:"unread_notifications"`
	UnreadThreadNotifications map[id.EventID]unreadNotificationCounts `json:"unread_thread_notifications,omitempty"`
}

type apiInvitedRoom struct {
	InviteState strippedEventsField `json:"invite_state"`
}

type apiKnockedRoom struct {
	KnockState strippedEventsField `json:"knock_state"`
}

type apiLeftRoom struct {
	AccountData eventsField `json:"account_data"`
	State       eventsField `json:"state"`
	Timeline    apiTimeline `json:"timeline"`
}

// RespSync is the decoded body of GET /sync.
type RespSync struct {
	NextBatch   string      `json:"next_batch"`
	AccountData eventsField `json:"account_data"`
	Presence    eventsField `json:"presence"`
	Rooms       struct {
		Join   map[id.RoomID]apiJoinedRoom  `json:"join"`
		Invite map[id.RoomID]apiInvitedRoom `json:"invite"`
		Knock  map[id.RoomID]apiKnockedRoom `json:"knock"`
		Leave  map[id.RoomID]apiLeftRoom    `json:"leave"`
	} `json:"rooms"`
}

// RespMessages is the decoded body of GET /rooms/{roomId}/messages.
type RespMessages struct {
	Chunk []*event.ClientEvent `json:"chunk"`
	State []*event.ClientEvent `json:"state"`
	Start string               `json:"start"`
	End   string               `json:"end,omitempty"`
}

// RespJoinedRooms is the decoded body of GET /joined_rooms.
type RespJoinedRooms struct {
	JoinedRooms []id.RoomID `json:"joined_rooms"`
}

// RespSendEvent is the decoded body of a send/redact/state-send request.
type RespSendEvent struct {
	EventID id.EventID `json:"event_id"`
}

// RespCreateRoom is the decoded body of POST /createRoom.
type RespCreateRoom struct {
	RoomID id.RoomID `json:"room_id"`
}

// RespJoinRoom is the decoded body of POST /join/{roomIdOrAlias}.
type RespJoinRoom struct {
	RoomID id.RoomID `json:"room_id"`
}

// RespCreateFilter is the decoded body of POST /user/{userId}/filter.
type RespCreateFilter struct {
	FilterID string `json:"filter_id"`
}
