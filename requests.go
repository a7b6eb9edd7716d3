package csync

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
)

// RoomPreset is the "preset" option recognized by ReqCreateRoom.
type RoomPreset string

const (
	PresetPrivateChat        RoomPreset = "private_chat"
	PresetTrustedPrivateChat RoomPreset = "trusted_private_chat"
	PresetPublicChat         RoomPreset = "public_chat"
)

// RoomVisibility is the "visibility" option recognized by ReqCreateRoom.
type RoomVisibility string

const (
	VisibilityPublic  RoomVisibility = "public"
	VisibilityPrivate RoomVisibility = "private"
)

type reqPredecessor struct {
	RoomID  id.RoomID  `json:"room_id"`
	EventID id.EventID `json:"event_id"`
}

type reqStateEvent struct {
	Type     event.Type   `json:"type"`
	StateKey string       `json:"state_key"`
	Content  event.Content `json:"content"`
}

// ReqCreateRoom carries the options for creating a room. Predecessor is
// only sent if both PredecessorEventID and PredecessorRoomID are set;
// supplying only one is treated as neither.
type ReqCreateRoom struct {
	Type                      string
	RoomVersion               string
	Federate                  *bool
	Invite                    []id.UserID
	IsDirect                  bool
	Name                      string
	InitialState              []reqStateEvent
	PowerLevelContentOverride *event.PowerLevelsContent
	Preset                    RoomPreset
	RoomAliasName             string
	Topic                     string
	Visibility                RoomVisibility
	PredecessorEventID        id.EventID
	PredecessorRoomID         id.RoomID
}

// marshal builds the wire body by setting only the fields that were
// actually populated, applying the both-or-neither predecessor rule and
// folding Type/Federate into a creation_content object since they live
// there rather than at the top level.
func (r *ReqCreateRoom) marshal() (json.RawMessage, error) {
	raw := []byte("{}")
	var err error
	set := func(path string, value interface{}) {
		if err != nil {
			return
		}
		raw, err = sjson.SetBytes(raw, path, value)
	}
	setRaw := func(path string, value interface{}) {
		if err != nil || isZero(value) {
			return
		}
		var encoded []byte
		encoded, err = json.Marshal(value)
		if err != nil {
			return
		}
		raw, err = sjson.SetRawBytes(raw, path, encoded)
	}

	if r.RoomVersion != "" {
		set("room_version", r.RoomVersion)
	}
	if len(r.Invite) > 0 {
		set("invite", r.Invite)
	}
	if r.IsDirect {
		set("is_direct", true)
	}
	if r.Name != "" {
		set("name", r.Name)
	}
	if len(r.InitialState) > 0 {
		setRaw("initial_state", r.InitialState)
	}
	if r.PowerLevelContentOverride != nil {
		setRaw("power_level_content_override", r.PowerLevelContentOverride)
	}
	if r.Preset != "" {
		set("preset", string(r.Preset))
	}
	if r.RoomAliasName != "" {
		set("room_alias_name", r.RoomAliasName)
	}
	if r.Topic != "" {
		set("topic", r.Topic)
	}
	if r.Visibility != "" {
		set("visibility", string(r.Visibility))
	}
	if r.Type != "" {
		set("creation_content.type", r.Type)
	}
	if r.Federate != nil {
		set("creation_content.m\\.federate", *r.Federate)
	}
	if r.PredecessorEventID != "" && r.PredecessorRoomID != "" {
		setRaw("creation_content.predecessor", reqPredecessor{RoomID: r.PredecessorRoomID, EventID: r.PredecessorEventID})
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func isZero(v interface{}) bool {
	switch t := v.(type) {
	case []reqStateEvent:
		return len(t) == 0
	case *event.PowerLevelsContent:
		return t == nil
	case reqPredecessor:
		return t.RoomID == "" && t.EventID == ""
	default:
		return false
	}
}

type reqInviteUser struct {
	UserID id.UserID `json:"user_id"`
	Reason string    `json:"reason,omitempty"`
}

type reqLeaveRoom struct {
	Reason string `json:"reason,omitempty"`
}

type reqRedact struct {
	Reason string `json:"reason,omitempty"`
}

type reqJoinRoom struct {
	Reason string `json:"reason,omitempty"`
}
