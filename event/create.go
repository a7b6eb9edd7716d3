package event

import (
	"encoding/json"

	"go.mau.fi/csync/id"
)

// PreviousRoom identifies the room a new room was created to replace, via
// m.room.create's "predecessor" field.
type PreviousRoom struct {
	RoomID  id.RoomID  `json:"room_id"`
	EventID id.EventID `json:"event_id"`
}

// CreateContent is the content of an m.room.create state event.
type CreateContent struct {
	Creator     id.UserID     `json:"creator,omitempty"`
	RoomVersion string        `json:"room_version,omitempty"`
	Predecessor *PreviousRoom `json:"predecessor,omitempty"`
	Federate    *bool         `json:"m.federate,omitempty"`
}

func (c *CreateContent) EventType() Type { return TypeRoomCreate }

func parseCreateContent(raw json.RawMessage) (Content, error) {
	var c CreateContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, newDecodeError("content", err.Error())
	}
	return &c, nil
}
