package event

import (
	"encoding/json"

	"go.mau.fi/csync/id"
)

// MemberContent is the content of an m.room.member state event.
type MemberContent struct {
	Membership  Membership    `json:"membership"`
	DisplayName string        `json:"displayname,omitempty"`
	AvatarURL   id.ContentURI `json:"avatar_url,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	IsDirect    bool          `json:"is_direct,omitempty"`
}

func (c *MemberContent) EventType() Type { return TypeRoomMember }

func parseMemberContent(raw json.RawMessage) (Content, error) {
	membership, ok := gjsonString(raw, "membership")
	if !ok {
		return nil, newDecodeError("content.membership", "missing required field")
	}
	var c MemberContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, newDecodeError("content", err.Error())
	}
	// Unknown membership values are kept verbatim rather than rejected:
	// only the recognized enum members need to decode without error.
	c.Membership = Membership(membership)
	return &c, nil
}
