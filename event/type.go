package event

// Type identifies the kind of an event or account data entry, e.g.
// "m.room.message". It is the outer discriminator used for property
// polymorphism: the Type of an Event decides how its sibling Content
// property is decoded.
type Type string

const (
	TypeRoomMessage    Type = "m.room.message"
	TypeRoomMember     Type = "m.room.member"
	TypeRoomRedaction  Type = "m.room.redaction"
	TypeRoomCreate     Type = "m.room.create"
	TypeRoomPowerLevels Type = "m.room.power_levels"
)

func (t Type) String() string {
	return string(t)
}

// MsgType identifies the sub-tag of an m.room.message content, e.g.
// "m.text". It is the inline discriminator: it lives on the same JSON
// object as the rest of the message content's fields.
type MsgType string

const (
	MsgText  MsgType = "m.text"
	MsgImage MsgType = "m.image"
)

func (t MsgType) String() string {
	return string(t)
}

// Membership is the membership state carried by an m.room.member event.
type Membership string

const (
	MembershipInvite Membership = "invite"
	MembershipJoin   Membership = "join"
	MembershipKnock  Membership = "knock"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
)

func (m Membership) String() string {
	return string(m)
}
