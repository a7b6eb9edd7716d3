package event

import (
	"encoding/json"

	"go.mau.fi/csync/id"
)

// NotificationPowerLevels is the nested "notifications" block of
// m.room.power_levels.
type NotificationPowerLevels struct {
	Room int `json:"room,omitempty"`
}

// PowerLevelsContent is the content of an m.room.power_levels state event.
type PowerLevelsContent struct {
	Ban           int                      `json:"ban,omitempty"`
	Events        map[Type]int             `json:"events,omitempty"`
	EventsDefault int                      `json:"events_default,omitempty"`
	Invite        int                      `json:"invite,omitempty"`
	Kick          int                      `json:"kick,omitempty"`
	Notifications *NotificationPowerLevels `json:"notifications,omitempty"`
	Redact        int                      `json:"redact,omitempty"`
	StateDefault  int                      `json:"state_default,omitempty"`
	Users         map[id.UserID]int        `json:"users,omitempty"`
	UsersDefault  int                      `json:"users_default,omitempty"`
}

func (c *PowerLevelsContent) EventType() Type { return TypeRoomPowerLevels }

func parsePowerLevelsContent(raw json.RawMessage) (Content, error) {
	var c PowerLevelsContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, newDecodeError("content", err.Error())
	}
	return &c, nil
}
