// Package id contains the opaque identifier types used throughout csync:
// user, room and event ids, and mxc:// content URIs.
package id

import (
	"fmt"
	"strings"
)

// UserID is a Matrix user ID, e.g. "@alice:example.org".
type UserID string

// Homeserver returns the server name portion of the user ID, i.e. the part
// after the colon. It does not validate the ID.
func (u UserID) Homeserver() string {
	_, domain, _ := strings.Cut(string(u), ":")
	return domain
}

func (u UserID) String() string {
	return string(u)
}

// RoomID is a Matrix room ID, e.g. "!abc123:example.org".
type RoomID string

func (r RoomID) String() string {
	return string(r)
}

// RoomAlias is a room alias, e.g. "#general:example.org".
type RoomAlias string

func (r RoomAlias) String() string {
	return string(r)
}

// EventID is a Matrix event ID, e.g. "$abc123".
type EventID string

func (e EventID) String() string {
	return string(e)
}

// ContentURI is a parsed mxc:// URI, e.g. mxc://example.org/abc123.
//
// Only the two-component form is accepted: exactly one slash after the
// authority. Anything else fails to parse.
type ContentURI struct {
	Homeserver string
	FileID     string
}

// ParseContentURI parses a string of the form mxc://<server_name>/<media_id>.
func ParseContentURI(uri string) (mxc ContentURI, err error) {
	if !strings.HasPrefix(uri, "mxc://") {
		return ContentURI{}, fmt.Errorf("%w: missing mxc:// scheme", ErrInvalidContentURI)
	}
	rest := strings.TrimPrefix(uri, "mxc://")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ContentURI{}, fmt.Errorf("%w: expected exactly one slash after the server name", ErrInvalidContentURI)
	}
	return ContentURI{Homeserver: parts[0], FileID: parts[1]}, nil
}

// ErrInvalidContentURI is returned by ParseContentURI when the input is not
// a well-formed mxc:// URI.
var ErrInvalidContentURI = fmt.Errorf("invalid matrix content URI")

func (m ContentURI) String() string {
	if m.Homeserver == "" && m.FileID == "" {
		return ""
	}
	return fmt.Sprintf("mxc://%s/%s", m.Homeserver, m.FileID)
}

func (m ContentURI) IsEmpty() bool {
	return m.Homeserver == "" && m.FileID == ""
}

func (m ContentURI) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ContentURI) UnmarshalText(raw []byte) error {
	if len(raw) == 0 {
		*m = ContentURI{}
		return nil
	}
	parsed, err := ParseContentURI(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
