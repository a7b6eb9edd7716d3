package event

// RoomEventFilter restricts which events a filter section returns.
type RoomEventFilter struct {
	Limit                   int      `json:"limit,omitempty"`
	NotTypes                []Type   `json:"not_types,omitempty"`
	LazyLoadMembers         bool     `json:"lazy_load_members,omitempty"`
	IncludeRedundantMembers bool     `json:"include_redundant_members,omitempty"`
}

// RoomFilter is the "room" section of a sync filter: per-room timeline,
// state, and account data limits.
type RoomFilter struct {
	Timeline    RoomEventFilter `json:"timeline,omitempty"`
	State       RoomEventFilter `json:"state,omitempty"`
	AccountData RoomEventFilter `json:"account_data,omitempty"`
}

// FilterJSON is the body posted to POST /user/{userId}/filter and the
// value of the "filter" query parameter on GET /sync (the client caches
// the resulting filter_id and sends that instead of resending the body).
type FilterJSON struct {
	Room RoomFilter `json:"room,omitempty"`
}

// DefaultFilter is the filter csync registers on first sync: bound the
// timeline so a single /sync response stays small, matching the
// teacher's own default Syncer filter.
func DefaultFilter() *FilterJSON {
	return &FilterJSON{
		Room: RoomFilter{
			Timeline: RoomEventFilter{Limit: 50},
		},
	}
}
