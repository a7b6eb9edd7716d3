package id_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mau.fi/csync/id"
)

func TestUserID_Homeserver(t *testing.T) {
	assert.Equal(t, "example.org", id.UserID("@alice:example.org").Homeserver())
	assert.Equal(t, "", id.UserID("alice").Homeserver())
}

func TestParseContentURI_RoundTrip(t *testing.T) {
	mxc, err := id.ParseContentURI("mxc://example.org/abc123")
	require.NoError(t, err)
	assert.Equal(t, id.ContentURI{Homeserver: "example.org", FileID: "abc123"}, mxc)
	assert.Equal(t, "mxc://example.org/abc123", mxc.String())
}

func TestParseContentURI_Invalid(t *testing.T) {
	cases := []string{
		"",
		"example.org/abc123",
		"mxc://example.org",
		"mxc://example.org/abc/def",
		"mxc:///abc123",
		"mxc://example.org/",
	}
	for _, c := range cases {
		_, err := id.ParseContentURI(c)
		assert.ErrorIsf(t, err, id.ErrInvalidContentURI, "input: %q", c)
	}
}

func TestContentURI_JSONRoundTrip(t *testing.T) {
	type wrapper struct {
		URL id.ContentURI `json:"url"`
	}
	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"url":"mxc://example.org/xyz"}`), &w))
	assert.Equal(t, "example.org", w.URL.Homeserver)
	assert.Equal(t, "xyz", w.URL.FileID)

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"mxc://example.org/xyz"}`, string(out))
}
