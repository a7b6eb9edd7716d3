package csync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"go.mau.fi/csync"
)

func newTestClient(t *testing.T, handler http.Handler) *csync.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := csync.NewClient(csync.LoginData{Homeserver: srv.URL}, srv.Client(), zerolog.Nop())
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// TestPasswordLogin_SetsTokens covers scenario S1: a password login stores
// the returned access token, refresh token, and user id on the session.
func TestPasswordLogin_SetsTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "m.login.password", body["type"])
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"access_token":  "tok-1",
			"refresh_token": "refresh-1",
			"user_id":       "@alice:example.org",
			"device_id":     "DEV1",
		})
	})
	client := newTestClient(t, mux)

	err := client.PasswordLogin(context.Background(), "alice", "hunter2", "test device", "")
	require.NoError(t, err)
	require.True(t, client.LoggedIn())
	require.Equal(t, "@alice:example.org", string(client.UserID()))
	require.Equal(t, "DEV1", client.DeviceID())

	data := client.ToLoginData()
	require.Equal(t, "tok-1", data.AccessToken)
	require.Equal(t, "refresh-1", data.RefreshToken)
}

// TestSoftLogout_RefreshesAndRetries covers scenario S2 and invariant 6: a
// request that fails with a soft logout triggers a token refresh and the
// original call is retried with the refreshed token, without surfacing an
// error to the caller.
func TestSoftLogout_RefreshesAndRetries(t *testing.T) {
	var joinAttempts int32
	var refreshed int32

	mux := http.NewServeMux()
	mux.HandleFunc("/_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"access_token":  "stale-token",
			"refresh_token": "refresh-1",
			"user_id":       "@alice:example.org",
			"device_id":     "DEV1",
		})
	})
	mux.HandleFunc("/_matrix/client/v3/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshed, 1)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"access_token": "fresh-token",
		})
	})
	mux.HandleFunc("/_matrix/client/v3/join/!room:example.org", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&joinAttempts, 1)
		auth := r.Header.Get("Authorization")
		if n == 1 {
			require.Equal(t, "Bearer stale-token", auth)
			writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{
				"errcode":     "M_UNKNOWN_TOKEN",
				"error":       "access token expired",
				"soft_logout": true,
			})
			return
		}
		require.Equal(t, "Bearer fresh-token", auth)
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"room_id": "!room:example.org"})
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.PasswordLogin(context.Background(), "alice", "hunter2", "", ""))

	roomID, err := client.JoinRoom(context.Background(), "!room:example.org", "", nil)
	require.NoError(t, err)
	require.Equal(t, "!room:example.org", string(roomID))
	require.EqualValues(t, 2, atomic.LoadInt32(&joinAttempts))
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshed))
}

// TestSync_ConcurrentCallsShareOneRequest covers invariant 5: two concurrent
// Sync calls against the same client result in exactly one /sync HTTP
// request, with the second call returning only once the first completes.
func TestSync_ConcurrentCallsShareOneRequest(t *testing.T) {
	var syncRequests int32
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"access_token": "tok-1",
			"user_id":      "@alice:example.org",
			"device_id":    "DEV1",
		})
	})
	mux.HandleFunc("/_matrix/client/v3/user/@alice:example.org/filter", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"filter_id": "f1"})
	})
	mux.HandleFunc("/_matrix/client/v3/sync", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&syncRequests, 1)
		<-release
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"next_batch": "batch1"})
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.PasswordLogin(context.Background(), "alice", "hunter2", "", ""))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = client.Sync(context.Background(), 1000, "")
	}()
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		errs[1] = client.Sync(context.Background(), 1000, "")
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.EqualValues(t, 1, atomic.LoadInt32(&syncRequests))
	require.Equal(t, "batch1", client.NextBatch())
}

// TestSync_RoomStateMatchesTimelineTail covers invariant 1: a joined
// room's state always equals its timeline's last event's state once the
// timeline has any event.
func TestSync_RoomStateMatchesTimelineTail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/_matrix/client/v3/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"access_token": "tok-1",
			"user_id":      "@alice:example.org",
			"device_id":    "DEV1",
		})
	})
	mux.HandleFunc("/_matrix/client/v3/user/@alice:example.org/filter", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{"filter_id": "f1"})
	})
	mux.HandleFunc("/_matrix/client/v3/sync", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"next_batch": "batch1",
			"rooms": map[string]interface{}{
				"join": map[string]interface{}{
					"!room:example.org": map[string]interface{}{
						"state": map[string]interface{}{"events": []interface{}{}},
						"timeline": map[string]interface{}{
							"events": []interface{}{
								map[string]interface{}{
									"type":             "m.room.member",
									"state_key":        "@alice:example.org",
									"sender":           "@alice:example.org",
									"event_id":         "$join1",
									"origin_server_ts": 1000,
									"content":          map[string]interface{}{"membership": "join"},
								},
							},
							"limited": false,
						},
					},
				},
			},
		})
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.PasswordLogin(context.Background(), "alice", "hunter2", "", ""))
	require.NoError(t, client.Sync(context.Background(), 1000, ""))

	rooms := client.JoinedRooms()
	room, ok := rooms["!room:example.org"]
	require.True(t, ok)

	last, err := room.Timeline.Last()
	require.NoError(t, err)
	ews, err := last.EventWithState()
	require.NoError(t, err)
	require.True(t, room.State.Equal(ews.State))
}
