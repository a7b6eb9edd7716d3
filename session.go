package csync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mau.fi/csync/id"
	"go.mau.fi/csync/mxerr"
)

// LoginData is the persistence-boundary record for a login: the
// host application may save this after login/refresh and feed it back into
// NewClient to resume a session without csync ever touching disk itself.
type LoginData struct {
	Homeserver   string     `json:"homeserver"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	UserID       id.UserID  `json:"user_id,omitempty"`
	DeviceID     string     `json:"device_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Session holds the credentials and expiry bookkeeping for one Matrix
// login, and owns the login/refresh/retry machinery. It does its own
// locking so it can be consulted from concurrent API calls without
// depending on Client's lock: other operations rely only on Session's own
// token synchronization.
type Session struct {
	transport *transport

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	userID       id.UserID
	deviceID     string
	expiresAt    time.Time // zero value means "no known expiry"
	filterID     string
}

func newSession(t *transport, data LoginData) *Session {
	s := &Session{
		transport:    t,
		accessToken:  data.AccessToken,
		refreshToken: data.RefreshToken,
		userID:       data.UserID,
		deviceID:     data.DeviceID,
	}
	if data.ExpiresAt != nil {
		s.expiresAt = *data.ExpiresAt
	}
	return s
}

// ToLoginData snapshots the session into its persistence-boundary form.
func (s *Session) ToLoginData() LoginData {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := LoginData{
		Homeserver:   s.transport.homeserver.String(),
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		UserID:       s.userID,
		DeviceID:     s.deviceID,
	}
	if !s.expiresAt.IsZero() {
		t := s.expiresAt
		data.ExpiresAt = &t
	}
	return data
}

// LoggedIn reports whether the session currently holds an access token.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != ""
}

// Expired reports whether the session is logged in, has a known expiry, and
// that expiry has passed.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiredLocked()
}

func (s *Session) expiredLocked() bool {
	return s.accessToken != "" && !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}

// UserID returns the user id set by login, or "" before login completes.
func (s *Session) UserID() id.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// DeviceID returns the device id set by login.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

type reqIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type reqLogin struct {
	Type                     string         `json:"type"`
	Identifier               *reqIdentifier `json:"identifier,omitempty"`
	Password                 string         `json:"password,omitempty"`
	Token                    string         `json:"token,omitempty"`
	InitialDeviceDisplayName string         `json:"initial_device_display_name,omitempty"`
	DeviceID                 string         `json:"device_id,omitempty"`
}

type respLogin struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	UserID       id.UserID `json:"user_id"`
	DeviceID     string    `json:"device_id"`
	ExpiresInMs  *int64    `json:"expires_in_ms,omitempty"`
}

// PasswordLogin performs an m.login.password login. initialDisplayName and
// deviceID are optional.
func (s *Session) PasswordLogin(ctx context.Context, user, password, initialDisplayName, deviceID string) error {
	req := reqLogin{
		Type:                     "m.login.password",
		Identifier:               &reqIdentifier{Type: "m.id.user", User: user},
		Password:                 password,
		InitialDeviceDisplayName: initialDisplayName,
		DeviceID:                 deviceID,
	}
	return s.login(ctx, req)
}

// TokenLogin performs an m.login.token login.
func (s *Session) TokenLogin(ctx context.Context, token, initialDisplayName, deviceID string) error {
	req := reqLogin{
		Type:                     "m.login.token",
		Token:                    token,
		InitialDeviceDisplayName: initialDisplayName,
		DeviceID:                 deviceID,
	}
	return s.login(ctx, req)
}

func (s *Session) login(ctx context.Context, req reqLogin) error {
	var resp respLogin
	url := s.transport.buildURL("login")
	if err := s.transport.do(ctx, "POST", url, &req, &resp, ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.userID = resp.UserID
	s.deviceID = resp.DeviceID
	s.expiresAt = expiryFromMs(resp.ExpiresInMs)
	return nil
}

func expiryFromMs(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.Now().Add(time.Duration(*ms) * time.Millisecond)
}

type reqRefresh struct {
	RefreshToken string `json:"refresh_token"`
}

type respRefresh struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresInMs  *int64 `json:"expires_in_ms,omitempty"`
}

// Refresh exchanges the refresh token for a new access token.
// It fails with ErrLoginRequired if there is no refresh token to use.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()
	if refreshToken == "" {
		return mxerr.ErrLoginRequired
	}

	var resp respRefresh
	url := s.transport.buildURL("refresh")
	req := reqRefresh{RefreshToken: refreshToken}
	if err := s.transport.do(ctx, "POST", url, &req, &resp, ""); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		s.refreshToken = resp.RefreshToken
	}
	s.expiresAt = expiryFromMs(resp.ExpiresInMs)
	return nil
}

// ensureAccessToken returns the current access token, refreshing first if
// the session is expired, and failing ErrLoginRequired if not logged in.
// Every authenticated request calls this at dispatch time rather than
// caching a token earlier.
func (s *Session) ensureAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	loggedIn := s.accessToken != ""
	expired := s.expiredLocked()
	s.mu.Unlock()

	if !loggedIn {
		return "", mxerr.ErrLoginRequired
	}
	if expired {
		if err := s.Refresh(ctx); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, nil
}

func (s *Session) clearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = ""
}

func (s *Session) filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterID
}

func (s *Session) setFilter(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterID = id
}

// dispatchOnce performs one authenticated attempt, handling the
// soft-logout protocol: on M_UNKNOWN_TOKEN with
// soft_logout=true it refreshes and signals the retry wrapper via
// mxerr's retry sentinel; on soft_logout=false (or absent) it clears
// tokens and fails LoginRequired; every other error propagates unchanged.
func (s *Session) dispatchOnce(ctx context.Context, method, url string, reqBody, resBody interface{}) error {
	token, err := s.ensureAccessToken(ctx)
	if err != nil {
		return err
	}
	err = s.transport.do(ctx, method, url, reqBody, resBody, token)
	if err == nil {
		return nil
	}
	var apiErr *MatrixAPIError
	if errors.As(err, &apiErr) && apiErr.ErrCode == "M_UNKNOWN_TOKEN" {
		if apiErr.SoftLogout {
			if rerr := s.Refresh(ctx); rerr != nil {
				return rerr
			}
			return mxerr.NewRetryRequested()
		}
		s.clearTokens()
		return mxerr.ErrLoginRequired
	}
	return err
}

// dispatch wraps dispatchOnce in an unbounded retry loop: every
// user-visible API call re-executes the underlying request each time a
// soft logout signals a refresh-and-retry. The loop
// can only continue via a successful refresh, and a subsequent
// M_UNKNOWN_TOKEN without soft_logout always terminates it with
// LoginRequired. The number of attempts is not capped: a homeserver that
// answers every attempt with a soft logout and accepts every refresh keeps
// the loop going.
func (s *Session) dispatch(ctx context.Context, method, url string, reqBody, resBody interface{}) error {
	for {
		err := s.dispatchOnce(ctx, method, url, reqBody, resBody)
		if err != nil && mxerr.RetryRequested(err) {
			continue
		}
		return err
	}
}
