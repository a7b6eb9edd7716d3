package csync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/rs/zerolog"
)

// transport is the low-level HTTP plumbing shared by Session (login,
// refresh) and the rest of the API client (every authenticated endpoint).
// It takes the bearer token per call instead of reading it off a struct
// field, since Session.ensureAccessToken must supply a fresh one at
// dispatch time.
type transport struct {
	httpClient *http.Client
	homeserver *url.URL
	userAgent  string
	log        zerolog.Logger
}

func newTransport(homeserver string, httpClient *http.Client, log zerolog.Logger) (*transport, error) {
	hsURL, err := url.Parse(homeserver)
	if err != nil {
		return nil, fmt.Errorf("parsing homeserver url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &transport{
		httpClient: httpClient,
		homeserver: hsURL,
		userAgent:  "csync/0.1.0",
		log:        log,
	}, nil
}

// buildURL joins parts onto the client-server v3 base path.
func (t *transport) buildURL(parts ...string) string {
	return t.buildURLWithQuery(parts, nil)
}

// buildURLWithQuery joins parts onto the client-server v3 base path and
// appends query as the URL's query string. query is a url.Values rather
// than a plain map so callers can repeat a key (e.g. join's via_servers,
// which the server expects as repeated server_name params) instead of
// silently losing all but the last value.
func (t *transport) buildURLWithQuery(parts []string, query url.Values) string {
	u, _ := url.Parse(t.homeserver.String())
	all := append([]string{"_matrix", "client", "v3"}, parts...)
	rawParts := make([]string, len(all))
	plainParts := make([]string, len(all))
	for i, p := range all {
		plainParts[i] = p
		rawParts[i] = url.PathEscape(p)
	}
	u.Path = path.Join(u.Path, path.Join(plainParts...))
	u.RawPath = path.Join(u.RawPath, path.Join(rawParts...))
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do issues one HTTP request. On 2xx, reqBody/resBody are marshalled and
// unmarshalled with encoding/json and nil is returned. On non-2xx, it tries
// to decode the body as RespError; if that yields a non-empty errcode it
// returns *MatrixAPIError, otherwise *HTTPError with the raw body.
func (t *transport) do(ctx context.Context, method, urlStr string, reqBody, resBody interface{}, bearer string) error {
	var body io.Reader
	var logBody string
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		logBody = string(raw)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", t.userAgent)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if logBody != "" {
		t.log.Debug().Str("method", method).Str("url", urlStr).Msg(logBody)
	} else {
		t.log.Debug().Str("method", method).Str("url", urlStr).Msg("")
	}

	res, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatching request: %w", err)
	}
	defer res.Body.Close()
	contents, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if res.StatusCode/100 != 2 {
		var respErr RespError
		if jsonErr := json.Unmarshal(contents, &respErr); jsonErr == nil && respErr.ErrCode != "" {
			return &MatrixAPIError{
				ErrCode:    respErr.ErrCode,
				Err:        respErr.Err,
				HTTPStatus: res.StatusCode,
				SoftLogout: respErr.SoftLogout,
			}
		}
		return &HTTPError{StatusCode: res.StatusCode, Body: string(contents)}
	}

	if resBody != nil && len(contents) > 0 {
		if err := json.Unmarshal(contents, resBody); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}
