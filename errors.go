package csync

import (
	"fmt"

	"go.mau.fi/csync/mxerr"
)

// ErrLoginRequired, ErrInvalidOperation and ErrInternal are re-exported from
// mxerr so callers of this package never need to import it directly; they
// are the same sentinel values state and timeline already raise.
var (
	ErrLoginRequired    = mxerr.ErrLoginRequired
	ErrInvalidOperation = mxerr.ErrInvalidOperation
	ErrInternal         = mxerr.ErrInternal
)

// RespError is the JSON shape of a Matrix error response, decoded off any
// non-2xx reply before it is turned into a MatrixAPIError.
type RespError struct {
	ErrCode    string `json:"errcode"`
	Err        string `json:"error"`
	SoftLogout bool   `json:"soft_logout,omitempty"`
}

func (e *RespError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Err)
}

// MatrixAPIError is returned when the homeserver responds with a
// recognizable Matrix error object.
type MatrixAPIError struct {
	ErrCode    string
	Err        string
	HTTPStatus int
	SoftLogout bool
}

func (e *MatrixAPIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", e.ErrCode, e.HTTPStatus, e.Err)
}

// HTTPError is returned when the homeserver responds with a non-2xx status
// that doesn't carry a decodable Matrix error body, e.g. a proxy error page.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}
