package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Kind classifies a failed request.
type Kind int

const (
	// KindOther covers malformed responses, RPC-level errors and anything not worth retrying.
	KindOther Kind = iota
	// KindTransient covers connection resets and timeouts. Requests failing this way are retried.
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	default:
		return "other"
	}
}

// Error is returned by Client.Send for every failed request.
type Error struct {
	Kind     Kind
	Method   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s failed after %d attempt(s) (%s): %v", e.Method, e.Attempts, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RemoteError is the error object of a JSON-RPC response.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("remote error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// KindOf returns the Kind of err, KindOther when err is not an *Error.
func KindOf(err error) Kind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	return KindOther
}

// IsTransient reports whether a transport error is a connection reset or a timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
