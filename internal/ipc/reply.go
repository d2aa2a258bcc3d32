package ipc

import (
	"bytes"
	"fmt"
)

// Status classifies one control exchange. Values below 100 travel on the wire;
// the rest are produced locally by Call.
type Status uint8

const (
	StatusOK             Status = 0
	StatusActionNotFound Status = 1
	StatusHandlerFailed  Status = 2

	StatusConnectFailed Status = 100
	StatusRecvFailed    Status = 101
)

// Reply text kept from the string-based protocol; every failure body contains ErrorMarker.
const (
	ErrorMarker         = "ERROR"
	ReplyActionNotFound = "ERROR: Action not found"
	ReplyConnectFailed  = "ERROR: Connect failed"
	ReplyRecvFailed     = "ERROR: Recv failed"
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusActionNotFound:
		return "action_not_found"
	case StatusHandlerFailed:
		return "handler_failed"
	case StatusConnectFailed:
		return "connect_failed"
	case StatusRecvFailed:
		return "recv_failed"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Reply is the typed result of one Call.
type Reply struct {
	Status Status
	Body   []byte
	// Err holds the local transport error for connect/recv failures.
	Err error
}

func (r Reply) OK() bool {
	return r.Status == StatusOK
}

// String renders the reply the way the string protocol did: the body on success,
// an "ERROR: ..." sentinel otherwise.
func (r Reply) String() string {
	switch r.Status {
	case StatusConnectFailed:
		return ReplyConnectFailed
	case StatusRecvFailed:
		return ReplyRecvFailed
	case StatusActionNotFound:
		if len(r.Body) == 0 {
			return ReplyActionNotFound
		}
	}
	return string(r.Body)
}

// Failed reports any failure, including an OK status whose body still carries the
// ERROR marker.
func (r Reply) Failed() bool {
	return !r.OK() || bytes.Contains(r.Body, []byte(ErrorMarker))
}

// IsErrorBody reports whether a handler reply uses the "ERROR..." convention.
func IsErrorBody(body []byte) bool {
	return bytes.HasPrefix(body, []byte(ErrorMarker))
}

func failedReply(status Status, err error) Reply {
	r := Reply{Status: status, Err: err}
	r.Body = []byte(r.String())
	return r
}
