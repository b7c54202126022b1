package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// User-facing messages.
const (
	MsgConnection     = "เกิดข้อผิดพลาดในการเชื่อมต่อ"
	MsgNoResponse     = "ไม่สามารถเชื่อมต่อกับเซิร์ฟเวอร์ได้"
	MsgRequest        = "เกิดข้อผิดพลาดในการส่งคำขอ"
	MsgSessionExpired = "หมดเวลาเข้าสู่ระบบ กรุณาเข้าสู่ระบบใหม่อีกครั้ง"
)

// Kind classifies a gateway failure.
type Kind int

const (
	KindServer Kind = iota + 1
	KindAuth
	KindNetwork
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindNetwork:
		return "network"
	case KindRequest:
		return "request"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the only error type the gateway returns. Error() is the message
// to show the user and nothing else.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

// Sentinels for errors.Is.
var (
	ErrServer         = &Error{Kind: KindServer}
	ErrAuth           = &Error{Kind: KindAuth}
	ErrNetwork        = &Error{Kind: KindNetwork}
	ErrRequest        = &Error{Kind: KindRequest}
	ErrSessionExpired = &Error{Kind: KindAuth, Message: MsgSessionExpired}
)

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Status and Message when the target sets them.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Status != 0 && t.Status != e.Status {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func httpError(status int, body []byte) *Error {
	kind := KindServer
	if status == http.StatusUnauthorized {
		kind = KindAuth
	}
	msg := messageFrom(body)
	if msg == "" {
		msg = MsgConnection
	}
	return &Error{Kind: kind, Status: status, Message: msg}
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Message: MsgNoResponse, Err: err}
}

func requestError(err error) *Error {
	msg := MsgRequest
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &Error{Kind: KindRequest, Message: msg, Err: err}
}

func sessionExpired() *Error {
	return &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: MsgSessionExpired}
}

// messageFrom pulls "message" out of an error body. Validation failures send
// a list of messages.
func messageFrom(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || len(payload.Message) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(payload.Message, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if json.Unmarshal(payload.Message, &list) == nil {
		return strings.Join(list, ", ")
	}
	return ""
}
