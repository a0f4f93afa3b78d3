package jsonrpc

import "encoding/json"

// Version is the JSON-RPC version
const Version = "2.0"

// Standard JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// Server error codes range: -32000 to -32099
	CodeServerError = -32000
)

// Methods served on the WebSocket
const (
	MethodFriendBind   = "friend_bind"
	MethodFriendUnbind = "friend_unbind"
	MethodFriendRender = "friend_render"
	MethodCounterClick = "counter_click"
	MethodPresenceSet  = "presence_set"
)

// Notification methods pushed to clients
const (
	NotifyFriendStatus  = "friend_status"
	NotifyDocumentTitle = "document_title"
)

// ID represents a JSON-RPC request/response ID
// It can be a string, number, or null
type ID struct {
	value interface{}
}

// NewIDString creates an ID from a string
func NewIDString(s string) ID {
	return ID{value: s}
}

// NewIDInt creates an ID from an integer
func NewIDInt(n int64) ID {
	return ID{value: n}
}

// NewIDNull creates a null ID
func NewIDNull() ID {
	return ID{value: nil}
}

// IsNull returns true if the ID is null
func (id ID) IsNull() bool {
	return id.value == nil
}

// Value returns the underlying value
func (id ID) Value() interface{} {
	return id.value
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &id.value)
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Common errors
var (
	ErrParse          = NewError(CodeParseError, "Parse error")
	ErrInvalidRequest = NewError(CodeInvalidRequest, "Invalid Request")
	ErrMethodNotFound = NewError(CodeMethodNotFound, "Method not found")
	ErrInvalidParams  = NewError(CodeInvalidParams, "Invalid params")
	ErrInternal       = NewError(CodeInternalError, "Internal error")
)

// Notification is a server push without an ID
type Notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

// NotificationParams carries the session the push belongs to and its payload
type NotificationParams struct {
	Session string          `json:"session"`
	Result  json.RawMessage `json:"result"`
}

// NewNotification creates a notification, marshaling result
func NewNotification(method, session string, result interface{}) (*Notification, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Notification{
		JSONRPC: Version,
		Method:  method,
		Params: NotificationParams{
			Session: session,
			Result:  raw,
		},
	}, nil
}

// Bytes returns the notification as JSON bytes
func (n *Notification) Bytes() ([]byte, error) {
	return json.Marshal(n)
}

// RenderResult is the result of friend_render
type RenderResult struct {
	Friend *int64 `json:"friendId,omitempty"`
	Status string `json:"status"`
	Title  string `json:"title"`
	Count  int    `json:"count"`
}
