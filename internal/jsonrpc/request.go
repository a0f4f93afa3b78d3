package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Request represents a JSON-RPC request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      ID              `json:"id"`
}

// Validate checks if the request is valid
func (r *Request) Validate() error {
	if r.JSONRPC != Version {
		return fmt.Errorf("invalid jsonrpc version: %s", r.JSONRPC)
	}
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

// ParseRequest parses a single JSON-RPC request from bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// ParseBatchRequest parses a batch of JSON-RPC requests
// Returns a slice of requests, or a single request if not a batch
func ParseBatchRequest(data []byte) ([]*Request, bool, error) {
	// Check if it's an array (batch) or object (single)
	data = trimWhitespace(data)
	if len(data) == 0 {
		return nil, false, ErrInvalidRequest
	}

	if data[0] == '[' {
		var requests []*Request
		if err := json.Unmarshal(data, &requests); err != nil {
			return nil, true, fmt.Errorf("failed to parse batch request: %w", err)
		}
		if len(requests) == 0 {
			return nil, true, ErrInvalidRequest
		}
		return requests, true, nil
	}

	req, err := ParseRequest(data)
	if err != nil {
		return nil, false, err
	}
	return []*Request{req}, false, nil
}

// NewRequest creates a new JSON-RPC request
func NewRequest(method string, params interface{}, id ID) (*Request, error) {
	req := &Request{
		JSONRPC: Version,
		Method:  method,
		ID:      id,
	}

	if params != nil {
		paramsBytes, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = paramsBytes
	}

	return req, nil
}

// Bytes returns the request as JSON bytes
func (r *Request) Bytes() ([]byte, error) {
	return json.Marshal(r)
}

// trimWhitespace removes leading whitespace from byte slice
func trimWhitespace(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return data[i:]
		}
	}
	return data[len(data):]
}

// positional decodes the params array
func (r *Request) positional() ([]json.RawMessage, error) {
	if len(r.Params) == 0 {
		return nil, nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return nil, fmt.Errorf("invalid params format: %w", err)
	}
	return params, nil
}

// GetFriendID extracts the friend ID from [friendId, ...] params
func (r *Request) GetFriendID() (int64, error) {
	params, err := r.positional()
	if err != nil {
		return 0, err
	}
	if len(params) == 0 {
		return 0, fmt.Errorf("friend ID is required")
	}

	var id int64
	if err := json.Unmarshal(params[0], &id); err != nil {
		return 0, fmt.Errorf("invalid friend ID: %w", err)
	}
	return id, nil
}

// GetPresence extracts [friendId, online] params
func (r *Request) GetPresence() (int64, bool, error) {
	id, err := r.GetFriendID()
	if err != nil {
		return 0, false, err
	}

	params, _ := r.positional()
	if len(params) < 2 {
		return 0, false, fmt.Errorf("online flag is required")
	}

	var online bool
	if err := json.Unmarshal(params[1], &online); err != nil {
		return 0, false, fmt.Errorf("invalid online flag: %w", err)
	}
	return id, online, nil
}
