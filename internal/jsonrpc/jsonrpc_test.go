package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatchRequest(t *testing.T) {
	reqs, isBatch, err := ParseBatchRequest([]byte(`  {"jsonrpc":"2.0","method":"friend_bind","params":[100],"id":1}`))
	require.NoError(t, err)
	assert.False(t, isBatch)
	require.Len(t, reqs, 1)
	assert.Equal(t, MethodFriendBind, reqs[0].Method)
	require.NoError(t, reqs[0].Validate())

	reqs, isBatch, err = ParseBatchRequest([]byte(`[{"jsonrpc":"2.0","method":"counter_click","id":"a"},{"jsonrpc":"2.0","method":"friend_render","id":2}]`))
	require.NoError(t, err)
	assert.True(t, isBatch)
	assert.Len(t, reqs, 2)

	_, _, err = ParseBatchRequest([]byte(`[]`))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, _, err = ParseBatchRequest([]byte("  \n"))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, _, err = ParseBatchRequest([]byte(`{nope`))
	assert.Error(t, err)
}

func TestRequest_Validate(t *testing.T) {
	assert.Error(t, (&Request{JSONRPC: "1.0", Method: "x"}).Validate())
	assert.Error(t, (&Request{JSONRPC: Version}).Validate())
	assert.NoError(t, (&Request{JSONRPC: Version, Method: "x"}).Validate())
}

func TestRequest_GetFriendID(t *testing.T) {
	req := &Request{Params: json.RawMessage(`[300]`)}
	id, err := req.GetFriendID()
	require.NoError(t, err)
	assert.Equal(t, int64(300), id)

	_, err = (&Request{}).GetFriendID()
	assert.Error(t, err)

	_, err = (&Request{Params: json.RawMessage(`["abc"]`)}).GetFriendID()
	assert.Error(t, err)

	_, err = (&Request{Params: json.RawMessage(`{"id":1}`)}).GetFriendID()
	assert.Error(t, err)
}

func TestRequest_GetPresence(t *testing.T) {
	id, online, err := (&Request{Params: json.RawMessage(`[7, true]`)}).GetPresence()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.True(t, online)

	_, _, err = (&Request{Params: json.RawMessage(`[7]`)}).GetPresence()
	assert.Error(t, err)

	_, _, err = (&Request{Params: json.RawMessage(`[7, "yes"]`)}).GetPresence()
	assert.Error(t, err)
}

func TestIDRoundTrip(t *testing.T) {
	resp, err := NewResponse(NewIDString("abc"), "Online")
	require.NoError(t, err)
	data, err := resp.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":"Online","id":"abc"}`, string(data))

	errResp := NewErrorResponse(NewIDNull(), ErrParse)
	data, err = errResp.Bytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`, string(data))
}

func TestParseMessage(t *testing.T) {
	n, err := NewNotification(NotifyDocumentTitle, "s1", "You clicked 2 times")
	require.NoError(t, err)
	data, err := n.Bytes()
	require.NoError(t, err)

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.True(t, msg.IsNotification())
	assert.Equal(t, "s1", msg.Params.Session)
	var title string
	require.NoError(t, json.Unmarshal(msg.Params.Result, &title))
	assert.Equal(t, "You clicked 2 times", title)

	msg, err = ParseMessage([]byte(`{"jsonrpc":"2.0","result":true,"id":4}`))
	require.NoError(t, err)
	assert.False(t, msg.IsNotification())
	require.NotNil(t, msg.ID)
	assert.Equal(t, float64(4), msg.ID.Value())
}
