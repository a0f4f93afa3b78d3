package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"presencegofer/internal/chat"
	"presencegofer/internal/jsonrpc"
	"presencegofer/internal/session"
)

// Client represents a WebSocket client connection
type Client struct {
	conn      *websocket.Conn
	sessions  *session.Manager
	session   *session.Session
	publisher Publisher
	logger    zerolog.Logger

	sendChan  chan []byte
	closeChan chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, sessions *session.Manager, publisher Publisher, sendBufferSize int, logger zerolog.Logger) *Client {
	if sendBufferSize <= 0 {
		sendBufferSize = defaultSendBufferSize
	}
	return &Client{
		conn:      conn,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		sendChan:  make(chan []byte, sendBufferSize),
		closeChan: make(chan struct{}),
	}
}

// Run opens the client session and starts the read and write loops
func (c *Client) Run(ctx context.Context) {
	sess, err := c.sessions.GetOrCreate(c.conn, c.send)
	if err != nil {
		c.logger.Warn().Err(err).Msg("rejecting connection")
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.Close()
		return
	}
	c.session = sess
	c.logger.Debug().Str("session", sess.ID()).Msg("session opened")

	// Configure connection
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump(ctx)

	// Read loop (runs in current goroutine)
	c.readPump(ctx)
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		c.handleMessage(data)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeChan:
			return
		case data := <-c.sendChan:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message
func (c *Client) handleMessage(data []byte) {
	requests, isBatch, err := jsonrpc.ParseBatchRequest(data)
	if err != nil {
		if errors.Is(err, jsonrpc.ErrInvalidRequest) {
			c.sendResponse(jsonrpc.NewErrorResponse(jsonrpc.NewIDNull(), jsonrpc.ErrInvalidRequest))
			return
		}
		c.sendResponse(jsonrpc.NewErrorResponse(jsonrpc.NewIDNull(), jsonrpc.ErrParse))
		return
	}

	if !isBatch {
		c.sendResponse(c.dispatch(requests[0]))
		return
	}

	responses := make([]*jsonrpc.Response, len(requests))
	for i, req := range requests {
		responses[i] = c.dispatch(req)
	}
	c.sendBatchResponse(responses)
}

// dispatch runs one request against the session
func (c *Client) dispatch(req *jsonrpc.Request) *jsonrpc.Response {
	// null batch element
	if req == nil {
		return jsonrpc.NewErrorResponse(jsonrpc.NewIDNull(), jsonrpc.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, err.Error()))
	}

	switch req.Method {
	case jsonrpc.MethodFriendBind:
		return c.handleBind(req)
	case jsonrpc.MethodFriendUnbind:
		if err := c.session.Unbind(); err != nil {
			return serverError(req.ID, err)
		}
		return c.result(req.ID, true)
	case jsonrpc.MethodFriendRender:
		return c.result(req.ID, c.session.Render())
	case jsonrpc.MethodCounterClick:
		count, err := c.session.Click()
		if err != nil {
			return serverError(req.ID, err)
		}
		return c.result(req.ID, count)
	case jsonrpc.MethodPresenceSet:
		return c.handlePresence(req)
	default:
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrMethodNotFound)
	}
}

func (c *Client) handleBind(req *jsonrpc.Request) *jsonrpc.Response {
	friendID, err := req.GetFriendID()
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error()))
	}

	rendered, err := c.session.Bind(chat.FriendID(friendID))
	if err != nil {
		return serverError(req.ID, err)
	}

	c.logger.Debug().Int64("friendID", friendID).Str("status", rendered).Msg("friend bound")
	return c.result(req.ID, rendered)
}

func (c *Client) handlePresence(req *jsonrpc.Request) *jsonrpc.Response {
	if c.publisher == nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrMethodNotFound)
	}
	friendID, online, err := req.GetPresence()
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error()))
	}

	changed := c.publisher.SetStatus(chat.FriendID(friendID), online)
	c.logger.Debug().
		Int64("friendID", friendID).
		Bool("online", online).
		Bool("changed", changed).
		Msg("presence set")
	return c.result(req.ID, true)
}

func (c *Client) result(id jsonrpc.ID, v interface{}) *jsonrpc.Response {
	resp, err := jsonrpc.NewResponse(id, v)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to build response")
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrInternal)
	}
	return resp
}

func serverError(id jsonrpc.ID, err error) *jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, jsonrpc.NewError(jsonrpc.CodeServerError, err.Error()))
}

// sendResponse sends a JSON-RPC response
func (c *Client) sendResponse(resp *jsonrpc.Response) {
	data, err := resp.Bytes()
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal response")
		return
	}
	c.send(data)
}

// sendBatchResponse sends a batch of JSON-RPC responses
func (c *Client) sendBatchResponse(responses []*jsonrpc.Response) {
	data, err := jsonrpc.MarshalBatchResponse(responses)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal batch response")
		return
	}
	c.send(data)
}

// send queues data for the write loop. It never blocks.
func (c *Client) send(data []byte) {
	select {
	case c.sendChan <- data:
	case <-c.closeChan:
	default:
		// Channel full, drop message
		c.logger.Warn().Msg("send channel full, dropping message")
	}
}

// Close closes the client connection and its session
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.sessions.Remove(c.conn)
		c.conn.Close()
		c.logger.Debug().Msg("client closed")
	})
}
