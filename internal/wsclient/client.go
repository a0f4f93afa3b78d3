package wsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"presencegofer/internal/chat"
	"presencegofer/internal/jsonrpc"
)

// Client keeps one WebSocket connection to a presence server. It multiplexes
// requests and server pushes on that connection and, when the connection
// drops, reconnects with exponential backoff and binds the current friend again.
type Client struct {
	opts   Options
	logger zerolog.Logger

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	pending   map[int64]chan *jsonrpc.Message
	pendingMu sync.Mutex
	reqID     int64

	friendMu  sync.Mutex
	friend    chat.FriendID
	hasFriend bool

	handlersMu    sync.RWMutex
	onStatus      StatusHandler
	onTitle       TitleHandler
	onReconnected func()

	eventChan  chan *jsonrpc.Message
	reconnects int64

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates an unconnected client
func New(opts Options, logger zerolog.Logger) *Client {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:      opts,
		logger:    logger.With().Str("component", "wsclient").Str("url", opts.URL).Logger(),
		pending:   make(map[int64]chan *jsonrpc.Message),
		eventChan: make(chan *jsonrpc.Message, 256),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetStatusHandler sets the handler for friend_status pushes
func (c *Client) SetStatusHandler(h StatusHandler) {
	c.handlersMu.Lock()
	c.onStatus = h
	c.handlersMu.Unlock()
}

// SetTitleHandler sets the handler for document_title pushes
func (c *Client) SetTitleHandler(h TitleHandler) {
	c.handlersMu.Lock()
	c.onTitle = h
	c.handlersMu.Unlock()
}

// SetOnReconnected sets a hook called after every successful reconnect
func (c *Client) SetOnReconnected(fn func()) {
	c.handlersMu.Lock()
	c.onReconnected = fn
	c.handlersMu.Unlock()
}

// Connect dials the server and starts the reader
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.ctx.Done():
		return ErrClientClosed
	default:
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.connMu.Unlock()
		return nil
	}
	c.connMu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.logger.Info().Msg("WebSocket connected")

	c.wg.Add(1)
	go c.dispatchWorker()
	c.wg.Add(1)
	go c.readLoop()
	if c.opts.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}
	return nil
}

// Connected returns true if the WebSocket connection is established
func (c *Client) Connected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil
}

// Reconnects returns the number of successful reconnects
func (c *Client) Reconnects() int64 {
	return atomic.LoadInt64(&c.reconnects)
}

// Friend returns the friend the client is bound to
func (c *Client) Friend() (chat.FriendID, bool) {
	c.friendMu.Lock()
	defer c.friendMu.Unlock()
	return c.friend, c.hasFriend
}

// Bind points the server session at a friend and returns the rendered status.
// The friend is bound again after every reconnect.
func (c *Client) Bind(ctx context.Context, id chat.FriendID) (string, error) {
	var rendered string
	if err := c.callInto(ctx, jsonrpc.MethodFriendBind, []int64{int64(id)}, &rendered); err != nil {
		return "", err
	}

	c.friendMu.Lock()
	c.friend = id
	c.hasFriend = true
	c.friendMu.Unlock()
	return rendered, nil
}

// Unbind drops the friend subscription of the server session
func (c *Client) Unbind(ctx context.Context) error {
	var ok bool
	if err := c.callInto(ctx, jsonrpc.MethodFriendUnbind, nil, &ok); err != nil {
		return err
	}

	c.friendMu.Lock()
	c.hasFriend = false
	c.friendMu.Unlock()
	return nil
}

// Render returns the server side component output
func (c *Client) Render(ctx context.Context) (jsonrpc.RenderResult, error) {
	var res jsonrpc.RenderResult
	err := c.callInto(ctx, jsonrpc.MethodFriendRender, nil, &res)
	return res, err
}

// Click increments the session counter and returns the new count
func (c *Client) Click(ctx context.Context) (int, error) {
	var count int
	err := c.callInto(ctx, jsonrpc.MethodCounterClick, nil, &count)
	return count, err
}

// SetPresence publishes the presence of a friend
func (c *Client) SetPresence(ctx context.Context, id chat.FriendID, online bool) error {
	var ok bool
	return c.callInto(ctx, jsonrpc.MethodPresenceSet, []interface{}{int64(id), online}, &ok)
}

func (c *Client) callInto(ctx context.Context, method string, params interface{}, out interface{}) error {
	msg, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if msg.Error != nil {
		return fmt.Errorf("%s: %w", method, msg.Error)
	}
	if err := json.Unmarshal(msg.Result, out); err != nil {
		return fmt.Errorf("failed to parse %s result: %w", method, err)
	}
	return nil
}

// Call sends a request and waits for its response
func (c *Client) Call(ctx context.Context, method string, params interface{}) (*jsonrpc.Message, error) {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return nil, ErrNotConnected
	}

	reqID := atomic.AddInt64(&c.reqID, 1)
	respChan := make(chan *jsonrpc.Message, 1)

	req, err := jsonrpc.NewRequest(method, params, jsonrpc.NewIDInt(reqID))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	reqBytes, err := req.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.pendingMu.Lock()
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, reqBytes)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.dropPending(reqID)
		return nil, fmt.Errorf("failed to send request: %w", writeErr)
	}

	select {
	case resp := <-respChan:
		if resp == nil {
			return nil, ErrConnectionClosed
		}
		return resp, nil
	case <-ctx.Done():
		c.dropPending(reqID)
		return nil, ctx.Err()
	case <-c.ctx.Done():
		c.dropPending(reqID)
		return nil, ErrClientClosed
	}
}

// Close closes the connection and stops all goroutines. Calling it again is a no-op.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.logger.Info().Msg("WebSocket closing")
		c.cancel()

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		c.failPending()
		c.wg.Wait()
		c.logger.Info().Msg("WebSocket disconnected")
	})
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: DefaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect WebSocket: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		return nil
	})
	return conn, nil
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()
			if conn == nil {
				continue
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("ping write failed")
			}
		}
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}

			c.logger.Warn().Err(err).Msg("WebSocket connection lost, reconnecting")
			if c.reconnect() {
				continue
			}
			return
		}

		c.dispatchMessage(data)
	}
}

func (c *Client) dispatchMessage(data []byte) {
	msg, err := jsonrpc.ParseMessage(data)
	if err != nil {
		c.logger.Warn().Err(err).Int("len", len(data)).Msg("ws message parse error")
		return
	}

	if msg.IsNotification() {
		select {
		case c.eventChan <- msg:
		default:
			c.logger.Warn().Str("method", msg.Method).Msg("event queue full, dropping notification")
		}
		return
	}

	if msg.ID == nil {
		return
	}
	var reqID int64
	switch v := msg.ID.Value().(type) {
	case float64:
		reqID = int64(v)
	case int64:
		reqID = v
	default:
		return
	}

	c.pendingMu.Lock()
	ch, exists := c.pending[reqID]
	if exists {
		delete(c.pending, reqID)
	}
	c.pendingMu.Unlock()

	if exists {
		select {
		case ch <- msg:
		default:
		}
	}
}

// dispatchWorker delivers notifications in arrival order, off the read loop
func (c *Client) dispatchWorker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.eventChan:
			c.handleNotification(msg)
		}
	}
}

func (c *Client) handleNotification(msg *jsonrpc.Message) {
	c.handlersMu.RLock()
	onStatus, onTitle := c.onStatus, c.onTitle
	c.handlersMu.RUnlock()

	switch msg.Method {
	case jsonrpc.NotifyFriendStatus:
		if onStatus == nil {
			return
		}
		var status chat.Status
		if err := json.Unmarshal(msg.Params.Result, &status); err != nil {
			c.logger.Warn().Err(err).Msg("invalid friend_status payload")
			return
		}
		onStatus(status)
	case jsonrpc.NotifyDocumentTitle:
		if onTitle == nil {
			return
		}
		var title string
		if err := json.Unmarshal(msg.Params.Result, &title); err != nil {
			c.logger.Warn().Err(err).Msg("invalid document_title payload")
			return
		}
		onTitle(title)
	default:
		c.logger.Debug().Str("method", msg.Method).Msg("unhandled notification")
	}
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	// retry until Close
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, c.ctx)
}

// reconnect replaces the lost connection. It returns false once the client is closed.
func (c *Client) reconnect() bool {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
	c.failPending()

	var conn *websocket.Conn
	op := func() error {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		defer cancel()
		var err error
		conn, err = c.dial(ctx)
		return err
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn().Err(err).Dur("nextRetry", next).Msg("WebSocket reconnection failed, will retry")
	}

	if err := backoff.RetryNotify(op, c.newBackOff(), notify); err != nil {
		c.logger.Info().Err(err).Msg("WebSocket reconnection stopped")
		return false
	}

	c.connMu.Lock()
	select {
	case <-c.ctx.Done():
		c.connMu.Unlock()
		conn.Close()
		return false
	default:
	}
	c.conn = conn
	c.connMu.Unlock()

	atomic.AddInt64(&c.reconnects, 1)
	c.logger.Info().Msg("WebSocket reconnected successfully")

	// The read loop must be running to receive the bind response
	c.wg.Add(1)
	go c.rebind()
	return true
}

func (c *Client) rebind() {
	defer c.wg.Done()

	if id, ok := c.Friend(); ok {
		ctx, cancel := context.WithTimeout(c.ctx, DefaultRebindTimeout)
		rendered, err := c.Bind(ctx, id)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Int64("friendID", int64(id)).Msg("failed to bind friend after reconnect")
		} else {
			c.logger.Info().Int64("friendID", int64(id)).Str("status", rendered).Msg("friend bound after reconnect")
		}
	}

	c.handlersMu.RLock()
	onReconnected := c.onReconnected
	c.handlersMu.RUnlock()
	if onReconnected != nil {
		onReconnected()
	}
}

func (c *Client) dropPending(reqID int64) {
	c.pendingMu.Lock()
	delete(c.pending, reqID)
	c.pendingMu.Unlock()
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	for _, ch := range c.pending {
		select {
		case ch <- nil:
		default:
		}
	}
	c.pending = make(map[int64]chan *jsonrpc.Message)
	c.pendingMu.Unlock()
}
