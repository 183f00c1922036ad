// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const writeControlTimeout = 10 * time.Second

// call is one outbound request. It lives in the client's queue while disconnected, in
// a connection's pending map while awaiting a reply, and moves back to the queue if
// the connection dies first. A non-nil activate marks a subscription-initiating call
type call struct {
	method        string
	params        any
	activate      *Subscription
	isResubscribe bool
	doneChan      chan struct{}
	once          sync.Once
	result        json.RawMessage
	err           error
	canceled      bool
	mutex         sync.Mutex
}

func newCall(method string, params any) *call {
	return &call{
		method:   method,
		params:   params,
		doneChan: make(chan struct{}),
	}
}

func (c *call) complete(result json.RawMessage, err error) {
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.doneChan)
	})
}

func (c *call) cancel() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.canceled = true
}

func (c *call) isCanceled() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.canceled
}

// Conn is a single live websocket connection. It multiplexes replies to pending
// calls by request id and notifications to subscriptions by server-assigned
// subscription id. A Conn never outlives a transport error: the first one tears it
// down and hands cleanup to the owning client
type Conn struct {
	client     *Client
	ws         *websocket.Conn
	logger     *slog.Logger
	endpoint   string
	generation uint64
	sendMutex  sync.Mutex
	onceClose  sync.Once
	doneChan   chan struct{}
	errorChan  chan error
	stateMutex sync.Mutex
	closed     bool
	pending    map[uint64]*call
	routes     map[string]*Subscription
}

func (c *Client) dialConn(ctx context.Context, endpoint string, generation uint64) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.connectTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	conn := &Conn{
		client:     c,
		ws:         ws,
		logger:     c.logger,
		endpoint:   endpoint,
		generation: generation,
		doneChan:   make(chan struct{}),
		errorChan:  make(chan error, 1),
		pending:    make(map[uint64]*call),
		routes:     make(map[string]*Subscription),
	}
	ws.SetReadLimit(c.maxMessageSize)
	if c.keepAlivePeriod > 0 {
		pongWait := c.keepAlivePeriod * 5 / 2
		if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			ws.Close()
			return nil, err
		}
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		go conn.pingLoop(c.keepAlivePeriod)
	}
	go conn.readLoop()
	return conn, nil
}

// ErrorChan returns the channel that the connection's fatal error is delivered on
func (c *Conn) ErrorChan() <-chan error {
	return c.errorChan
}

// send registers the call as pending and writes the request. A errConnClosed return
// means the connection was already dead and the call was never sent; any later
// failure tears the connection down and leaves the call pending for the client to
// collect and replay
func (c *Conn) send(reqCall *call) error {
	id := c.client.requestId.Add(1)
	c.stateMutex.Lock()
	if c.closed {
		c.stateMutex.Unlock()
		return errConnClosed
	}
	c.pending[id] = reqCall
	c.stateMutex.Unlock()
	req, err := NewRequest(id, reqCall.method, reqCall.params)
	if err != nil {
		// A params marshaling failure is the caller's bug, not a transport problem.
		// Fail the call permanently rather than replaying it forever
		c.forgetPending(id)
		reqCall.complete(nil, err)
		return nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		c.forgetPending(id)
		reqCall.complete(nil, err)
		return nil
	}
	c.logger.Debug(
		"sending request",
		"component", "rpc",
		"method", reqCall.method,
		"request_id", id,
		"endpoint", c.endpoint,
		"generation", c.generation,
	)
	c.sendMutex.Lock()
	err = c.ws.WriteMessage(websocket.TextMessage, data)
	c.sendMutex.Unlock()
	if err != nil {
		// The call stays pending so the client replays it on the next connection
		c.closeWithError(fmt.Errorf("websocket write: %w", err))
	}
	return nil
}

func (c *Conn) forgetPending(id uint64) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	delete(c.pending, id)
}

// takePending removes and returns all calls still awaiting replies, in submission
// order. The client uses this to move in-flight calls back into its replay queue
// when the connection dies
func (c *Conn) takePending() []*call {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	ids := make([]uint64, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	tmpCalls := make([]*call, 0, len(ids))
	for _, id := range ids {
		tmpCalls = append(tmpCalls, c.pending[id])
	}
	c.pending = make(map[uint64]*call)
	return tmpCalls
}

func (c *Conn) close(err error) {
	c.closeWithError(err)
}

func (c *Conn) closeWithError(err error) {
	c.onceClose.Do(func() {
		c.stateMutex.Lock()
		c.closed = true
		c.stateMutex.Unlock()
		close(c.doneChan)
		c.errorChan <- err
		c.ws.Close()
	})
}

func (c *Conn) pingLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-c.doneChan:
			return
		case <-ticker.C:
			err := c.ws.WriteControl(
				websocket.PingMessage,
				nil,
				time.Now().Add(writeControlTimeout),
			)
			if err != nil {
				c.closeWithError(fmt.Errorf("websocket ping: %w", err))
				return
			}
		}
	}
}

func (c *Conn) readLoop() {
	for {
		// Break out of read loop if we're shutting down
		select {
		case <-c.doneChan:
			return
		default:
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWithError(fmt.Errorf("websocket read: %w", err))
			return
		}
		c.handleMessage(data)
	}
}

func (c *Conn) handleMessage(data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// A frame we can't parse can't be attributed to any call or subscription,
		// so there's nothing to fail. Log it and move on
		c.logger.Warn(
			"discarding unparseable message",
			"component", "rpc",
			"endpoint", c.endpoint,
			"error", err,
		)
		return
	}
	switch {
	case msg.Id != nil:
		c.handleReply(&msg)
	case msg.Method != "":
		c.handleNotification(&msg)
	default:
		c.logger.Warn(
			"discarding message with no id or method",
			"component", "rpc",
			"endpoint", c.endpoint,
		)
	}
}

func (c *Conn) handleReply(msg *inboundMessage) {
	c.stateMutex.Lock()
	reqCall, ok := c.pending[*msg.Id]
	if ok {
		delete(c.pending, *msg.Id)
	}
	c.stateMutex.Unlock()
	if !ok {
		// Replies for unknown ids were either abandoned by their caller or raced
		// with connection teardown
		c.logger.Debug(
			"discarding reply for unknown request id",
			"component", "rpc",
			"request_id", *msg.Id,
			"generation", c.generation,
		)
		return
	}
	if msg.Error != nil {
		reqCall.complete(nil, *msg.Error)
		return
	}
	if reqCall.activate != nil {
		// Register the notification route before completing the call. The read
		// loop processes frames in order, so the route exists before the first
		// notification for this subscription is handled
		serverId, err := subscriptionIdString(msg.Result)
		if err != nil {
			reqCall.complete(
				nil,
				ProtocolError{
					Reason: fmt.Sprintf(
						"invalid subscription id in %s reply: %s",
						reqCall.method,
						err,
					),
				},
			)
			return
		}
		if reqCall.isCanceled() || reqCall.activate.isClosing() {
			// The consumer gave up while the subscription was being established.
			// It's live server-side, so tear it down there too
			go c.client.serverUnsubscribe(
				reqCall.activate.unsubscribeMethod,
				serverId,
			)
			reqCall.complete(msg.Result, nil)
			return
		}
		c.stateMutex.Lock()
		c.routes[serverId] = reqCall.activate
		c.stateMutex.Unlock()
		reqCall.activate.setActive(serverId, c.generation)
		c.client.registerSubscription(reqCall.activate)
		c.logger.Debug(
			"subscription established",
			"component", "rpc",
			"method", reqCall.method,
			"subscription_id", serverId,
			"generation", c.generation,
		)
	}
	reqCall.complete(msg.Result, nil)
}

func (c *Conn) handleNotification(msg *inboundMessage) {
	var params NotificationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		c.logger.Warn(
			"discarding malformed notification",
			"component", "rpc",
			"method", msg.Method,
			"error", err,
		)
		return
	}
	serverId, err := subscriptionIdString(params.Subscription)
	if err != nil {
		c.logger.Warn(
			"discarding notification without subscription id",
			"component", "rpc",
			"method", msg.Method,
			"error", err,
		)
		return
	}
	c.stateMutex.Lock()
	sub := c.routes[serverId]
	c.stateMutex.Unlock()
	if sub == nil {
		// Notifications can arrive for subscriptions that were just unsubscribed
		c.logger.Debug(
			"discarding notification for unknown subscription",
			"component", "rpc",
			"method", msg.Method,
			"subscription_id", serverId,
		)
		return
	}
	sub.enqueue(Message{Result: params.Result})
}

func (c *Conn) removeRoute(serverId string) {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	delete(c.routes, serverId)
}
