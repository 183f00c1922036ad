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
	"slices"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jpillora/backoff"
)

// Restarted is delivered to restart listeners once per successful reconnect, before
// queued requests are replayed, so dependent layers can reset state first
type Restarted struct {
	Generation uint64
}

// Client is a reconnecting JSON-RPC client. It owns the single live connection and
// the generation counter: requests and subscriptions behave as if the connection
// never drops. While disconnected, new requests queue and in-flight requests are
// pulled back for replay; on reconnect the generation is bumped, restart listeners
// are signaled, open subscriptions are re-established, and the queue is flushed in
// submission order, exactly once
type Client struct {
	endpoints              []string
	logger                 *slog.Logger
	connectTimeout         time.Duration
	requestTimeout         time.Duration
	keepAlivePeriod        time.Duration
	maxMessageSize         int64
	retryDelayMin          time.Duration
	retryDelayMax          time.Duration
	maxReconnectAttempts   int
	subscriptionQueueLimit int

	rotation  *endpointRotation
	requestId atomic.Uint64

	mutex         sync.Mutex
	started       bool
	closed        bool
	fatalErr      error
	conn          *Conn
	generation    uint64
	queue         []*call
	subscriptions []*Subscription
	restartChans  []chan Restarted

	readyChan chan struct{}
	onceReady sync.Once
	doneChan  chan struct{}
	onceClose sync.Once
	errorChan chan error
	waitGroup sync.WaitGroup
}

// NewClient returns a new Client with the provided options
func NewClient(options ...ClientOptionFunc) (*Client, error) {
	c := &Client{
		logger:                 slog.Default(),
		connectTimeout:         DefaultConnectTimeout,
		requestTimeout:         DefaultRequestTimeout,
		keepAlivePeriod:        DefaultKeepAlivePeriod,
		maxMessageSize:         DefaultMaxMessageSize,
		retryDelayMin:          DefaultRetryDelayMin,
		retryDelayMax:          DefaultRetryDelayMax,
		subscriptionQueueLimit: DefaultSubscriptionQueueLimit,
		readyChan:              make(chan struct{}),
		doneChan:               make(chan struct{}),
		errorChan:              make(chan error, 10),
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if len(c.endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints provided")
	}
	endpoints := make([]string, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		tmpEndpoint, err := normalizeEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, tmpEndpoint)
	}
	c.endpoints = endpoints
	c.rotation = newEndpointRotation(endpoints)
	return c, nil
}

// Dial starts the connection manager and waits for the first successful connection.
// Establishing the initial connection uses the same retry budget as any later
// reconnect
func (c *Client) Dial(ctx context.Context) error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return ErrClientShutdown
	}
	if c.started {
		c.mutex.Unlock()
		return fmt.Errorf("client already started")
	}
	c.started = true
	c.waitGroup.Add(1)
	c.mutex.Unlock()
	go c.run()
	select {
	case <-c.readyChan:
		c.mutex.Lock()
		err := c.fatalErr
		c.mutex.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorChan returns the channel that fatal client errors are delivered on. It's
// closed when the client shuts down
func (c *Client) ErrorChan() <-chan error {
	return c.errorChan
}

// Generation returns the current connection generation. It starts at zero and
// increments on every successful (re)connect
func (c *Client) Generation() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.generation
}

// RestartChan registers and returns a channel that receives one Restarted signal per
// successful reconnect. Signals coalesce if the listener falls behind
func (c *Client) RestartChan() <-chan Restarted {
	ch := make(chan Restarted, 1)
	c.mutex.Lock()
	c.restartChans = append(c.restartChans, ch)
	c.mutex.Unlock()
	return ch
}

// Call sends a request and decodes its reply into result (unless result is nil).
// While the connection is down the request waits in the replay queue; it fails only
// on a server-returned error, caller cancellation, or an exhausted retry budget
func (c *Client) Call(
	ctx context.Context,
	method string,
	params any,
	result any,
) error {
	reqCall := newCall(method, params)
	if err := c.dispatch(reqCall); err != nil {
		return err
	}
	return c.wait(ctx, reqCall, result)
}

// Subscribe opens a server subscription. The unsubscribeMethod is used for explicit
// Unsubscribe calls and for cleaning up when establishment races with cancellation
func (c *Client) Subscribe(
	ctx context.Context,
	method string,
	unsubscribeMethod string,
	params any,
	options ...SubscribeOptionFunc,
) (*Subscription, error) {
	sub := newSubscription(c, method, unsubscribeMethod, params, options...)
	reqCall := newCall(method, params)
	reqCall.activate = sub
	if err := c.dispatch(reqCall); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	if err := c.wait(ctx, reqCall, nil); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// dispatch hands the call to the live connection, or queues it while disconnected.
// Queued calls also gate new ones behind them so replay order matches submission
// order
func (c *Client) dispatch(reqCall *call) error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return ErrClientShutdown
	}
	if c.fatalErr != nil {
		err := c.fatalErr
		c.mutex.Unlock()
		return err
	}
	if !c.started {
		c.mutex.Unlock()
		return ErrClientNotStarted
	}
	conn := c.conn
	if conn == nil || len(c.queue) > 0 {
		c.queue = append(c.queue, reqCall)
		conn = nil
	}
	c.mutex.Unlock()
	if conn != nil {
		if err := conn.send(reqCall); err != nil {
			// Send raced with connection teardown; queue for replay instead
			c.enqueueCall(reqCall)
		}
	}
	return nil
}

func (c *Client) enqueueCall(reqCall *call) {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		reqCall.complete(nil, ErrClientShutdown)
		return
	}
	if c.fatalErr != nil {
		err := c.fatalErr
		c.mutex.Unlock()
		reqCall.complete(nil, err)
		return
	}
	c.queue = append(c.queue, reqCall)
	c.mutex.Unlock()
}

func (c *Client) wait(ctx context.Context, reqCall *call, result any) error {
	if _, ok := ctx.Deadline(); !ok && c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	select {
	case <-reqCall.doneChan:
		if reqCall.err != nil {
			return reqCall.err
		}
		if result != nil && len(reqCall.result) > 0 {
			if err := json.Unmarshal(reqCall.result, result); err != nil {
				return ProtocolError{
					Reason: fmt.Sprintf(
						"decoding %s result: %s",
						reqCall.method,
						err,
					),
				}
			}
		}
		return nil
	case <-ctx.Done():
		// Dropping interest simply abandons the request. Any eventual reply is
		// discarded by the read loop
		reqCall.cancel()
		return ctx.Err()
	case <-c.doneChan:
		return ErrClientShutdown
	}
}

// run is the connection manager: it owns connection establishment, generation
// bumps, subscription re-establishment, and queue replay. Reconnection is a single
// serialization point, so there are never two live connections
func (c *Client) run() {
	defer c.waitGroup.Done()
	boff := &backoff.Backoff{
		Min:    c.retryDelayMin,
		Max:    c.retryDelayMax,
		Factor: 2,
		Jitter: true,
	}
	attempts := 0
	for {
		select {
		case <-c.doneChan:
			return
		default:
		}
		endpoint := c.rotation.next()
		dialCtx, cancel := context.WithTimeout(
			context.Background(),
			c.connectTimeout,
		)
		conn, err := c.dialConn(dialCtx, endpoint, c.Generation()+1)
		cancel()
		if err != nil {
			attempts++
			c.rotation.recordFailure(endpoint)
			c.logger.Warn(
				"connection attempt failed",
				"component", "rpc",
				"endpoint", endpoint,
				"endpoint_failures", c.rotation.failureCount(endpoint),
				"attempt", attempts,
				"error", err,
			)
			if c.maxReconnectAttempts > 0 && attempts >= c.maxReconnectAttempts {
				c.fatal(fmt.Errorf("%w: %s", ErrRetriesExhausted, err))
				return
			}
			select {
			case <-c.doneChan:
				return
			case <-time.After(boff.Duration()):
			}
			continue
		}
		attempts = 0
		boff.Reset()
		c.rotation.recordSuccess(endpoint)
		c.mutex.Lock()
		if c.closed {
			c.mutex.Unlock()
			conn.close(ErrClientShutdown)
			return
		}
		c.conn = conn
		c.generation++
		generation := c.generation
		subs := slices.Clone(c.subscriptions)
		c.mutex.Unlock()
		c.logger.Debug(
			"connection established",
			"component", "rpc",
			"endpoint", endpoint,
			"generation", generation,
		)
		if generation > 1 {
			c.signalRestart(generation)
		}
		// Re-establish subscriptions before replaying queued requests
		for _, sub := range subs {
			c.resubscribe(conn, sub)
		}
		c.flushQueue(conn)
		c.signalReady()
		select {
		case <-c.doneChan:
			conn.close(ErrClientShutdown)
			return
		case err := <-conn.ErrorChan():
			c.logger.Warn(
				"connection lost",
				"component", "rpc",
				"endpoint", endpoint,
				"generation", generation,
				"error", err,
			)
			c.handleDisconnect(conn)
		}
	}
}

// handleDisconnect moves the dead connection's in-flight calls back into the replay
// queue ahead of anything queued later and tells subscriptions about the boundary
func (c *Client) handleDisconnect(conn *Conn) {
	aborted := conn.takePending()
	c.mutex.Lock()
	c.conn = nil
	replay := make([]*call, 0, len(aborted)+len(c.queue))
	for _, reqCall := range aborted {
		// Re-subscription calls are managed by the next reconnect pass, and
		// abandoned calls have nobody waiting on them
		if reqCall.isResubscribe || reqCall.isCanceled() {
			continue
		}
		replay = append(replay, reqCall)
	}
	c.queue = append(replay, c.queue...)
	subs := slices.Clone(c.subscriptions)
	c.mutex.Unlock()
	for _, sub := range subs {
		sub.setInactive()
		if sub.resubscribe {
			sub.enqueue(Message{Err: ErrDisconnected})
		} else {
			c.removeSubscription(sub)
			sub.fail(ErrDisconnected)
		}
	}
}

func (c *Client) resubscribe(conn *Conn, sub *Subscription) {
	reqCall := newCall(sub.method, sub.params)
	reqCall.activate = sub
	reqCall.isResubscribe = true
	if err := conn.send(reqCall); err != nil {
		// Connection already died again; the next reconnect pass retries
		return
	}
	c.waitGroup.Add(1)
	go func() {
		defer c.waitGroup.Done()
		select {
		case <-reqCall.doneChan:
			if reqCall.err != nil {
				// The server refused to re-establish it, so the subscription gets a
				// terminal error rather than a silent gap
				c.removeSubscription(sub)
				sub.fail(reqCall.err)
			}
		case <-conn.doneChan:
		case <-c.doneChan:
		}
	}()
}

// flushQueue replays queued calls in submission order. New calls queue behind the
// flush rather than overtaking it
func (c *Client) flushQueue(conn *Conn) {
	for {
		c.mutex.Lock()
		if len(c.queue) == 0 {
			c.mutex.Unlock()
			return
		}
		queue := c.queue
		c.queue = nil
		c.mutex.Unlock()
		for i, reqCall := range queue {
			if reqCall.isCanceled() {
				continue
			}
			if err := conn.send(reqCall); err != nil {
				// Connection died mid-flush; put the remainder back at the front
				c.mutex.Lock()
				c.queue = append(
					append([]*call{}, queue[i:]...),
					c.queue...,
				)
				c.mutex.Unlock()
				return
			}
		}
	}
}

func (c *Client) registerSubscription(sub *Subscription) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed || c.fatalErr != nil {
		return
	}
	if sub.isClosing() {
		return
	}
	if slices.Contains(c.subscriptions, sub) {
		return
	}
	c.subscriptions = append(c.subscriptions, sub)
}

func (c *Client) removeSubscription(sub *Subscription) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.subscriptions = slices.DeleteFunc(
		c.subscriptions,
		func(s *Subscription) bool { return s == sub },
	)
}

// dropRoute stops notification routing for a server subscription id on the live
// connection, if there is one
func (c *Client) dropRoute(serverId string) {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn != nil {
		conn.removeRoute(serverId)
	}
}

// serverUnsubscribe cleans up a server-side subscription that has no local consumer,
// such as one whose establishment raced with caller cancellation
func (c *Client) serverUnsubscribe(unsubscribeMethod string, serverId string) {
	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
	defer cancel()
	var result any
	if err := c.Call(ctx, unsubscribeMethod, []any{serverId}, &result); err != nil {
		c.logger.Debug(
			"orphan unsubscribe call failed",
			"component", "rpc",
			"method", unsubscribeMethod,
			"subscription_id", serverId,
			"error", err,
		)
	}
}

func (c *Client) signalRestart(generation uint64) {
	c.mutex.Lock()
	listeners := slices.Clone(c.restartChans)
	c.mutex.Unlock()
	for _, ch := range listeners {
		select {
		case ch <- Restarted{Generation: generation}:
		default:
		}
	}
}

func (c *Client) signalReady() {
	c.onceReady.Do(func() {
		close(c.readyChan)
	})
}

// fatal fails the whole client: every queued call, in-flight call, and subscription
// gets the error, and it's delivered on the error channel
func (c *Client) fatal(err error) {
	c.mutex.Lock()
	if c.fatalErr == nil {
		c.fatalErr = err
	}
	queue := c.queue
	c.queue = nil
	subs := c.subscriptions
	c.subscriptions = nil
	conn := c.conn
	c.conn = nil
	c.mutex.Unlock()
	c.logger.Error(
		"client failed",
		"component", "rpc",
		"error", err,
	)
	if conn != nil {
		conn.close(err)
		for _, reqCall := range conn.takePending() {
			reqCall.complete(nil, err)
		}
	}
	for _, reqCall := range queue {
		reqCall.complete(nil, err)
	}
	for _, sub := range subs {
		sub.fail(err)
	}
	select {
	case c.errorChan <- err:
	default:
	}
	c.signalReady()
}

// Close shuts the client down, failing anything outstanding with ErrClientShutdown
func (c *Client) Close() error {
	c.onceClose.Do(func() {
		c.mutex.Lock()
		c.closed = true
		started := c.started
		queue := c.queue
		c.queue = nil
		subs := slices.Clone(c.subscriptions)
		c.subscriptions = nil
		conn := c.conn
		c.conn = nil
		c.mutex.Unlock()
		close(c.doneChan)
		if conn != nil {
			conn.close(ErrClientShutdown)
			for _, reqCall := range conn.takePending() {
				reqCall.complete(nil, ErrClientShutdown)
			}
		}
		for _, reqCall := range queue {
			reqCall.complete(nil, ErrClientShutdown)
		}
		for _, sub := range subs {
			sub.fail(ErrClientShutdown)
		}
		c.signalReady()
		if started {
			c.waitGroup.Wait()
		}
		close(c.errorChan)
	})
	return nil
}
