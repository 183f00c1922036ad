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
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const unsubscribeTimeout = 5 * time.Second

// Message is a single item from a subscription's notification stream. Exactly one of
// Result and Err is set. An Err of ErrDisconnected is a stream boundary marker, not a
// terminal failure: the subscription was re-established on a new connection and
// notifications continue afterward
type Message struct {
	Result json.RawMessage
	Err    error
}

// Subscription is a handle for a live server subscription. Notifications are delivered
// on Chan in server-send order. The channel closes after a terminal error message or an
// explicit Unsubscribe. The handle survives reconnects: each new connection gets a fresh
// initiating call and server-side id, invisible to the consumer apart from the
// ErrDisconnected marker
type Subscription struct {
	client            *Client
	method            string
	unsubscribeMethod string
	params            any
	resubscribe       bool
	queueLimit        int
	msgChan           chan Message
	abortChan         chan struct{}
	queueMutex        sync.Mutex
	queue             []Message
	queueSignal       chan struct{}
	closing           bool
	active            bool
	serverId          string
	generation        uint64
	onceUnsubscribe   sync.Once
}

// SubscribeOptionFunc is a function used to set subscription options
type SubscribeOptionFunc func(*Subscription)

// WithResubscribe specifies whether the subscription is transparently re-established
// after a reconnect. When disabled, a lost connection delivers the ErrDisconnected
// marker and then ends the stream, leaving recovery to the consumer
func WithResubscribe(resubscribe bool) SubscribeOptionFunc {
	return func(s *Subscription) {
		s.resubscribe = resubscribe
	}
}

// WithQueueLimit specifies the notification queue limit for the subscription,
// overriding the client-wide default
func WithQueueLimit(limit int) SubscribeOptionFunc {
	return func(s *Subscription) {
		s.queueLimit = limit
	}
}

func newSubscription(
	client *Client,
	method string,
	unsubscribeMethod string,
	params any,
	options ...SubscribeOptionFunc,
) *Subscription {
	s := &Subscription{
		client:            client,
		method:            method,
		unsubscribeMethod: unsubscribeMethod,
		params:            params,
		resubscribe:       true,
		queueLimit:        client.subscriptionQueueLimit,
		msgChan:           make(chan Message, 16),
		abortChan:         make(chan struct{}),
		queueSignal:       make(chan struct{}, 1),
	}
	for _, option := range options {
		option(s)
	}
	go s.pumpLoop()
	return s
}

// Chan returns the channel that notification messages are delivered on
func (s *Subscription) Chan() <-chan Message {
	return s.msgChan
}

// ID returns the current server-assigned subscription id. It changes on reconnect and
// is empty before the subscription is first established
func (s *Subscription) ID() string {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()
	return s.serverId
}

// Unsubscribe closes the subscription, notifying the server on a best-effort basis.
// Undelivered notifications are dropped and the message channel is closed
func (s *Subscription) Unsubscribe() {
	s.onceUnsubscribe.Do(s.unsubscribe)
}

func (s *Subscription) unsubscribe() {
	s.client.removeSubscription(s)
	s.queueMutex.Lock()
	active := s.active
	serverId := s.serverId
	s.active = false
	s.closing = true
	s.queue = nil
	s.queueMutex.Unlock()
	close(s.abortChan)
	s.signal()
	if serverId != "" {
		s.client.dropRoute(serverId)
	}
	if active && serverId != "" {
		// Tell the server to stop sending notifications. Failures aren't interesting,
		// since the subscription is gone locally either way
		ctx, cancel := context.WithTimeout(
			context.Background(),
			unsubscribeTimeout,
		)
		defer cancel()
		var result any
		if err := s.client.Call(ctx, s.unsubscribeMethod, []any{serverId}, &result); err != nil {
			s.client.logger.Debug(
				"unsubscribe call failed",
				"component", "rpc",
				"method", s.unsubscribeMethod,
				"subscription_id", serverId,
				"error", err,
			)
		}
	}
}

// setActive records the server-assigned id for the current connection generation. It's
// called from the connection read loop before any notification for the id is routed
func (s *Subscription) setActive(serverId string, generation uint64) {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()
	s.active = true
	s.serverId = serverId
	s.generation = generation
}

func (s *Subscription) setInactive() {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()
	s.active = false
}

func (s *Subscription) isClosing() bool {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()
	return s.closing
}

// enqueue adds a notification message to the delivery queue. It never blocks the
// caller: the queue soaks up bursts and the pump goroutine feeds the consumer at its
// own pace. A consumer that falls more than queueLimit messages behind is failed with
// ErrSubscriptionOverflow
func (s *Subscription) enqueue(msg Message) {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()
	if s.closing {
		return
	}
	if s.queueLimit > 0 && len(s.queue) >= s.queueLimit {
		s.queue = append(s.queue, Message{Err: ErrSubscriptionOverflow})
		s.closing = true
		s.signal()
		go s.client.removeSubscription(s)
		return
	}
	s.queue = append(s.queue, msg)
	s.signal()
}

// fail delivers a terminal error and ends the stream once anything already queued has
// been consumed
func (s *Subscription) fail(err error) {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()
	if s.closing {
		return
	}
	s.queue = append(s.queue, Message{Err: err})
	s.closing = true
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.queueSignal <- struct{}{}:
	default:
	}
}

// pumpLoop is the owning task for the subscription: it drains the internal queue into
// the consumer-facing channel, preserving order, and closes the channel when the
// subscription ends
func (s *Subscription) pumpLoop() {
	for {
		s.queueMutex.Lock()
		batch := s.queue
		s.queue = nil
		closing := s.closing
		s.queueMutex.Unlock()
		for _, msg := range batch {
			select {
			case s.msgChan <- msg:
			case <-s.abortChan:
				close(s.msgChan)
				return
			}
		}
		if closing {
			close(s.msgChan)
			return
		}
		select {
		case <-s.queueSignal:
		case <-s.abortChan:
			close(s.msgChan)
			return
		}
	}
}
