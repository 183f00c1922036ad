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
	"log/slog"
	"time"
)

const (
	DefaultConnectTimeout         = 10 * time.Second
	DefaultRequestTimeout         = 60 * time.Second
	DefaultKeepAlivePeriod        = 30 * time.Second
	DefaultMaxMessageSize         = 10 * 1024 * 1024
	DefaultRetryDelayMin          = 10 * time.Millisecond
	DefaultRetryDelayMax          = 60 * time.Second
	DefaultSubscriptionQueueLimit = 4096
)

// ClientOptionFunc is a type that represents functions that modify the Client config
type ClientOptionFunc func(*Client)

// WithEndpoints specifies the websocket endpoints to connect to. Endpoints are tried
// in order, rotating on connection failure
func WithEndpoints(endpoints ...string) ClientOptionFunc {
	return func(c *Client) {
		c.endpoints = append(c.endpoints, endpoints...)
	}
}

// WithLogger specifies the logger to use. This defaults to slog.Default()
func WithLogger(logger *slog.Logger) ClientOptionFunc {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConnectTimeout specifies the timeout for establishing a single connection
// attempt
func WithConnectTimeout(timeout time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

// WithRequestTimeout specifies the default timeout applied to requests whose
// context carries no deadline of its own. Zero disables the default timeout
func WithRequestTimeout(timeout time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithKeepAlivePeriod specifies how often websocket pings are sent. A connection
// that misses multiple pongs in a row is considered dead
func WithKeepAlivePeriod(period time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.keepAlivePeriod = period
	}
}

// WithMaxMessageSize specifies the largest inbound message the client will accept
func WithMaxMessageSize(size int64) ClientOptionFunc {
	return func(c *Client) {
		c.maxMessageSize = size
	}
}

// WithRetryDelay specifies the minimum and maximum delay between reconnection
// attempts. The delay starts at min and doubles (with jitter) up to max
func WithRetryDelay(minDelay time.Duration, maxDelay time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.retryDelayMin = minDelay
		c.retryDelayMax = maxDelay
	}
}

// WithMaxReconnectAttempts specifies how many consecutive connection attempts may
// fail before the client gives up and fails with ErrRetriesExhausted. Zero means
// retry forever
func WithMaxReconnectAttempts(attempts int) ClientOptionFunc {
	return func(c *Client) {
		c.maxReconnectAttempts = attempts
	}
}

// WithSubscriptionQueueLimit specifies how many undelivered notifications may be
// buffered per subscription before it's failed for falling too far behind
func WithSubscriptionQueueLimit(limit int) ClientOptionFunc {
	return func(c *Client) {
		c.subscriptionQueueLimit = limit
	}
}
