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

package gosubstrate

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/gosubstrate/rpc"
)

// ClientOptionFunc is a type that represents functions that modify the Client config
type ClientOptionFunc func(*Client)

// WithEndpoints specifies the websocket endpoint URLs to connect to. When
// none are given, the configured network's public endpoints are used
func WithEndpoints(endpoints ...string) ClientOptionFunc {
	return func(c *Client) {
		c.endpoints = endpoints
	}
}

// WithNetwork specifies the network. The network supplies default endpoints
// and the expected genesis hash, which is verified at connect time
func WithNetwork(network Network) ClientOptionFunc {
	return func(c *Client) {
		c.network = network
	}
}

// WithChainSpec specifies a chain spec whose name is verified against the
// node at connect time
func WithChainSpec(spec *ChainSpec) ClientOptionFunc {
	return func(c *Client) {
		c.chainSpec = spec
	}
}

// WithChainSpecFile specifies a chain spec JSON file to load at connect time
func WithChainSpecFile(path string) ClientOptionFunc {
	return func(c *Client) {
		c.chainSpecFile = path
	}
}

// WithBackendKind forces a node interface generation instead of probing the
// node's method list
func WithBackendKind(kind BackendKind) ClientOptionFunc {
	return func(c *Client) {
		c.backendKind = kind
	}
}

// WithLogger specifies the logger to use. This defaults to slog.Default()
func WithLogger(logger *slog.Logger) ClientOptionFunc {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConnectTimeout specifies the timeout for establishing a single
// connection attempt
func WithConnectTimeout(timeout time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.connectTimeout = timeout
	}
}

// WithRequestTimeout specifies the default timeout applied to requests whose
// context does not carry a deadline
func WithRequestTimeout(timeout time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithKeepAlivePeriod specifies how often websocket pings are sent
func WithKeepAlivePeriod(period time.Duration) ClientOptionFunc {
	return func(c *Client) {
		c.keepAlivePeriod = period
	}
}

// WithMaxReconnectAttempts specifies how many consecutive connection
// attempts may fail before the client gives up. Zero, the default, retries
// forever
func WithMaxReconnectAttempts(attempts int) ClientOptionFunc {
	return func(c *Client) {
		c.maxReconnects = attempts
	}
}

// WithFollowRuntime specifies whether chainHead follow sessions report
// runtime information alongside blocks. This is enabled by default
func WithFollowRuntime(followRuntime bool) ClientOptionFunc {
	return func(c *Client) {
		c.followRuntime = followRuntime
	}
}

// WithRetentionWindow caps how many finalized blocks the chainHead backend
// keeps pinned. Zero, the default, retains pins for the whole session
func WithRetentionWindow(window uint32) ClientOptionFunc {
	return func(c *Client) {
		c.retentionWindow = window
	}
}

// WithRPCClient specifies an existing transport client to use instead of
// dialing one. The caller connects it; a successful Dial takes ownership and
// Close closes it
func WithRPCClient(rpcClient *rpc.Client) ClientOptionFunc {
	return func(c *Client) {
		c.rpcClient = rpcClient
	}
}
